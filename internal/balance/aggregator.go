package balance

import (
	"context"
	"sync"

	"stablesend/internal/interfaces"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Aggregator folds a user's per-wallet custody balances into a total plus a
// per-wallet breakdown. It is network-agnostic: callers map wallet handles
// back to networks themselves.
type Aggregator struct {
	custody interfaces.Custody
	symbol  string
	logger  *zerolog.Logger
}

func NewAggregator(custody interfaces.Custody, symbol string, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		custody: custody,
		symbol:  symbol,
		logger:  logger,
	}
}

// Aggregate queries every wallet handle concurrently and sums the tracked
// token's balance. A failed query contributes zero to the total and to that
// wallet's breakdown entry: the dashboard degrades to partial data instead of
// erroring outright.
func (a *Aggregator) Aggregate(ctx context.Context, walletHandles []string) (decimal.Decimal, map[string]decimal.Decimal) {
	total := decimal.Zero
	breakdown := make(map[string]decimal.Decimal, len(walletHandles))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, handle := range walletHandles {
		wg.Add(1)
		go func(handle string) {
			defer wg.Done()

			amount := a.queryWallet(ctx, handle)

			mu.Lock()
			defer mu.Unlock()
			total = total.Add(amount)
			breakdown[handle] = amount
		}(handle)
	}
	wg.Wait()

	return total, breakdown
}

func (a *Aggregator) queryWallet(ctx context.Context, handle string) decimal.Decimal {
	balances, err := a.custody.GetTokenBalance(ctx, handle)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("wallet", handle).
			Msg("Balance query failed, counting wallet as zero")
		return decimal.Zero
	}

	for _, b := range balances {
		if b.Symbol != a.symbol {
			continue
		}
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("wallet", handle).
				Str("amount", b.Amount).
				Msg("Unparseable balance amount, counting wallet as zero")
			return decimal.Zero
		}
		return amount
	}
	return decimal.Zero
}
