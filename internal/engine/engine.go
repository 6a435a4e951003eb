package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stablesend/internal/config"
	"stablesend/internal/interfaces"
	"stablesend/internal/ledger"
	"stablesend/internal/models"
	"stablesend/internal/router"
	"stablesend/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSelfTransfer is returned when sender and recipient are the same user.
var ErrSelfTransfer = errors.New("cannot send to yourself")

// Ledger is the subset of the transaction ledger the engine writes to.
// GetTransferByIdempotencyKey reports a missing key as ledger.ErrNotFound.
type Ledger interface {
	CreateTransfer(ctx context.Context, t *models.Transfer) error
	UpdateTransferStatus(ctx context.Context, id string, status models.TransferStatus, refs models.TransferRefs) error
	GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error)
}

// Engine executes transfers over routed wallets. Same-network transfers are a
// single custody call; cross-network transfers relay through the shared
// settlement address: a deposit leg on the source network, then a withdraw leg
// from the settlement wallet on the destination network. The two legs are
// causally ordered but not atomic, and the engine makes exactly one attempt
// per invocation.
type Engine struct {
	custody           interfaces.Custody
	ledger            Ledger
	emitter           interfaces.EventEmitter
	resolver          *router.Resolver
	networks          map[models.NetworkID]config.NetworkConfig
	settlementAddress string
	logger            *zerolog.Logger
}

func New(custody interfaces.Custody, ledger Ledger, emitter interfaces.EventEmitter, resolver *router.Resolver, cfg *config.Config, logger *zerolog.Logger) *Engine {
	return &Engine{
		custody:           custody,
		ledger:            ledger,
		emitter:           emitter,
		resolver:          resolver,
		networks:          cfg.Networks,
		settlementAddress: cfg.SettlementAddress,
		logger:            logger,
	}
}

// SettleRequest carries both parties with their already-loaded wallets.
type SettleRequest struct {
	Sender           *models.User
	SenderWallets    []models.Wallet
	Recipient        *models.User
	RecipientWallets []models.Wallet
	Amount           string
	IdempotencyKey   string
}

// RouteAndSettle validates, routes, and executes one transfer, returning the
// persisted record. A STRANDED outcome is returned as data with a nil error:
// it is a legitimate terminal state awaiting reconciliation, not a bug. FAILED
// and DEPOSIT_FAILED outcomes return both the record and the leg error.
func (e *Engine) RouteAndSettle(ctx context.Context, req SettleRequest) (*models.Transfer, error) {
	amount, err := validation.ValidateAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(req.Sender.Email, req.Recipient.Email) {
		return nil, ErrSelfTransfer
	}

	if req.IdempotencyKey != "" {
		existing, err := e.ledger.GetTransferByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			e.logger.Info().
				Str("transferId", existing.ID).
				Str("idempotencyKey", req.IdempotencyKey).
				Msg("Idempotency key replayed, returning existing transfer")
			return existing, nil
		case !errors.Is(err, ledger.ErrNotFound):
			// A transient lookup failure must not be read as "no prior
			// transfer": proceeding could settle the same key twice.
			return nil, fmt.Errorf("idempotency key lookup failed: %w", err)
		}
	}

	route, err := e.resolver.Resolve(req.Sender, req.SenderWallets, req.Recipient, req.RecipientWallets)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateAddress(route.DestAddress, route.DestNetwork); err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}

	sourceNetwork := route.SourceWallet.Network
	sourceCfg, ok := e.networks[sourceNetwork]
	if !ok {
		return nil, fmt.Errorf("no configuration for source network %s", sourceNetwork)
	}
	destCfg, ok := e.networks[route.DestNetwork]
	if !ok {
		return nil, fmt.Errorf("no configuration for destination network %s", route.DestNetwork)
	}

	kind := models.KindCrossNetwork
	if sourceNetwork == route.DestNetwork {
		kind = models.KindSameNetwork
	}

	transfer := &models.Transfer{
		ID:             uuid.NewString(),
		SenderID:       req.Sender.ID,
		RecipientEmail: req.Recipient.Email,
		Amount:         amount.String(),
		Kind:           kind,
		SourceNetwork:  sourceNetwork,
		DestNetwork:    route.DestNetwork,
		Status:         models.StatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}

	// The record exists before the first external call so no accepted leg can
	// go unaccounted for.
	if err := e.ledger.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer record: %w", err)
	}

	e.logger.Info().
		Str("transferId", transfer.ID).
		Str("kind", string(kind)).
		Str("sourceNetwork", sourceNetwork.String()).
		Str("destNetwork", route.DestNetwork.String()).
		Str("amount", transfer.Amount).
		Msg("Settling transfer")

	if kind == models.KindSameNetwork {
		return e.settleSameNetwork(ctx, transfer, route, sourceCfg)
	}
	return e.settleCrossNetwork(ctx, transfer, route, sourceCfg, destCfg)
}

func (e *Engine) settleSameNetwork(ctx context.Context, transfer *models.Transfer, route router.Route, sourceCfg config.NetworkConfig) (*models.Transfer, error) {
	ref, err := e.custody.Transfer(ctx, models.CustodyTransfer{
		WalletHandle:       route.SourceWallet.Handle,
		DestinationAddress: route.DestAddress,
		Amount:             transfer.Amount,
		TokenAddress:       sourceCfg.TokenAddress,
		Network:            transfer.SourceNetwork,
	})
	if err != nil {
		e.transition(ctx, transfer, models.StatusFailed, models.TransferRefs{})
		return transfer, fmt.Errorf("transfer failed: %w", err)
	}

	e.transition(ctx, transfer, models.StatusConfirmed, models.TransferRefs{MainRef: ref})
	return transfer, nil
}

func (e *Engine) settleCrossNetwork(ctx context.Context, transfer *models.Transfer, route router.Route, sourceCfg, destCfg config.NetworkConfig) (*models.Transfer, error) {
	// Deposit leg: sender wallet to the settlement address on the source
	// network. No reference means the request was never accepted and funds
	// provably never left the sender.
	depositRef, err := e.custody.Transfer(ctx, models.CustodyTransfer{
		WalletHandle:       route.SourceWallet.Handle,
		DestinationAddress: e.settlementAddress,
		Amount:             transfer.Amount,
		TokenAddress:       sourceCfg.TokenAddress,
		Network:            transfer.SourceNetwork,
	})
	if err != nil {
		e.transition(ctx, transfer, models.StatusDepositFailed, models.TransferRefs{})
		return transfer, fmt.Errorf("deposit leg failed: %w", err)
	}

	e.transition(ctx, transfer, models.StatusPending, models.TransferRefs{DepositRef: depositRef})

	// Withdraw leg: settlement wallet on the destination network to the
	// recipient. Any error here, timeouts included, strands the deposit: the
	// provider may or may not have accepted the request, so neither success
	// nor failure can be assumed.
	withdrawRef, err := e.custody.Transfer(ctx, models.CustodyTransfer{
		WalletHandle:       destCfg.SettlementWalletID,
		DestinationAddress: route.DestAddress,
		Amount:             transfer.Amount,
		TokenAddress:       destCfg.TokenAddress,
		Network:            transfer.DestNetwork,
	})
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("transferId", transfer.ID).
			Str("depositRef", depositRef).
			Str("destNetwork", transfer.DestNetwork.String()).
			Str("amount", transfer.Amount).
			Msg("Withdraw leg failed, deposit is stranded at the settlement address")
		e.transition(ctx, transfer, models.StatusStranded, models.TransferRefs{DepositRef: depositRef})
		return transfer, nil
	}

	e.transition(ctx, transfer, models.StatusConfirmed, models.TransferRefs{
		DepositRef:  depositRef,
		WithdrawRef: withdrawRef,
		MainRef:     withdrawRef,
	})
	return transfer, nil
}

// transition persists a status change and publishes terminal transitions. A
// failed persist is logged, not propagated: the settlement outcome already
// happened and must be reported to the caller regardless.
func (e *Engine) transition(ctx context.Context, transfer *models.Transfer, status models.TransferStatus, refs models.TransferRefs) {
	transfer.Status = status
	transfer.Refs = refs
	transfer.UpdatedAt = time.Now()

	if err := e.ledger.UpdateTransferStatus(ctx, transfer.ID, status, refs); err != nil {
		e.logger.Error().
			Err(err).
			Str("transferId", transfer.ID).
			Str("status", string(status)).
			Msg("Failed to persist transfer transition")
	}

	if !status.Terminal() || e.emitter == nil {
		return
	}
	err := e.emitter.EmitEvent(models.TransferEvent{
		TransferID:     transfer.ID,
		SenderID:       transfer.SenderID,
		RecipientEmail: transfer.RecipientEmail,
		Amount:         transfer.Amount,
		Kind:           transfer.Kind,
		Status:         status,
		SourceNetwork:  transfer.SourceNetwork,
		DestNetwork:    transfer.DestNetwork,
		DepositRef:     refs.DepositRef,
		WithdrawRef:    refs.WithdrawRef,
		MainRef:        refs.MainRef,
		Timestamp:      transfer.UpdatedAt,
	})
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("transferId", transfer.ID).
			Msg("Failed to emit transfer event")
	}
}
