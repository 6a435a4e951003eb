package router

import (
	"errors"
	"fmt"

	"stablesend/internal/models"

	"github.com/rs/zerolog"
)

// ErrNoWalletAvailable means a party owns no wallets at all; the transfer
// cannot proceed.
var ErrNoWalletAvailable = errors.New("no wallet available")

// SelectWallet picks the wallet matching the user's preferred network, falling
// back to the first wallet in insertion order. The second return value reports
// whether a stated preference went unmet, since fallback changes the network
// funds actually move on.
func SelectWallet(user *models.User, wallets []models.Wallet) (models.Wallet, bool, error) {
	if len(wallets) == 0 {
		return models.Wallet{}, false, ErrNoWalletAvailable
	}

	if user.PreferredNetwork != "" {
		for _, w := range wallets {
			if w.Network == user.PreferredNetwork {
				return w, false, nil
			}
		}
		return wallets[0], true, nil
	}

	return wallets[0], false, nil
}

// Route is a fully resolved transfer path: the concrete sending wallet and the
// concrete receiving address/network, after any fallback.
type Route struct {
	SourceWallet      models.Wallet
	DestAddress       string
	DestNetwork       models.NetworkID
	SenderFellBack    bool
	RecipientFellBack bool
}

// Resolver selects wallets for both parties of a transfer.
type Resolver struct {
	logger *zerolog.Logger
}

func NewResolver(logger *zerolog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve selects the sender's source wallet and the recipient's receiving
// wallet. Unmet preferences are logged: the recipient may receive on a network
// they did not expect.
func (r *Resolver) Resolve(sender *models.User, senderWallets []models.Wallet, recipient *models.User, recipientWallets []models.Wallet) (Route, error) {
	source, senderFellBack, err := SelectWallet(sender, senderWallets)
	if err != nil {
		return Route{}, fmt.Errorf("sender: %w", err)
	}

	dest, recipientFellBack, err := SelectWallet(recipient, recipientWallets)
	if err != nil {
		return Route{}, fmt.Errorf("recipient: %w", err)
	}

	if senderFellBack {
		r.logger.Warn().
			Str("user", sender.ID).
			Str("preferred", sender.PreferredNetwork.String()).
			Str("selected", source.Network.String()).
			Msg("Sender preferred network unmet, falling back")
	}
	if recipientFellBack {
		r.logger.Warn().
			Str("user", recipient.ID).
			Str("preferred", recipient.PreferredNetwork.String()).
			Str("selected", dest.Network.String()).
			Msg("Recipient preferred network unmet, falling back")
	}

	return Route{
		SourceWallet:      source,
		DestAddress:       dest.Address,
		DestNetwork:       dest.Network,
		SenderFellBack:    senderFellBack,
		RecipientFellBack: recipientFellBack,
	}, nil
}
