package interfaces

import (
	"context"

	"stablesend/internal/models"
)

// Custody is the wallet custody service: it creates per-network wallets,
// reports token balances, and executes signed transfers. Transfer returns the
// provider's transaction reference; no reference means the request was never
// accepted.
type Custody interface {
	CreateWallets(ctx context.Context, userID string, networks []models.NetworkID) ([]models.ProvisionedWallet, error)
	GetTokenBalance(ctx context.Context, walletHandle string) ([]models.TokenBalance, error)
	Transfer(ctx context.Context, req models.CustodyTransfer) (string, error)
}

// EventEmitter defines the interface for emitting transfer events
type EventEmitter interface {
	EmitEvent(event models.TransferEvent) error
}

// Notifier delivers outbound user notifications. Formatting and delivery live
// outside this service.
type Notifier interface {
	PaymentReceived(ctx context.Context, to, senderEmail, amount string) error
	PaymentSent(ctx context.Context, to, recipientEmail, amount string) error
	Invite(ctx context.Context, to, senderEmail, amount string) error
}
