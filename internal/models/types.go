package models

import (
	"time"
)

type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	PreferredNetwork    NetworkID `json:"preferred_network,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

// Wallet is a custody-service wallet owned by a user on exactly one network.
// At most one wallet exists per (user, network) pair.
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Handle    string    `json:"handle"`
	Address   string    `json:"address"`
	Network   NetworkID `json:"network"`
	CreatedAt time.Time `json:"created_at"`
}

// ProvisionedWallet is what the custody service returns at wallet-creation time.
type ProvisionedWallet struct {
	Handle  string
	Address string
	Network NetworkID
}

// TokenBalance is one token line of a custody balance response. Amount is a
// decimal string with the token's native precision (6 digits for USDC).
type TokenBalance struct {
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// CustodyTransfer is a single signed-transfer request against the custody service.
type CustodyTransfer struct {
	WalletHandle       string
	DestinationAddress string
	Amount             string
	TokenAddress       string
	Network            NetworkID
}

type TransferKind string

const (
	KindSameNetwork  TransferKind = "SAME_NETWORK"
	KindCrossNetwork TransferKind = "CROSS_NETWORK"
)

type TransferStatus string

const (
	StatusPending       TransferStatus = "PENDING"
	StatusConfirmed     TransferStatus = "CONFIRMED"
	StatusFailed        TransferStatus = "FAILED"
	StatusDepositFailed TransferStatus = "DEPOSIT_FAILED"
	StatusStranded      TransferStatus = "STRANDED"
)

// Terminal reports whether a transfer in this status will never change again.
func (s TransferStatus) Terminal() bool {
	return s != StatusPending
}

// TransferRefs are the external transaction references collected while a
// transfer settles. MainRef is the reference shown to users: the single leg's
// reference for same-network transfers, the withdraw leg's for cross-network.
type TransferRefs struct {
	DepositRef  string `json:"deposit_ref,omitempty"`
	WithdrawRef string `json:"withdraw_ref,omitempty"`
	MainRef     string `json:"main_ref,omitempty"`
}

// Transfer is one settlement attempt. SourceNetwork and DestNetwork are the
// networks of the wallets actually selected, never the stated preferences.
type Transfer struct {
	ID             string         `json:"id"`
	SenderID       string         `json:"sender_id"`
	RecipientEmail string         `json:"recipient_email"`
	Amount         string         `json:"amount"`
	Kind           TransferKind   `json:"kind"`
	SourceNetwork  NetworkID      `json:"source_network"`
	DestNetwork    NetworkID      `json:"dest_network"`
	Refs           TransferRefs   `json:"refs"`
	Status         TransferStatus `json:"status"`
	IdempotencyKey string         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TransferEvent is published on every terminal transfer transition.
type TransferEvent struct {
	TransferID     string         `json:"transfer_id"`
	SenderID       string         `json:"sender_id"`
	RecipientEmail string         `json:"recipient_email"`
	Amount         string         `json:"amount"`
	Kind           TransferKind   `json:"kind"`
	Status         TransferStatus `json:"status"`
	SourceNetwork  NetworkID      `json:"source_network"`
	DestNetwork    NetworkID      `json:"dest_network"`
	DepositRef     string         `json:"deposit_ref,omitempty"`
	WithdrawRef    string         `json:"withdraw_ref,omitempty"`
	MainRef        string         `json:"main_ref,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
