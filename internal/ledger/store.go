package ledger

import (
	"context"
	"database/sql"
	"errors"

	"stablesend/internal/models"
)

// GetOrCreateUserByEmail returns the user for an email, creating the row on
// first sight (users come into existence at first sign-in).
func (s *Store) GetOrCreateUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id, email, preferred_network, onboarding_completed, created_at
	`, email).Scan(&user.ID, &user.Email, &user.PreferredNetwork, &user.OnboardingCompleted, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, preferred_network, onboarding_completed, created_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PreferredNetwork, &user.OnboardingCompleted, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetPreferredNetwork records the onboarding network choice. The preference is
// immutable once onboarding completes.
func (s *Store) SetPreferredNetwork(ctx context.Context, userID string, network models.NetworkID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET preferred_network = $2, onboarding_completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND onboarding_completed = FALSE
	`, userID, network)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyOnboarded
	}
	return nil
}

// CreateWallet records a provisioned custody wallet for a user.
func (s *Store) CreateWallet(ctx context.Context, w *models.Wallet) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO wallets (user_id, handle, address, network)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, w.UserID, w.Handle, w.Address, w.Network).Scan(&w.ID, &w.CreatedAt)
}

// GetWalletsByUser retrieves a user's wallets in insertion order. Insertion
// order is the router's tie-break, so the ordering here is load-bearing.
func (s *Store) GetWalletsByUser(ctx context.Context, userID string) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, handle, address, network, created_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Handle, &w.Address, &w.Network, &w.CreatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// CreateTransfer persists a transfer record before the first settlement call.
func (s *Store) CreateTransfer(ctx context.Context, t *models.Transfer) error {
	key := sql.NullString{String: t.IdempotencyKey, Valid: t.IdempotencyKey != ""}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO transfers (id, sender_id, recipient_email, amount, kind, source_network, dest_network, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, t.ID, t.SenderID, t.RecipientEmail, t.Amount, t.Kind, t.SourceNetwork, t.DestNetwork, t.Status, key).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

// UpdateTransferStatus records a transfer transition and the references
// collected so far. Every transition is persisted so stranded settlements can
// be reconciled out of band.
func (s *Store) UpdateTransferStatus(ctx context.Context, id string, status models.TransferStatus, refs models.TransferRefs) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transfers
		SET status = $2, deposit_ref = $3, withdraw_ref = $4, main_ref = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, refs.DepositRef, refs.WithdrawRef, refs.MainRef)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransferByIdempotencyKey returns the transfer previously created under a
// client idempotency key, if any.
func (s *Store) GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.Transfer, error) {
	var t models.Transfer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, recipient_email, amount, kind, source_network, dest_network,
		       deposit_ref, withdraw_ref, main_ref, status, created_at, updated_at
		FROM transfers WHERE idempotency_key = $1
	`, key).Scan(&t.ID, &t.SenderID, &t.RecipientEmail, &t.Amount, &t.Kind, &t.SourceNetwork, &t.DestNetwork,
		&t.Refs.DepositRef, &t.Refs.WithdrawRef, &t.Refs.MainRef, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransfersForUser retrieves transfers sent or received by a user, newest first.
func (s *Store) ListTransfersForUser(ctx context.Context, userID, email string, limit, offset int) ([]models.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, recipient_email, amount, kind, source_network, dest_network,
		       deposit_ref, withdraw_ref, main_ref, status, created_at, updated_at
		FROM transfers
		WHERE sender_id = $1 OR recipient_email = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, email, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientEmail, &t.Amount, &t.Kind, &t.SourceNetwork, &t.DestNetwork,
			&t.Refs.DepositRef, &t.Refs.WithdrawRef, &t.Refs.MainRef, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
