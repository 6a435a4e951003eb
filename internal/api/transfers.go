package api

import (
	"errors"
	"net/http"
	"strconv"

	"stablesend/internal/engine"
	"stablesend/internal/ledger"
	"stablesend/internal/models"
	"stablesend/internal/router"
	"stablesend/internal/validation"
)

type createTransferRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type transferResponse struct {
	Transfer *models.Transfer `json:"transfer"`
	Warning  string          `json:"warning,omitempty"`
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	senderEmail, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req createTransferRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.RecipientEmail == "" || req.Amount == "" {
		writeError(w, http.StatusBadRequest, "Missing fields")
		return
	}

	ctx := r.Context()

	sender, err := s.store.GetUserByEmail(ctx, senderEmail)
	if err != nil {
		writeError(w, http.StatusNotFound, "Sender is not set up")
		return
	}
	senderWallets, err := s.store.GetWalletsByUser(ctx, sender.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user", sender.ID).Msg("Failed to load sender wallets")
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	recipient, err := s.store.GetUserByEmail(ctx, req.RecipientEmail)
	if err != nil {
		writeError(w, http.StatusNotFound, "Recipient not found or has no wallet linked")
		return
	}
	recipientWallets, err := s.store.GetWalletsByUser(ctx, recipient.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user", recipient.ID).Msg("Failed to load recipient wallets")
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	transfer, err := s.settler.RouteAndSettle(ctx, engine.SettleRequest{
		Sender:           sender,
		SenderWallets:    senderWallets,
		Recipient:        recipient,
		RecipientWallets: recipientWallets,
		Amount:           req.Amount,
		IdempotencyKey:   req.IdempotencyKey,
	})

	var invalidInput *validation.Error
	switch {
	case err == nil:
	case errors.Is(err, router.ErrNoWalletAvailable):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case transfer != nil:
		// Settlement was attempted and failed; the record carries the outcome.
		writeJSON(w, http.StatusBadGateway, transferResponse{Transfer: transfer})
		return
	case errors.As(err, &invalidInput), errors.Is(err, engine.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.logger.Error().Err(err).Str("sender", sender.ID).Msg("Transfer settlement failed")
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	resp := transferResponse{Transfer: transfer}
	status := http.StatusCreated
	if transfer.Status == models.StatusStranded {
		// Never reported as success: the deposit left the sender but the
		// recipient has not been credited yet.
		status = http.StatusAccepted
		resp.Warning = "Transfer may be delayed, funds are being reconciled"
	}

	if transfer.Status == models.StatusConfirmed {
		s.notify(r, sender.Email, recipient.Email, transfer.Amount)
	}

	writeJSON(w, status, resp)
}

func (s *Server) notify(r *http.Request, senderEmail, recipientEmail, amount string) {
	ctx := r.Context()
	if err := s.notifier.PaymentSent(ctx, senderEmail, recipientEmail, amount); err != nil {
		s.logger.Warn().Err(err).Str("to", senderEmail).Msg("Failed to send payment-sent notification")
	}
	if err := s.notifier.PaymentReceived(ctx, recipientEmail, senderEmail, amount); err != nil {
		s.logger.Warn().Err(err).Str("to", recipientEmail).Msg("Failed to send payment-received notification")
	}
}

type transferView struct {
	models.Transfer
	Type string `json:"type"`
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	email, ok := s.identity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ledger.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": []transferView{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	transfers, err := s.store.ListTransfersForUser(ctx, user.ID, user.Email, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user.ID).Msg("Failed to list transfers")
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	views := make([]transferView, 0, len(transfers))
	for _, t := range transfers {
		typ := "RECEIVED"
		if t.SenderID == user.ID {
			typ = "SENT"
		}
		views = append(views, transferView{Transfer: t, Type: typ})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": views})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue >= 0 {
			return intValue
		}
	}
	return defaultValue
}
