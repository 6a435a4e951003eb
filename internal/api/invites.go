package api

import (
	"net/http"

	"stablesend/internal/validation"
)

type inviteRequest struct {
	Email  string `json:"email"`
	Amount string `json:"amount"`
}

// handleInvite notifies someone without an account that a sender wants to pay
// them. The transfer itself can only happen once the recipient signs up and
// gets wallets provisioned.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	senderEmail, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Amount == "" {
		writeError(w, http.StatusBadRequest, "Email and amount required")
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email")
		return
	}
	if _, err := validation.ValidateAmount(req.Amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.notifier.Invite(r.Context(), req.Email, senderEmail, req.Amount); err != nil {
		s.logger.Error().Err(err).Str("to", req.Email).Msg("Failed to send invitation")
		writeError(w, http.StatusBadGateway, "Failed to send invitation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Invitation sent",
	})
}
