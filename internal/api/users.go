package api

import (
	"errors"
	"net/http"

	"stablesend/internal/ledger"
	"stablesend/internal/models"
	"stablesend/internal/validation"
)

type checkUserRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identity(w, r); !ok {
		return
	}

	var req checkUserRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Email required")
		return
	}

	_, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists": err == nil,
		"email":  req.Email,
	})
}

type setupRequest struct {
	Network string `json:"network"`
}

// handleSetup completes onboarding: it provisions one custody wallet per
// supported network for the caller, then records the preferred network.
// The preference is immutable afterwards.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	email, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req setupRequest
	if !readJSON(w, r, &req) {
		return
	}
	network, err := validation.ValidateNetwork(req.Network)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid network selection")
		return
	}

	ctx := r.Context()
	user, err := s.store.GetOrCreateUserByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to load user")
		writeError(w, http.StatusInternalServerError, "Failed to complete setup")
		return
	}
	if user.OnboardingCompleted {
		writeError(w, http.StatusConflict, "Onboarding already completed")
		return
	}

	wallets, err := s.provisionWallets(r, user)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to provision wallets")
		return
	}

	if err := s.store.SetPreferredNetwork(ctx, user.ID, network); err != nil {
		if errors.Is(err, ledger.ErrAlreadyOnboarded) {
			writeError(w, http.StatusConflict, "Onboarding already completed")
			return
		}
		s.logger.Error().Err(err).Str("user", user.ID).Msg("Failed to set preferred network")
		writeError(w, http.StatusInternalServerError, "Failed to complete setup")
		return
	}
	user.PreferredNetwork = network
	user.OnboardingCompleted = true

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user,
		"wallets": wallets,
	})
}

// provisionWallets creates wallets on every supported network the user does
// not yet have one on.
func (s *Server) provisionWallets(r *http.Request, user *models.User) ([]models.Wallet, error) {
	ctx := r.Context()

	existing, err := s.store.GetWalletsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	owned := make(map[models.NetworkID]bool, len(existing))
	for _, w := range existing {
		owned[w.Network] = true
	}

	var missing []models.NetworkID
	for _, n := range models.SupportedNetworks() {
		if !owned[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return existing, nil
	}

	provisioned, err := s.custody.CreateWallets(ctx, user.ID, missing)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user.ID).Msg("Failed to provision wallets")
		return nil, err
	}

	for _, p := range provisioned {
		wallet := models.Wallet{
			UserID:  user.ID,
			Handle:  p.Handle,
			Address: p.Address,
			Network: p.Network,
		}
		if err := s.store.CreateWallet(ctx, &wallet); err != nil {
			s.logger.Error().
				Err(err).
				Str("user", user.ID).
				Str("network", p.Network.String()).
				Msg("Failed to record provisioned wallet")
			return nil, err
		}
		existing = append(existing, wallet)
	}
	return existing, nil
}
