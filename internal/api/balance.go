package api

import (
	"errors"
	"net/http"

	"stablesend/internal/ledger"
)

func (s *Server) handleUnifiedBalance(w http.ResponseWriter, r *http.Request) {
	email, ok := s.identity(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ledger.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"total": "0.00", "breakdown": map[string]string{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	wallets, err := s.store.GetWalletsByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user.ID).Msg("Failed to load wallets")
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if len(wallets) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"total": "0.00", "breakdown": map[string]string{}})
		return
	}

	handles := make([]string, 0, len(wallets))
	for _, wallet := range wallets {
		handles = append(handles, wallet.Handle)
	}

	total, breakdown := s.balances.Aggregate(ctx, handles)

	// Re-key the breakdown from opaque wallet handles to network display names.
	enriched := make(map[string]string, len(wallets))
	for _, wallet := range wallets {
		name := wallet.Network.String()
		if nc, ok := s.networks[wallet.Network]; ok {
			name = nc.DisplayName
		}
		enriched[name] = breakdown[wallet.Handle].StringFixed(2)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     total.StringFixed(2),
		"breakdown": enriched,
	})
}
