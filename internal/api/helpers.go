package api

import (
	"encoding/json"
	"net/http"

	"stablesend/internal/validation"
)

// identityHeader carries the caller's email, injected by the external
// authentication layer in front of this service.
const identityHeader = "X-User-Email"

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := r.Header.Get(identityHeader)
	if err := validation.ValidateEmail(email); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return email, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
