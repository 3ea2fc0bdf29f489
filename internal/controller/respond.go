// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/logger"
)

const userHeader = "X-User-ID"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes; unknown errors are
// logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case appErrors.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case appErrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case appErrors.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.NewValidation("", "invalid body: "+err.Error())
	}
	return nil
}

// ownerID returns the tenant of the request, writing a 401 when it is missing.
func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": userHeader + " header is required"})
		return "", false
	}
	return id, true
}
