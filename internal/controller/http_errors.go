package controller

import (
	"encoding/json"
	"net/http"

	appErrors "github.com/KofiRusu/Neon-v2.2-sub005/internal/errors"
)

// writeError maps the error taxonomy onto HTTP statuses. Validation
// failures carry their specific message so callers can act on them.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsValidation(err):
		status = http.StatusBadRequest
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case appErrors.IsRetryable(err):
		status = http.StatusTooManyRequests
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
