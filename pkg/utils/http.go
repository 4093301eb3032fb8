package utils

import (
	"encoding/json"
	"net/http"
)

// codeForStatus maps an HTTP status onto the error-code vocabulary the
// socket surface uses, so REST and socket clients share one taxonomy.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "AUTHENTICATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "PERSISTENCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// JSONError writes a JSON error body carrying the taxonomy code derived
// from the status plus a human-readable message.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    codeForStatus(status),
			"message": message,
		},
	})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}
