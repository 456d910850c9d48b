package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps an error kind to its status code. Unclassified
// errors are logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, escaperoom.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, escaperoom.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, escaperoom.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, escaperoom.ErrInvalidState), errors.Is(err, escaperoom.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
