package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/questhunt/internal/quest"
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

// writeDomainError maps an engine or store error onto a status code.
// Broken stored content is an operator problem and is reported as 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	if errors.Is(err, quest.ErrMalformedPuzzleData) {
		logger.Error("stored puzzle data is malformed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch quest.Classify(err) {
	case quest.ClassNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case quest.ClassValidation:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case quest.ClassConflict:
		writeError(w, http.StatusConflict, err.Error())
	case quest.ClassForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
