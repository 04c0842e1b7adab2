package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/internal/storage"
)

const maxBodyBytes = 64 << 10

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeGameError maps a session error to its HTTP status.
func writeGameError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "status", status, "error", err)
	} else {
		logger.Debug("Request rejected", "status", status, "error", err)
	}
	writeError(w, logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrTurnInFlight),
		errors.Is(err, game.ErrInvalidPhase),
		errors.Is(err, game.ErrOracleBusy),
		errors.Is(err, game.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, game.ErrEmptyAction),
		errors.Is(err, game.ErrEmptyQuestion),
		errors.Is(err, game.ErrEmptyGenre),
		errors.Is(err, game.ErrInvalidSaveKey),
		errors.Is(err, game.ErrChoiceOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, storage.ErrNoSave):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrSaveCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, game.ErrTurnFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads an optional JSON body into dst. An empty body is not an error.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
