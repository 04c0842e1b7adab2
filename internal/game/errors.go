package game

import (
	"errors"

	"github.com/jwebster45206/adventure-engine/internal/storage"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

var (
	ErrTurnInFlight     = errors.New("a turn is already being resolved")
	ErrEmptyAction      = errors.New("action cannot be empty")
	ErrEmptyQuestion    = errors.New("question cannot be empty")
	ErrEmptyGenre       = errors.New("genre is required")
	ErrInvalidPhase     = errors.New("operation not allowed in the current phase")
	ErrOracleBusy       = errors.New("the oracle is still answering")
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session is closed")

	// ErrTurnFailed wraps any init or turn failure that moved the session to Error.
	ErrTurnFailed = errors.New("turn failed")

	// ErrSuperseded is returned when a restart or load replaced the session
	// state while a request was outstanding. The result was discarded.
	ErrSuperseded = errors.New("result discarded after restart")

	ErrNoSave         = storage.ErrNoSave
	ErrInvalidSaveKey = state.ErrInvalidSaveKey
)
