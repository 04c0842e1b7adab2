package storage

import (
	"context"
	"errors"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

var (
	// ErrNoSave is returned when a save slot is empty.
	ErrNoSave = errors.New("no saved game")
	// ErrSaveCorrupt is returned when a save slot holds an unreadable blob.
	ErrSaveCorrupt = errors.New("saved game is corrupt")
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Storage defines the interface for save slots and static game data
type Storage interface {
	HealthChecker

	// Close closes the storage connection
	Close() error

	// SaveGame writes a snapshot to the slot, replacing any previous one
	SaveGame(ctx context.Context, slot string, save *state.SaveFile) error

	// LoadGame reads the slot. Returns ErrNoSave or ErrSaveCorrupt on failure
	LoadGame(ctx context.Context, slot string) (*state.SaveFile, error)

	// DeleteGame clears the slot; deleting an empty slot is not an error
	DeleteGame(ctx context.Context, slot string) error

	// HasSave reports whether the slot holds anything
	HasSave(ctx context.Context, slot string) (bool, error)

	// ListGenres returns the genres offered at game start
	ListGenres(ctx context.Context) ([]string, error)
}
