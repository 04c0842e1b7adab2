package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing. Saves are
// kept JSON-encoded so loads return independent copies, as Redis would.
type MockStorage struct {
	mu        sync.RWMutex
	saves     map[string][]byte
	genres    []string
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		saves:  make(map[string][]byte),
		genres: DefaultGenres(),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes SaveGame fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetRaw stores an arbitrary blob in a slot, for corrupt-save tests
func (m *MockStorage) SetRaw(slot string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[slot] = data
}

// SetGenres replaces the catalog
func (m *MockStorage) SetGenres(genres []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genres = genres
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveGame(ctx context.Context, slot string, save *state.SaveFile) error {
	if save == nil || save.GameData == nil {
		return errors.New("save file cannot be empty")
	}
	data, err := json.Marshal(save)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.saves[slot] = data
	return nil
}

func (m *MockStorage) LoadGame(ctx context.Context, slot string) (*state.SaveFile, error) {
	m.mu.RLock()
	data, ok := m.saves[slot]
	m.mu.RUnlock()
	if !ok || len(data) == 0 {
		return nil, ErrNoSave
	}
	return decodeSave(data)
}

func (m *MockStorage) DeleteGame(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saves, slot)
	return nil
}

func (m *MockStorage) HasSave(ctx context.Context, slot string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.saves[slot]
	return ok, nil
}

func (m *MockStorage) ListGenres(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.genres...), nil
}
