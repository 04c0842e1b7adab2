package game

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/metrics"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Manager owns the live sessions.
type Manager struct {
	deps Dependencies

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session in the Start phase with a save slot of its own.
func (m *Manager) Create() *Session {
	return m.add(NewSession(uuid.New(), "", m.deps))
}

// Open starts a new session bound to a client-chosen save key, so a save
// written by an earlier session (or an earlier server) can be loaded.
func (m *Manager) Open(saveKey string) (*Session, error) {
	key, err := state.NormalizeSaveKey(saveKey)
	if err != nil {
		return nil, err
	}
	return m.add(NewSession(uuid.New(), key, m.deps)), nil
}

func (m *Manager) add(s *Session) *Session {
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	metrics.SessionOpened()
	s.logger.Info("Session created", "save_key", s.SaveKey())
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes the session and forgets it. Its save slot is kept.
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.SessionClosed()
	s.logger.Info("Session deleted")
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close shuts down every session, used on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.SessionClosed()
	}
}
