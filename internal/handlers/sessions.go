package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// SetupRequest selects a genre and optional world seeds.
type SetupRequest struct {
	Genre string `json:"genre"`
	state.Customization
}

// ChoiceRequest submits either a suggested choice by index or free text.
type ChoiceRequest struct {
	Action string `json:"action,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// CreateSessionRequest optionally names the save slot. Clients that reuse a
// save key can load saves written by earlier sessions.
type CreateSessionRequest struct {
	SaveKey string `json:"saveKey,omitempty"`
}

// SessionResponse is a snapshot plus whether the session has a save.
type SessionResponse struct {
	*game.Snapshot
	HasSave bool `json:"hasSave"`
}

type SessionHandler struct {
	manager *game.Manager
	logger  *slog.Logger
}

func NewSessionHandler(manager *game.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, logger: logger}
}

// Register mounts the session routes:
// POST   /v1/sessions               - Create a session, optionally bound to a save key
// GET    /v1/sessions/{id}          - Read a session
// DELETE /v1/sessions/{id}          - Delete a session
// POST   /v1/sessions/{id}/setup    - Choose genre and customization
// POST   /v1/sessions/{id}/start    - Generate the hero and first turn
// POST   /v1/sessions/{id}/choices  - Submit a player action
// POST   /v1/sessions/{id}/restart  - Start over
// POST   /v1/sessions/{id}/save     - Save to the session's slot
// POST   /v1/sessions/{id}/load     - Load from the session's slot
// POST   /v1/sessions/{id}/oracle   - Ask the oracle
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", h.handleCreate)
	mux.HandleFunc("GET /v1/sessions/{id}", h.withSession(h.handleRead))
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/setup", h.withSession(h.handleSetup))
	mux.HandleFunc("POST /v1/sessions/{id}/start", h.withSession(h.handleStart))
	mux.HandleFunc("POST /v1/sessions/{id}/choices", h.withSession(h.handleChoice))
	mux.HandleFunc("POST /v1/sessions/{id}/restart", h.withSession(h.handleRestart))
	mux.HandleFunc("POST /v1/sessions/{id}/save", h.withSession(h.handleSave))
	mux.HandleFunc("POST /v1/sessions/{id}/load", h.withSession(h.handleLoad))
	mux.HandleFunc("POST /v1/sessions/{id}/oracle", h.withSession(h.handleOracle))
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s *game.Session)

func (h *SessionHandler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			h.logger.Warn("Invalid session ID", "id", r.PathValue("id"), "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
			return
		}
		s, err := h.manager.Get(id)
		if err != nil {
			writeGameError(w, h.logger, err)
			return
		}
		next(w, r, s)
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	var s *game.Session
	if req.SaveKey == "" {
		s = h.manager.Create()
	} else {
		var err error
		if s, err = h.manager.Open(req.SaveKey); err != nil {
			writeGameError(w, h.logger, err)
			return
		}
	}
	hasSave, err := s.HasSave(r.Context())
	if err != nil {
		h.logger.Warn("Failed to check save slot", "session_id", s.ID(), "error", err)
	}
	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{Snapshot: s.Snapshot(), HasSave: hasSave})
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, s *game.Session) {
	hasSave, err := s.HasSave(r.Context())
	if err != nil {
		h.logger.Warn("Failed to check save slot", "session_id", s.ID(), "error", err)
	}
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{Snapshot: s.Snapshot(), HasSave: hasSave})
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	if err := h.manager.Delete(id); err != nil {
		writeGameError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleSetup(w http.ResponseWriter, r *http.Request, s *game.Session) {
	var req SetupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := s.SelectGenre(req.Genre, req.Customization); err != nil {
		writeGameError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

// handleStart begins the adventure. A body with a genre selects it first.
func (h *SessionHandler) handleStart(w http.ResponseWriter, r *http.Request, s *game.Session) {
	var req SetupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	var snap *game.Snapshot
	var err error
	if req.Genre != "" {
		snap, err = s.Start(r.Context(), req.Genre, req.Customization)
	} else {
		snap, err = s.Begin(r.Context())
	}
	h.writeTurn(w, snap, err)
}

func (h *SessionHandler) handleChoice(w http.ResponseWriter, r *http.Request, s *game.Session) {
	var req ChoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	var snap *game.Snapshot
	var err error
	if req.Index != nil {
		snap, err = s.SubmitChoice(r.Context(), *req.Index)
	} else {
		snap, err = s.Submit(r.Context(), req.Action)
	}
	h.writeTurn(w, snap, err)
}

func (h *SessionHandler) handleRestart(w http.ResponseWriter, r *http.Request, s *game.Session) {
	if err := s.Restart(r.Context()); err != nil {
		writeGameError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) handleSave(w http.ResponseWriter, r *http.Request, s *game.Session) {
	if err := s.Save(r.Context()); err != nil {
		writeGameError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleLoad(w http.ResponseWriter, r *http.Request, s *game.Session) {
	snap, err := s.Load(r.Context())
	if err != nil {
		writeGameError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

func (h *SessionHandler) handleOracle(w http.ResponseWriter, r *http.Request, s *game.Session) {
	var req chat.OracleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.Ask(r.Context(), req.Question)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// the oracle lane never changes game state; report it as upstream
			status = http.StatusBadGateway
		}
		writeError(w, h.logger, status, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, chat.OracleResponse{
		Reply:       reply,
		ChatHistory: s.Snapshot().ChatMessages,
	})
}

// writeTurn reports a turn outcome. Failed turns still carry the session in
// the Error phase so clients can offer a restart.
func (h *SessionHandler) writeTurn(w http.ResponseWriter, snap *game.Snapshot, err error) {
	if err == nil {
		writeJSON(w, h.logger, http.StatusOK, snap)
		return
	}
	if errors.Is(err, game.ErrTurnFailed) && snap != nil {
		h.logger.Warn("Turn failed", "session_id", snap.ID, "error", err)
		writeJSON(w, h.logger, http.StatusBadGateway, struct {
			ErrorResponse
			Session *game.Snapshot `json:"session"`
		}{ErrorResponse{Error: err.Error()}, snap})
		return
	}
	writeGameError(w, h.logger, err)
}
