package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/logger"
	"github.com/jwebster45206/adventure-engine/internal/metrics"
	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/internal/services/events"
	"github.com/jwebster45206/adventure-engine/internal/storage"
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/response"
	"github.com/jwebster45206/adventure-engine/pkg/retry"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Dependencies are the collaborators shared by every session.
type Dependencies struct {
	Generator     services.Generator
	Storage       storage.Storage
	Events        events.Publisher // optional
	Policy        retry.Policy
	ImagesEnabled bool
	Logger        *slog.Logger
}

// Session is one adventure. All exported methods are safe for concurrent
// use. The mutex is never held across a call to the generator or storage.
type Session struct {
	id      uuid.UUID
	saveKey string
	slot    string
	gen    services.Generator
	store  storage.Storage
	events events.Publisher
	images *ImageRequester
	logger *slog.Logger

	turnPolicy   retry.Policy
	oraclePolicy retry.Policy
	imagesOn     bool

	mu            sync.Mutex
	phase         state.Phase
	generation    uint64
	inFlight      bool
	oracleBusy    bool
	genre         string
	customization state.Customization
	gameData      *state.GameData
	chatLog       []chat.ChatMessage
	lastErr       error
	closed        bool

	// background work outlives the request that started it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session in the Start phase. Sessions opened with the
// same save key share a save slot, so a save outlives the session that wrote
// it. An empty key falls back to the session ID.
func NewSession(id uuid.UUID, saveKey string, deps Dependencies) *Session {
	if saveKey == "" {
		saveKey = id.String()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = logger.WithSession(log, id.String())

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:           id,
		saveKey:      saveKey,
		slot:         state.SaveSlot(saveKey),
		gen:          deps.Generator,
		store:        deps.Storage,
		events:       deps.Events,
		images:       NewImageRequester(deps.Generator, deps.Policy, log),
		logger:       log,
		turnPolicy:   withRetryHook(deps.Policy, prompts.KindTurn, log),
		oraclePolicy: withRetryHook(deps.Policy, prompts.KindOracle, log),
		imagesOn:     deps.ImagesEnabled,
		phase:        state.PhaseStart,
		chatLog:      make([]chat.ChatMessage, 0),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// SaveKey names the slot this session saves to and loads from.
func (s *Session) SaveKey() string { return s.saveKey }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() state.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a deep copy of the session's visible state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SelectGenre records the genre and optional world seeds. Allowed in Start and Setup.
func (s *Session) SelectGenre(genre string, c state.Customization) error {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return ErrEmptyGenre
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != state.PhaseStart && s.phase != state.PhaseSetup {
		return fmt.Errorf("%w: cannot choose a genre in %s", ErrInvalidPhase, s.phase)
	}
	s.genre = genre
	s.customization = c
	s.phase = state.PhaseSetup
	s.logger.Debug("Genre selected", "genre", genre)
	return nil
}

// Begin generates the hero and the opening turn.
func (s *Session) Begin(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inFlight {
		s.mu.Unlock()
		metrics.TurnOutcome(string(prompts.KindInit), "rejected")
		return nil, ErrTurnInFlight
	}
	if s.phase != state.PhaseSetup {
		phase := s.phase
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot begin in %s", ErrInvalidPhase, phase)
	}

	req, err := prompts.New().
		WithGenre(s.genre).
		WithCustomization(s.customization).
		BuildInit()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.phase = state.PhaseLoading
	s.inFlight = true
	gen := s.generation
	genre := s.genre
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Starting adventure", "genre", genre)

	return detach(ctx, s, func(bg context.Context) (*Snapshot, error) {
		raw, err := retry.Do(bg, s.turnPolicy, func(ctx context.Context) ([]byte, error) {
			return s.gen.GenerateJSON(ctx, req)
		})
		var result *response.InitResult
		if err == nil {
			result, err = response.ParseInit(raw)
		}
		return s.commitInit(gen, genre, result, err)
	})
}

// Start selects a genre and begins in one step.
func (s *Session) Start(ctx context.Context, genre string, c state.Customization) (*Snapshot, error) {
	if err := s.SelectGenre(genre, c); err != nil {
		return nil, err
	}
	return s.Begin(ctx)
}

// Submit resolves one player action. Only one turn may be outstanding.
func (s *Session) Submit(ctx context.Context, action string) (*Snapshot, error) {
	action = strings.TrimSpace(action)

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inFlight {
		s.mu.Unlock()
		metrics.TurnOutcome(string(prompts.KindTurn), "rejected")
		return nil, ErrTurnInFlight
	}
	if action == "" {
		s.mu.Unlock()
		metrics.TurnOutcome(string(prompts.KindTurn), "rejected")
		return nil, ErrEmptyAction
	}
	if !s.phase.AcceptsActions() || s.gameData == nil {
		phase := s.phase
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot act in %s", ErrInvalidPhase, phase)
	}

	req, err := prompts.New().
		WithGameData(s.gameData).
		WithAction(action).
		WithCombat(s.phase == state.PhaseCombat).
		BuildTurn()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.inFlight = true
	gen := s.generation
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Debug("Resolving turn", "action", action)

	return detach(ctx, s, func(bg context.Context) (*Snapshot, error) {
		raw, err := retry.Do(bg, s.turnPolicy, func(ctx context.Context) ([]byte, error) {
			return s.gen.GenerateJSON(ctx, req)
		})
		var result *response.TurnResult
		if err == nil {
			result, err = response.ParseTurnResult(raw)
		}
		return s.commitTurn(gen, result, err)
	})
}

// SubmitChoice submits one of the current turn's suggested choices.
func (s *Session) SubmitChoice(ctx context.Context, index int) (*Snapshot, error) {
	s.mu.Lock()
	var choices []string
	if s.gameData != nil && s.gameData.CurrentTurn != nil {
		choices = s.gameData.CurrentTurn.Choices
	}
	if index < 0 || index >= len(choices) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrChoiceOutOfRange, index, len(choices))
	}
	choice := choices[index]
	s.mu.Unlock()

	return s.Submit(ctx, choice)
}

// Restart forgets the adventure and returns to Start. Outstanding results
// are discarded when they arrive. Leaving GameOver also clears the save.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	wasOver := s.phase == state.PhaseGameOver
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("Session restarted", "cleared_save", wasOver)
	if wasOver {
		if err := s.store.DeleteGame(ctx, s.slot); err != nil {
			s.logger.Warn("Failed to clear save after game over", "error", err)
			return fmt.Errorf("failed to clear save: %w", err)
		}
	}
	return nil
}

// Ask puts a question to the oracle. The question is logged immediately;
// the reply is appended only on success.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.oracleBusy {
		s.mu.Unlock()
		return "", ErrOracleBusy
	}
	b := prompts.New()
	if s.gameData != nil {
		b = b.WithHistory(s.gameData.History)
	}
	req, err := b.BuildOracle(question)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.chatLog = append(s.chatLog, chat.UserMessage(question))
	s.oracleBusy = true
	gen := s.generation
	s.wg.Add(1)
	s.mu.Unlock()

	return detach(ctx, s, func(bg context.Context) (string, error) {
		reply, err := retry.Do(bg, s.oraclePolicy, func(ctx context.Context) (string, error) {
			return s.gen.GenerateText(ctx, req)
		})
		return s.commitOracle(gen, reply, err)
	})
}

// Save writes the adventure and oracle log to the session's slot.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.phase.AcceptsActions() || s.gameData == nil || s.gameData.CurrentTurn == nil {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: nothing to save in %s", ErrInvalidPhase, phase)
	}
	save := &state.SaveFile{
		GameData:     s.gameData.Clone(),
		ChatMessages: append([]chat.ChatMessage(nil), s.chatLog...),
	}
	s.mu.Unlock()

	if err := s.store.SaveGame(ctx, s.slot, save); err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	s.logger.Info("Game saved", "turn", save.GameData.TurnNumber())
	return nil
}

// Load replaces the session state with the saved adventure. On any error
// the session is unchanged.
func (s *Session) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	s.mu.Unlock()

	save, err := s.store.LoadGame(ctx, s.slot)
	if err != nil {
		if errors.Is(err, storage.ErrSaveCorrupt) {
			s.logger.Warn("Saved game is corrupt", "error", err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil, ErrTurnInFlight
	}
	s.generation++
	s.oracleBusy = false
	s.lastErr = nil
	s.gameData = save.GameData
	s.chatLog = save.ChatMessages
	s.genre = save.GameData.Genre
	s.phase = save.ResumePhase()
	s.logger.Info("Game loaded", "turn", s.gameData.TurnNumber(), "phase", s.phase)
	return s.snapshotLocked(), nil
}

// HasSave reports whether the session's slot holds a save.
func (s *Session) HasSave(ctx context.Context) (bool, error) {
	return s.store.HasSave(ctx, s.slot)
}

// Wait blocks until all background work started so far has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels background work and waits for it to stop.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) commitInit(gen uint64, genre string, result *response.InitResult, err error) (*Snapshot, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		metrics.StaleResult(string(prompts.KindInit))
		s.logger.Debug("Discarding stale init result")
		return nil, ErrSuperseded
	}
	s.inFlight = false

	if err != nil {
		snap := s.failLocked(prompts.KindInit, err)
		s.mu.Unlock()
		s.publishError(err)
		return snap, fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}

	stats := result.Stats
	stats.HP = stats.MaxHP

	gd := state.NewGameData(genre)
	gd.CharacterDescription = result.CharacterDescription
	gd.Stats = stats
	gd.Append(result.Turn)
	s.gameData = gd
	s.lastErr = nil
	s.phase = state.PhaseForTurn(gd.CurrentTurn)

	turnNo := gd.TurnNumber()
	location := gd.CurrentTurn.LocationName
	phase := s.phase
	imagePrompt := gd.CurrentTurn.ImagePrompt
	snap := s.snapshotLocked()
	s.mu.Unlock()

	metrics.TurnOutcome(string(prompts.KindInit), "committed")
	s.logger.Info("Adventure started", "phase", phase, "location", location)
	s.publish(func(ctx context.Context, p events.Publisher) error {
		return p.PublishTurnCommitted(ctx, s.id, turnNo, location, string(phase))
	})
	s.dispatchImage(gen, turnNo, imagePrompt)
	return snap, nil
}

func (s *Session) commitTurn(gen uint64, result *response.TurnResult, err error) (*Snapshot, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		metrics.StaleResult(string(prompts.KindTurn))
		s.logger.Debug("Discarding stale turn result")
		return nil, ErrSuperseded
	}
	s.inFlight = false

	if err != nil {
		snap := s.failLocked(prompts.KindTurn, err)
		s.mu.Unlock()
		s.publishError(err)
		return snap, fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}

	gd := s.gameData
	gd.Stats = result.Stats.Clamp()
	gd.Append(result.Turn)
	s.lastErr = nil

	outcome := "committed"
	if gd.Stats.IsDead() {
		s.phase = state.PhaseGameOver
		outcome = "game_over"
	} else {
		s.phase = state.PhaseForTurn(gd.CurrentTurn)
	}

	turnNo := gd.TurnNumber()
	location := gd.CurrentTurn.LocationName
	phase := s.phase
	imagePrompt := gd.CurrentTurn.ImagePrompt
	snap := s.snapshotLocked()
	s.mu.Unlock()

	metrics.TurnOutcome(string(prompts.KindTurn), outcome)
	s.logger.Info("Turn committed", "turn", turnNo, "phase", phase, "hp", snap.GameData.Stats.HP)
	s.publish(func(ctx context.Context, p events.Publisher) error {
		return p.PublishTurnCommitted(ctx, s.id, turnNo, location, string(phase))
	})
	if phase == state.PhaseGameOver {
		s.publish(func(ctx context.Context, p events.Publisher) error {
			return p.PublishGameOver(ctx, s.id, turnNo)
		})
	}
	s.dispatchImage(gen, turnNo, imagePrompt)
	return snap, nil
}

func (s *Session) commitOracle(gen uint64, reply string, err error) (string, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		metrics.StaleResult(string(prompts.KindOracle))
		return "", ErrSuperseded
	}
	s.oracleBusy = false

	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("Oracle failed", "error", err)
		return "", fmt.Errorf("oracle failed: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = prompts.OracleFallback
	}
	s.chatLog = append(s.chatLog, chat.ModelMessage(reply))
	s.mu.Unlock()

	s.publish(func(ctx context.Context, p events.Publisher) error {
		return p.PublishOracleReplied(ctx, s.id, reply)
	})
	return reply, nil
}

// dispatchImage requests an illustration in the background. The result is
// applied only if the session is still on the same generation and turn.
func (s *Session) dispatchImage(gen uint64, turnNo int, descriptor string) {
	if !s.imagesOn || strings.TrimSpace(descriptor) == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		img := s.images.Request(s.ctx, descriptor)
		if img == nil {
			return
		}
		s.applyImage(gen, turnNo, img)
	}()
}

func (s *Session) applyImage(gen uint64, turnNo int, img *state.Image) {
	s.mu.Lock()
	if gen != s.generation || s.gameData == nil || s.gameData.TurnNumber() != turnNo {
		s.mu.Unlock()
		metrics.StaleResult(string(prompts.KindImage))
		s.logger.Debug("Discarding stale image", "issued_for", turnNo)
		return
	}
	s.gameData.CurrentImage = img
	s.gameData.ImageTurn = turnNo
	s.mu.Unlock()

	s.publish(func(ctx context.Context, p events.Publisher) error {
		return p.PublishImageReady(ctx, s.id, turnNo)
	})
}

func (s *Session) failLocked(kind prompts.Kind, err error) *Snapshot {
	s.phase = state.PhaseError
	s.lastErr = err
	metrics.TurnOutcome(string(kind), "failed")
	s.logger.Error("Request failed, session moved to error", "kind", kind, "error", err)
	return s.snapshotLocked()
}

func (s *Session) resetLocked() {
	s.generation++
	s.phase = state.PhaseStart
	s.inFlight = false
	s.oracleBusy = false
	s.genre = ""
	s.customization = state.Customization{}
	s.gameData = nil
	s.chatLog = make([]chat.ChatMessage, 0)
	s.lastErr = nil
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) publishError(err error) {
	s.publish(func(ctx context.Context, p events.Publisher) error {
		return p.PublishSessionError(ctx, s.id, err.Error())
	})
}

// publish sends an event. Failures are logged by the publisher and never
// affect session state.
func (s *Session) publish(fn func(ctx context.Context, p events.Publisher) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.ctx, s.events); err != nil {
		s.logger.Debug("Event not delivered", "error", err)
	}
}

// detach runs fn on the session's background context so that the result is
// committed even if the caller goes away. The caller waits for the result
// or for its own context to end. The caller must have done s.wg.Add(1)
// while holding the lock.
func detach[T any](ctx context.Context, s *Session, fn func(bg context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer s.wg.Done()
		v, err := fn(s.ctx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
