package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/internal/storage"
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/retry"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

type testAPI struct {
	mux     *http.ServeMux
	manager *game.Manager
	gen     *services.MockGenerator
	store   *storage.MockStorage
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	policy := retry.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	api := &testAPI{
		mux:   http.NewServeMux(),
		gen:   services.NewMockGenerator(),
		store: storage.NewMockStorage(),
	}
	api.manager = game.NewManager(game.Dependencies{
		Generator: api.gen,
		Storage:   api.store,
		Policy:    policy,
		Logger:    logger,
	})
	t.Cleanup(api.manager.Close)

	NewSessionHandler(api.manager, logger).Register(api.mux)
	api.mux.Handle("GET /v1/genres", NewGenresHandler(api.store, logger))
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, req)
	return w
}

func (a *testAPI) create(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, state.PhaseStart, snap.Phase)
	return snap.ID
}

func (a *testAPI) started(t *testing.T) string {
	t.Helper()
	id := a.create(t)
	w := a.do(t, http.MethodPost, "/v1/sessions/"+id+"/start", SetupRequest{Genre: "Киберпанк детектив"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) game.Snapshot {
	t.Helper()
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func TestSessions_FullFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.create(t)

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/setup", map[string]string{
		"genre":       "Готические ужасы",
		"villainDesc": "Граф",
	})
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	assert.Equal(t, state.PhaseSetup, snap.Phase)
	assert.Equal(t, "Граф", snap.Customization.Villain)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+id+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, state.PhasePlaying, snap.Phase)
	require.NotNil(t, snap.GameData)
	assert.Equal(t, "Готические ужасы", snap.GameData.Genre)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+id+"/choices", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeSnapshot(t, w).GameData.History, 2)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+id+"/choices", ChoiceRequest{Action: "Осмотреться"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeSnapshot(t, w).GameData.History, 3)

	w = api.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var read SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&read))
	assert.False(t, read.HasSave)
	assert.Len(t, read.GameData.History, 3)
}

func TestSessions_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(api *testAPI, t *testing.T) string
		method string
		path   string
		body   any
		want   int
	}{
		{
			name:   "unknown session",
			setup:  func(api *testAPI, t *testing.T) string { return uuid.NewString() },
			method: http.MethodGet, path: "", want: http.StatusNotFound,
		},
		{
			name:   "bad session id",
			setup:  func(api *testAPI, t *testing.T) string { return "not-a-uuid" },
			method: http.MethodGet, path: "", want: http.StatusBadRequest,
		},
		{
			name:   "empty action",
			setup:  (*testAPI).started,
			method: http.MethodPost, path: "/choices", body: ChoiceRequest{Action: "   "},
			want: http.StatusBadRequest,
		},
		{
			name:   "bad json",
			setup:  (*testAPI).started,
			method: http.MethodPost, path: "/choices", body: "{not json",
			want: http.StatusBadRequest,
		},
		{
			name:   "choice out of range",
			setup:  (*testAPI).started,
			method: http.MethodPost, path: "/choices", body: map[string]int{"index": 9},
			want: http.StatusBadRequest,
		},
		{
			name:   "action before start",
			setup:  (*testAPI).create,
			method: http.MethodPost, path: "/choices", body: ChoiceRequest{Action: "Идти"},
			want: http.StatusConflict,
		},
		{
			name:   "begin without genre",
			setup:  (*testAPI).create,
			method: http.MethodPost, path: "/start", want: http.StatusConflict,
		},
		{
			name:   "missing save",
			setup:  (*testAPI).started,
			method: http.MethodPost, path: "/load", want: http.StatusNotFound,
		},
		{
			name: "corrupt save",
			setup: func(api *testAPI, t *testing.T) string {
				id := api.started(t)
				api.store.SetRaw(state.SaveSlot(id), []byte("garbage"))
				return id
			},
			method: http.MethodPost, path: "/load", want: http.StatusUnprocessableEntity,
		},
		{
			name:   "save before start",
			setup:  (*testAPI).create,
			method: http.MethodPost, path: "/save", want: http.StatusConflict,
		},
		{
			name:   "empty oracle question",
			setup:  (*testAPI).create,
			method: http.MethodPost, path: "/oracle", body: chat.OracleRequest{Question: " "},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			id := tt.setup(api, t)
			w := api.do(t, tt.method, "/v1/sessions/"+id+tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessions_TurnInFlightConflict(t *testing.T) {
	api := newTestAPI(t)
	id := api.started(t)

	release := make(chan struct{})
	api.gen.GenerateJSONFunc = func(ctx context.Context, req *prompts.Request) ([]byte, error) {
		<-release
		return []byte(services.MockTurnResultJSON), nil
	}

	done := make(chan int, 1)
	go func() {
		done <- api.do(t, http.MethodPost, "/v1/sessions/"+id+"/choices", ChoiceRequest{Action: "Налево"}).Code
	}()
	require.Eventually(t, func() bool { return api.gen.CountJSONCalls(prompts.KindTurn) == 1 }, time.Second, 5*time.Millisecond)

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/choices", ChoiceRequest{Action: "Направо"})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSessions_TurnFailureIsBadGateway(t *testing.T) {
	api := newTestAPI(t)
	id := api.started(t)
	api.gen.SetJSONError(errors.New("quota exceeded"))

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/choices", ChoiceRequest{Action: "Налево"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp struct {
		Error   string        `json:"error"`
		Session game.Snapshot `json:"session"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, state.PhaseError, resp.Session.Phase)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+id+"/restart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, state.PhaseStart, decodeSnapshot(t, w).Phase)
}

func TestSessions_SaveLoad(t *testing.T) {
	api := newTestAPI(t)
	id := api.started(t)

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/save", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	var read SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&read))
	assert.True(t, read.HasSave)

	api.do(t, http.MethodPost, "/v1/sessions/"+id+"/restart", nil)
	w = api.do(t, http.MethodPost, "/v1/sessions/"+id+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, state.PhasePlaying, decodeSnapshot(t, w).Phase)
}

func TestSessions_SaveKeyReachesEarlierSave(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/v1/sessions", CreateSessionRequest{SaveKey: "hero_42"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "hero_42", created.SaveKey)
	assert.False(t, created.HasSave)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+created.ID+"/start", SetupRequest{Genre: "Космоопера"})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/v1/sessions/"+created.ID+"/save", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodDelete, "/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodPost, "/v1/sessions", CreateSessionRequest{SaveKey: "hero_42"})
	require.Equal(t, http.StatusCreated, w.Code)
	var again SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&again))
	assert.NotEqual(t, created.ID, again.ID)
	assert.True(t, again.HasSave)

	w = api.do(t, http.MethodPost, "/v1/sessions/"+again.ID+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	assert.Equal(t, state.PhasePlaying, snap.Phase)
	assert.Equal(t, "Космоопера", snap.Genre)
}

func TestSessions_CreateRejectsBadSaveKey(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "bad alphabet", body: CreateSessionRequest{SaveKey: "a b/c"}},
		{name: "malformed json", body: `{"saveKey":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/v1/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, 0, api.manager.Len())
}

func TestSessions_Oracle(t *testing.T) {
	api := newTestAPI(t)
	id := api.started(t)

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/oracle", chat.OracleRequest{Question: "Кто я?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chat.OracleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, services.MockOracleReply, resp.Reply)
	assert.Len(t, resp.ChatHistory, 2)
}

func TestSessions_OracleFailureIsBadGateway(t *testing.T) {
	api := newTestAPI(t)
	id := api.create(t)
	api.gen.GenerateTextFunc = func(ctx context.Context, req *prompts.Request) (string, error) {
		return "", fmt.Errorf("dial tcp: connection refused")
	}

	w := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/oracle", chat.OracleRequest{Question: "Кто я?"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSessions_Delete(t *testing.T) {
	api := newTestAPI(t)
	id := api.create(t)

	w := api.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, api.manager.Len())
}

func TestGenresHandler(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/v1/genres", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp GenresResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, storage.DefaultGenres(), resp.Genres)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("wrapped: %w", game.ErrTurnInFlight)))
	assert.Equal(t, http.StatusConflict, statusFor(game.ErrOracleBusy))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: %w", game.ErrTurnFailed, retry.ErrQuotaExhausted)))
	assert.Equal(t, http.StatusBadRequest, statusFor(game.ErrInvalidSaveKey))
	assert.Equal(t, http.StatusGone, statusFor(game.ErrSessionClosed))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
