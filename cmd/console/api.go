package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/pkg/chat"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// ErrorResponse mirrors the API error body. Failed turns also carry the
// session so the UI can show the error phase.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Session *game.Snapshot `json:"session,omitempty"`
}

// APIError is a non-2xx reply from the engine.
type APIError struct {
	Status  int
	Message string
	Session *game.Snapshot
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

type apiClient struct {
	client  *http.Client
	baseURL string
}

func newAPIClient(client *http.Client, baseURL string) *apiClient {
	return &apiClient{client: client, baseURL: baseURL}
}

func (a *apiClient) testConnection(ctx context.Context) bool {
	return a.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}

func (a *apiClient) listGenres(ctx context.Context) ([]string, error) {
	var resp struct {
		Genres []string `json:"genres"`
	}
	if err := a.do(ctx, http.MethodGet, "/v1/genres", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

// createSession opens a session on saveKey's slot and reports whether that
// slot already holds a save.
func (a *apiClient) createSession(ctx context.Context, saveKey string) (*game.Snapshot, bool, error) {
	var resp struct {
		game.Snapshot
		HasSave bool `json:"hasSave"`
	}
	body := map[string]string{"saveKey": saveKey}
	if err := a.do(ctx, http.MethodPost, "/v1/sessions", body, &resp); err != nil {
		return nil, false, err
	}
	return &resp.Snapshot, resp.HasSave, nil
}

func (a *apiClient) startSession(ctx context.Context, id, genre string, c state.Customization) (*game.Snapshot, error) {
	req := struct {
		Genre string `json:"genre"`
		state.Customization
	}{genre, c}
	return a.sessionCall(ctx, id, "/start", req)
}

func (a *apiClient) submitAction(ctx context.Context, id, action string) (*game.Snapshot, error) {
	return a.sessionCall(ctx, id, "/choices", map[string]any{"action": action})
}

func (a *apiClient) submitChoice(ctx context.Context, id string, index int) (*game.Snapshot, error) {
	return a.sessionCall(ctx, id, "/choices", map[string]any{"index": index})
}

func (a *apiClient) restart(ctx context.Context, id string) (*game.Snapshot, error) {
	return a.sessionCall(ctx, id, "/restart", nil)
}

func (a *apiClient) load(ctx context.Context, id string) (*game.Snapshot, error) {
	return a.sessionCall(ctx, id, "/load", nil)
}

func (a *apiClient) save(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/save", nil, nil)
}

func (a *apiClient) getSession(ctx context.Context, id string) (*game.Snapshot, error) {
	var snap game.Snapshot
	if err := a.do(ctx, http.MethodGet, "/v1/sessions/"+id, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *apiClient) askOracle(ctx context.Context, id, question string) (*chat.OracleResponse, error) {
	var resp chat.OracleResponse
	err := a.do(ctx, http.MethodPost, "/v1/sessions/"+id+"/oracle", chat.OracleRequest{Question: question}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *apiClient) sessionCall(ctx context.Context, id, action string, body any) (*game.Snapshot, error) {
	var snap game.Snapshot
	if err := a.do(ctx, http.MethodPost, "/v1/sessions/"+id+action, body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return &APIError{Status: resp.StatusCode, Message: string(data)}
		}
		return &APIError{Status: resp.StatusCode, Message: errorResp.Error, Session: errorResp.Session}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
