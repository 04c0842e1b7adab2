package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/internal/storage"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/retry"
)

// A provider that answers with nothing must still produce the fallback reply.
func TestSession_OracleSilentProviderFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: ""}}},
		})
	}))
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	session := NewSession(uuid.New(), "", Dependencies{
		Generator: services.NewOpenAIServiceWithConfig(cfg, "", "", logger),
		Storage:   storage.NewMockStorage(),
		Policy:    retry.DefaultPolicy(),
		Logger:    logger,
	})
	t.Cleanup(session.Close)

	reply, err := session.Ask(context.Background(), "Кто ты?")
	require.NoError(t, err)
	assert.Equal(t, prompts.OracleFallback, reply)

	snap := session.Snapshot()
	require.Len(t, snap.ChatMessages, 2)
	assert.Equal(t, prompts.OracleFallback, snap.ChatMessages[1].Text)
}
