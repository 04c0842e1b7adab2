package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/internal/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	tests := []struct {
		name              string
		setupStorage      func() *storage.MockStorage
		setupGenerator    func() *services.MockGenerator
		expectedStatus    int
		expectedHealth    string
		expectedStorage   string
		expectedGenerator string
	}{
		{
			name: "all healthy",
			setupStorage: func() *storage.MockStorage {
				s := storage.NewMockStorage()
				s.SetPingSuccess()
				return s
			},
			setupGenerator:    services.NewMockGenerator,
			expectedStatus:    http.StatusOK,
			expectedHealth:    "healthy",
			expectedStorage:   "healthy",
			expectedGenerator: "healthy",
		},
		{
			name: "unhealthy storage",
			setupStorage: func() *storage.MockStorage {
				s := storage.NewMockStorage()
				s.SetPingError(errors.New("connection failed"))
				return s
			},
			setupGenerator:    services.NewMockGenerator,
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedStorage:   "unhealthy",
			expectedGenerator: "healthy",
		},
		{
			name:         "unhealthy generator",
			setupStorage: storage.NewMockStorage,
			setupGenerator: func() *services.MockGenerator {
				g := services.NewMockGenerator()
				g.SetNotReady(errors.New("model not found"))
				return g
			},
			expectedStatus:    http.StatusServiceUnavailable,
			expectedHealth:    "degraded",
			expectedStorage:   "healthy",
			expectedGenerator: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.setupStorage(), tt.setupGenerator(), logger)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status %q, got %q", tt.expectedHealth, response.Status)
			}
			if response.Components["storage"] != tt.expectedStorage {
				t.Errorf("Expected storage %q, got %q", tt.expectedStorage, response.Components["storage"])
			}
			if response.Components["generator"] != tt.expectedGenerator {
				t.Errorf("Expected generator %q, got %q", tt.expectedGenerator, response.Components["generator"])
			}
			if response.Service != "adventure-engine" {
				t.Errorf("Expected service 'adventure-engine', got %q", response.Service)
			}
		})
	}
}
