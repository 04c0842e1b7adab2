package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwebster45206/adventure-engine/internal/config"
	"github.com/jwebster45206/adventure-engine/internal/game"
	"github.com/jwebster45206/adventure-engine/internal/handlers"
	"github.com/jwebster45206/adventure-engine/internal/logger"
	"github.com/jwebster45206/adventure-engine/internal/middleware"
	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/internal/services/events"
	"github.com/jwebster45206/adventure-engine/internal/storage"
	"github.com/jwebster45206/adventure-engine/pkg/retry"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Adventure Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"text_model", cfg.TextModel,
		"images_enabled", cfg.ImagesEnabled,
		"save_ttl", cfg.SaveTTL)

	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer initCancel()

	generator, err := newGenerator(initCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create generator", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := generator.Close(); err != nil {
			log.Error("Error closing generator", "error", err)
		}
	}()

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log).WithSaveTTL(cfg.SaveTTL)
	if err := store.WaitForConnection(initCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.MaxJitter = cfg.RetryMaxJitter
	policy.AttemptTimeout = cfg.RequestTimeout

	manager := game.NewManager(game.Dependencies{
		Generator:     generator,
		Storage:       store,
		Events:        events.NewBroadcaster(store.Client(), log),
		Policy:        policy,
		ImagesEnabled: cfg.ImagesEnabled,
		Logger:        log,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /health", handlers.NewHealthHandler(store, generator, log))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /v1/genres", handlers.NewGenresHandler(store, log))
	handlers.NewSessionHandler(manager, log).Register(mux)
	mux.Handle("GET /v1/sessions/{id}/events", handlers.NewEventsHandler(store.Client(), manager, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log)(mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: turns may wait out the full retry schedule and SSE streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	manager.Close()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

func newGenerator(ctx context.Context, cfg *config.Config, log *slog.Logger) (services.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		log.Info("Using OpenAI provider")
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.TextModel, cfg.ImageModel, log), nil
	default:
		log.Info("Using Gemini provider")
		return services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.TextModel, cfg.ImageModel, log)
	}
}
