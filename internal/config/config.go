package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider  string
	GeminiAPIKey string
	OpenAIAPIKey string
	TextModel    string
	ImageModel   string

	RedisURL string
	DataDir  string
	// SaveTTL expires save slots; zero keeps them forever.
	SaveTTL time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxJitter   time.Duration
	RequestTimeout   time.Duration
	ImagesEnabled    bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		TextModel:    getEnv("TEXT_MODEL", ""),
		ImageModel:   getEnv("IMAGE_MODEL", ""),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),
		DataDir:  getEnv("DATA_DIR", "./data"),
	}

	var errs []error
	var err error
	if cfg.RetryMaxAttempts, err = strconv.Atoi(getEnv("RETRY_MAX_ATTEMPTS", "4")); err != nil || cfg.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be a positive integer"))
	}
	if cfg.RetryBaseDelay, err = parseDuration("RETRY_BASE_DELAY", "3s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.RetryMaxJitter, err = parseDuration("RETRY_MAX_JITTER", "1500ms"); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.SaveTTL, err = parseDuration("SAVE_TTL", "720h"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ImagesEnabled, err = strconv.ParseBool(getEnv("IMAGES_ENABLED", "true")); err != nil {
		errs = append(errs, fmt.Errorf("IMAGES_ENABLED must be a boolean"))
	}

	switch cfg.LLMProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q (supported: %s, %s)", cfg.LLMProvider, ProviderGemini, ProviderOpenAI))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration", key)
	}
	return d, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
