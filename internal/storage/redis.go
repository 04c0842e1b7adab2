package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// RedisStorage implements the Storage interface using Redis for save slots
// and the filesystem (with an embedded fallback) for the genre catalog
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
	saveTTL time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// bare host:port or a redis:// URL.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("Invalid redis URL, falling back to address", "url", redisURL, "error", err)
		} else {
			opts = parsed
		}
	}

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  redis.NewClient(opts),
		logger:  logger,
		dataDir: dataDir,
	}
}

// WithSaveTTL expires save slots after ttl. Zero keeps them forever.
func (r *RedisStorage) WithSaveTTL(ttl time.Duration) *RedisStorage {
	r.saveTTL = ttl
	return r
}

// Client exposes the underlying connection for the event broadcaster.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Save slot operations (Redis-backed)

func (r *RedisStorage) SaveGame(ctx context.Context, slot string, save *state.SaveFile) error {
	if save == nil || save.GameData == nil {
		return errors.New("save file cannot be empty")
	}

	data, err := json.Marshal(save)
	if err != nil {
		r.logger.Error("Failed to marshal save", "slot", slot, "error", err)
		return fmt.Errorf("failed to marshal save: %w", err)
	}

	if err := r.client.Set(ctx, slot, data, r.saveTTL).Err(); err != nil {
		r.logger.Error("Failed to save game", "slot", slot, "error", err)
		return fmt.Errorf("failed to save game: %w", err)
	}
	r.logger.Debug("Game saved", "slot", slot, "bytes", len(data))
	return nil
}

func (r *RedisStorage) LoadGame(ctx context.Context, slot string) (*state.SaveFile, error) {
	data, err := r.client.Get(ctx, slot).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSave
		}
		r.logger.Error("Failed to load game", "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to load game: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoSave
	}
	return decodeSave(data)
}

func (r *RedisStorage) DeleteGame(ctx context.Context, slot string) error {
	if err := r.client.Del(ctx, slot).Err(); err != nil {
		r.logger.Error("Failed to delete game", "slot", slot, "error", err)
		return fmt.Errorf("failed to delete game: %w", err)
	}
	return nil
}

func (r *RedisStorage) HasSave(ctx context.Context, slot string) (bool, error) {
	n, err := r.client.Exists(ctx, slot).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check save: %w", err)
	}
	return n > 0, nil
}

// Genre catalog (filesystem-backed)

func (r *RedisStorage) ListGenres(ctx context.Context) ([]string, error) {
	return loadGenres(r.dataDir, r.logger)
}

// decodeSave parses a stored blob. Anything that does not decode into a
// save with at least one turn is reported as corrupt.
func decodeSave(data []byte) (*state.SaveFile, error) {
	var save state.SaveFile
	if err := json.Unmarshal(data, &save); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveCorrupt, err)
	}
	if save.GameData == nil {
		return nil, fmt.Errorf("%w: missing gameData", ErrSaveCorrupt)
	}
	if len(save.GameData.History) == 0 && save.GameData.CurrentTurn == nil {
		return nil, fmt.Errorf("%w: no turns recorded", ErrSaveCorrupt)
	}
	if save.GameData.Stats.MaxHP < 1 {
		return nil, fmt.Errorf("%w: maxHp %d", ErrSaveCorrupt, save.GameData.Stats.MaxHP)
	}
	save.Normalize()
	return &save, nil
}
