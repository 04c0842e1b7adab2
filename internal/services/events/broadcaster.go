package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTurnCommitted EventType = "turn.committed"
	EventTypeImageReady    EventType = "image.ready"
	EventTypeSessionError  EventType = "session.error"
	EventTypeGameOver      EventType = "game.over"
	EventTypeOracleReplied EventType = "oracle.replied"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher is what the game session needs from an event sink.
type Publisher interface {
	PublishTurnCommitted(ctx context.Context, sessionID uuid.UUID, turn int, location string, phase string) error
	PublishImageReady(ctx context.Context, sessionID uuid.UUID, turn int) error
	PublishSessionError(ctx context.Context, sessionID uuid.UUID, errorMsg string) error
	PublishGameOver(ctx context.Context, sessionID uuid.UUID, turn int) error
	PublishOracleReplied(ctx context.Context, sessionID uuid.UUID, reply string) error
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the pub/sub channel carrying one session's events
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", sessionID.String())
}

// Subscribe opens a subscription to a session's channel. Callers must Close it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

// PublishTurnCommitted publishes a turn.committed event
func (b *Broadcaster) PublishTurnCommitted(ctx context.Context, sessionID uuid.UUID, turn int, location string, phase string) error {
	return b.publish(ctx, sessionID, EventTypeTurnCommitted, map[string]any{
		"turn":     turn,
		"location": location,
		"phase":    phase,
	})
}

// PublishImageReady publishes an image.ready event
func (b *Broadcaster) PublishImageReady(ctx context.Context, sessionID uuid.UUID, turn int) error {
	return b.publish(ctx, sessionID, EventTypeImageReady, map[string]any{
		"turn": turn,
	})
}

// PublishSessionError publishes a session.error event
func (b *Broadcaster) PublishSessionError(ctx context.Context, sessionID uuid.UUID, errorMsg string) error {
	return b.publish(ctx, sessionID, EventTypeSessionError, map[string]any{
		"error": errorMsg,
	})
}

// PublishGameOver publishes a game.over event
func (b *Broadcaster) PublishGameOver(ctx context.Context, sessionID uuid.UUID, turn int) error {
	return b.publish(ctx, sessionID, EventTypeGameOver, map[string]any{
		"turn": turn,
	})
}

// PublishOracleReplied publishes an oracle.replied event
func (b *Broadcaster) PublishOracleReplied(ctx context.Context, sessionID uuid.UUID, reply string) error {
	return b.publish(ctx, sessionID, EventTypeOracleReplied, map[string]any{
		"reply": reply,
	})
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, eventType EventType, data map[string]any) error {
	channel := Channel(sessionID)
	event := Event{Type: eventType, SessionID: sessionID.String(), Data: data}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", eventType)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", eventType)
	return nil
}
