package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// Generator defines the interface for the generative model collaborator.
// Errors are returned as-is; quota errors keep the vendor's message so the
// retry policy can recognise them.
type Generator interface {
	// GenerateJSON returns the raw structured payload for a request with a schema.
	GenerateJSON(ctx context.Context, req *prompts.Request) ([]byte, error)

	// GenerateText returns a free-text answer, possibly empty.
	GenerateText(ctx context.Context, req *prompts.Request) (string, error)

	// GenerateImage returns an inline image, or nil when the model produced none.
	GenerateImage(ctx context.Context, req *prompts.Request, aspectRatio string) (*state.Image, error)

	// IsReady checks that the configured text model is reachable.
	IsReady(ctx context.Context) (bool, error)

	Close() error
}

// ErrEmptyContent is returned when a structured request yields no payload.
var ErrEmptyContent = errors.New("no content returned")

func requireContent(provider, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w from %s", ErrEmptyContent, provider)
	}
	return nil
}
