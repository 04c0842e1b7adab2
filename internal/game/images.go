package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwebster45206/adventure-engine/internal/metrics"
	"github.com/jwebster45206/adventure-engine/internal/services"
	"github.com/jwebster45206/adventure-engine/pkg/prompts"
	"github.com/jwebster45206/adventure-engine/pkg/retry"
	"github.com/jwebster45206/adventure-engine/pkg/state"
)

// ImageRequester turns a visual descriptor into an illustration on a best
// effort basis. It never returns an error.
type ImageRequester struct {
	gen         services.Generator
	policy      retry.Policy
	aspectRatio string
	logger      *slog.Logger
}

func NewImageRequester(gen services.Generator, policy retry.Policy, logger *slog.Logger) *ImageRequester {
	return &ImageRequester{
		gen:         gen,
		policy:      withRetryHook(policy, prompts.KindImage, logger),
		aspectRatio: prompts.AspectRatio,
		logger:      logger,
	}
}

// Request returns the image, or nil when generation failed or produced nothing.
func (r *ImageRequester) Request(ctx context.Context, descriptor string) *state.Image {
	req, err := prompts.BuildImage(descriptor)
	if err != nil {
		r.logger.Debug("Skipping image request", "error", err)
		return nil
	}

	img, err := retry.Do(ctx, r.policy, func(ctx context.Context) (*state.Image, error) {
		return r.gen.GenerateImage(ctx, req, r.aspectRatio)
	})
	if err != nil {
		r.logger.Warn("Image generation failed", "error", err)
		return nil
	}
	if img == nil || len(img.Data) == 0 {
		r.logger.Debug("Image endpoint returned no image")
		return nil
	}
	return img
}

// withRetryHook logs and counts each quota backoff for the given request kind.
func withRetryHook(p retry.Policy, kind prompts.Kind, logger *slog.Logger) retry.Policy {
	next := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.QuotaRetry(string(kind))
		logger.Warn("Quota limit hit, backing off",
			"kind", kind,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return p
}
