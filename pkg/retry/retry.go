// Package retry wraps fallible remote calls with bounded exponential backoff.
// Only quota and rate-limit failures are retried; everything else is returned
// to the caller on the first failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Class is the retry classification of an error.
type Class int

const (
	ClassFatal Class = iota
	ClassQuota
)

func (c Class) String() string {
	if c == ClassQuota {
		return "quota"
	}
	return "fatal"
}

// ErrQuotaExhausted matches every *QuotaExhaustedError via errors.Is.
var ErrQuotaExhausted = errors.New("quota exhausted")

// QuotaExhaustedError is returned when every attempt failed with a quota error.
type QuotaExhaustedError struct {
	Attempts int
	Err      error
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *QuotaExhaustedError) Unwrap() error { return e.Err }

func (e *QuotaExhaustedError) Is(target error) bool { return target == ErrQuotaExhausted }

// quotaSignatures are matched case-insensitively against error text.
var quotaSignatures = []string{"429", "quota", "limit", "exhausted"}

// ClassifyError decides whether err is a transient quota failure. It is the
// single place that knows what a rate-limit error looks like.
func ClassifyError(err error) Class {
	if err == nil {
		return ClassFatal
	}
	// An attempt we gave up on ourselves is never a quota signal.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}
	msg := cases.Fold().String(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return ClassQuota
		}
	}
	return ClassFatal
}

// IsTransientQuota reports whether err would be retried.
func IsTransientQuota(err error) bool {
	return ClassifyError(err) == ClassQuota
}

// Policy configures Do. The zero value is not useful; start from DefaultPolicy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxJitter   time.Duration

	// AttemptTimeout bounds each individual call. Zero disables it.
	AttemptTimeout time.Duration

	Classify func(error) Class
	Sleep    func(ctx context.Context, d time.Duration) error
	Jitter   func(ceiling time.Duration) time.Duration
	OnRetry  func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is 4 attempts with 3s, 9s and 27s waits plus up to 1.5s jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   3000 * time.Millisecond,
		Multiplier:  3,
		MaxJitter:   1500 * time.Millisecond,
		Classify:    ClassifyError,
		Sleep:       sleepContext,
		Jitter:      uniformJitter,
	}
}

// Backoff is the wait after failed attempt n (0-based), before jitter.
func (p Policy) Backoff(n int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n)))
}

// Do runs op until it succeeds, fails with a non-quota error, or runs out of
// attempts. Every wrapped op must be safe to repeat.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Classify(err) != ClassQuota {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt) + p.Jitter(p.MaxJitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &QuotaExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Classify == nil {
		p.Classify = d.Classify
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	if p.Jitter == nil {
		p.Jitter = d.Jitter
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
