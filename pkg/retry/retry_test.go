package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPolicy records requested sleeps instead of waiting.
func testPolicy(sleeps *[]time.Duration) Policy {
	p := DefaultPolicy()
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	p.Jitter = func(time.Duration) time.Duration { return 0 }
	return p
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "nil", err: nil, want: ClassFatal},
		{name: "http 429", err: errors.New("googleapi: Error 429: Too Many Requests"), want: ClassQuota},
		{name: "quota upper case", err: errors.New("QUOTA exceeded for project"), want: ClassQuota},
		{name: "rate limit", err: errors.New("Rate Limit reached"), want: ClassQuota},
		{name: "resource exhausted", err: errors.New("rpc error: code = ResourceExhausted"), want: ClassQuota},
		{name: "wrapped", err: errors.Join(errors.New("generate"), errors.New("quota")), want: ClassQuota},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: ClassFatal},
		{name: "bad request", err: errors.New("400 invalid argument"), want: ClassFatal},
		{name: "attempt timeout", err: context.DeadlineExceeded, want: ClassFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestDo_RetriesQuotaThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	calls := 0

	got, err := Do(context.Background(), testPolicy(&sleeps), func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("429 quota exceeded")
		}
		return "turn", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "turn", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 9 * time.Second}, sleeps)
}

func TestDo_NonQuotaErrorIsNotRetried(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	boom := errors.New("connection reset by peer")

	_, err := Do(context.Background(), testPolicy(&sleeps), func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrQuotaExhausted))
	assert.Empty(t, sleeps)
}

func TestDo_ExhaustionIsDistinguishable(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	last := errors.New("RESOURCE_EXHAUSTED")

	_, err := Do(context.Background(), testPolicy(&sleeps), func(context.Context) (int, error) {
		calls++
		return 0, last
	})

	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.ErrorIs(t, err, last)

	var qe *QuotaExhaustedError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 4, qe.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second, 9 * time.Second, 27 * time.Second}, sleeps)
}

func TestDo_JitterAddedToBackoff(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(&sleeps)
	p.MaxAttempts = 2
	p.Jitter = func(ceiling time.Duration) time.Duration {
		assert.Equal(t, 1500*time.Millisecond, ceiling)
		return 700 * time.Millisecond
	}

	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New("limit")
	})

	assert.Equal(t, []time.Duration{3700 * time.Millisecond}, sleeps)
}

func TestDo_OnRetryHook(t *testing.T) {
	var sleeps []time.Duration
	var attempts []int
	p := testPolicy(&sleeps)
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}

	_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New("quota")
	})

	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	calls := 0

	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("429")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeout(t *testing.T) {
	var sleeps []time.Duration
	p := testPolicy(&sleeps)
	p.AttemptTimeout = 10 * time.Millisecond
	calls := 0

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Backoff(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3*time.Second, p.Backoff(0))
	assert.Equal(t, 9*time.Second, p.Backoff(1))
	assert.Equal(t, 27*time.Second, p.Backoff(2))
}

func TestUniformJitter(t *testing.T) {
	assert.Zero(t, uniformJitter(0))
	for i := 0; i < 100; i++ {
		j := uniformJitter(1500 * time.Millisecond)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 1500*time.Millisecond)
	}
}
