package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

func TestRetry_SucceedsOnKthAttempt(t *testing.T) {
	for _, k := range []int{1, 2, 4} {
		calls := 0
		p := Policy{MaxRetries: 5, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
		err := Retry(context.Background(), p, func(ctx context.Context) error {
			calls++
			if calls < k {
				return apperrors.ErrUnavailable
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, k, calls, "op should be invoked exactly k=%d times", k)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	p := Policy{MaxRetries: 2, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		return apperrors.ErrTimeout
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 3, calls, "MaxRetries+1 total attempts")
}

func TestRetry_PermanentErrorAbortsImmediately(t *testing.T) {
	calls := 0
	p := Policy{MaxRetries: 5, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		return apperrors.Validation("weights", "sum=1.0")
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxRetries: 3, Backoff: 50 * time.Millisecond, MaxBackoff: time.Second}
	err := Retry(ctx, p, func(ctx context.Context) error {
		return apperrors.ErrUnavailable
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_DelayNeverExceedsMaxBackoff(t *testing.T) {
	p := Policy{MaxRetries: 10, Backoff: 100 * time.Millisecond, MaxBackoff: time.Second, Jitter: true}
	var prev time.Duration
	for attempt := 0; attempt < 20; attempt++ {
		d := p.Delay(attempt, prev)
		assert.LessOrEqual(t, d, p.MaxBackoff, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, p.Backoff, "attempt %d", attempt)
		prev = d
	}
}

func TestPolicy_DelayExponentialWithoutJitter(t *testing.T) {
	p := Policy{Backoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0, 0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1, 0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2, 0))
	assert.Equal(t, 800*time.Millisecond, p.Delay(3, 0))
	assert.Equal(t, time.Second, p.Delay(4, 0))
	assert.Equal(t, time.Second, p.Delay(10, 0))
}

// ---------------------------------------------------------------------------
// Timeout
// ---------------------------------------------------------------------------

func TestTimeout_Elapses(t *testing.T) {
	err := Timeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestTimeout_OpCompletes(t *testing.T) {
	err := Timeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestTimeout_OpErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	err := Timeout(context.Background(), time.Second, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
}

// ---------------------------------------------------------------------------
// Breaker
// ---------------------------------------------------------------------------

func TestBreaker_OpensOnNthConsecutiveFailure(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test-consecutive",
		FailureThreshold:   3,
		ErrorRateThreshold: 1.1, // rate trip disabled
		WindowSize:         1000,
		OpenTimeout:        time.Minute,
		SuccessThreshold:   1,
	}
	b := NewBreaker(cfg, testLogger())

	fail := func(ctx context.Context) error { return apperrors.ErrUnavailable }

	// First N-1 failures leave the breaker closed.
	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), fail)
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Equal(t, gobreaker.StateClosed, b.State(), "after failure %d", i+1)
	}

	// N-th consecutive failure opens it.
	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// While open, the op is not invoked.
	invoked := false
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestBreaker_RecoveryCycle(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test-recovery",
		FailureThreshold:   2,
		ErrorRateThreshold: 1.1,
		WindowSize:         1000,
		OpenTimeout:        30 * time.Millisecond,
		SuccessThreshold:   2,
	}
	b := NewBreaker(cfg, testLogger())

	fail := func(ctx context.Context) error { return apperrors.ErrUnavailable }
	ok := func(ctx context.Context) error { return nil }

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(50 * time.Millisecond)

	// Half-open probes succeed and close the breaker.
	require.NoError(t, b.Execute(context.Background(), ok))
	require.NoError(t, b.Execute(context.Background(), ok))
	assert.Equal(t, gobreaker.StateClosed, b.State())

	// Healthy calls succeed with a single invocation each.
	calls := 0
	require.NoError(t, b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}

func TestBreaker_ErrorRateTrip(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test-rate",
		FailureThreshold:   0, // consecutive trip disabled
		ErrorRateThreshold: 0.5,
		WindowSize:         4,
		OpenTimeout:        time.Minute,
		SuccessThreshold:   1,
	}
	b := NewBreaker(cfg, testLogger())

	ok := func(ctx context.Context) error { return nil }
	fail := func(ctx context.Context) error { return apperrors.ErrUnavailable }

	_ = b.Execute(context.Background(), ok)
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), ok)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	_ = b.Execute(context.Background(), fail)
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

// ---------------------------------------------------------------------------
// Budget / Shedder
// ---------------------------------------------------------------------------

func TestBudget_BoundsConcurrency(t *testing.T) {
	b := NewBudget("test", 2)

	var mu sync.Mutex
	running, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
}

func TestShedder_RejectsWhenSaturated(t *testing.T) {
	s := NewShedder("test", 1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := s.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrOverloaded)

	close(release)
}
