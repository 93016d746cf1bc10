package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// Policy controls retry behavior. Delay for attempt n (0-indexed) is
// Backoff·2^n capped at MaxBackoff; with Jitter enabled the delay is
// decorrelated: uniformly drawn between Backoff and 3× the previous delay,
// still capped at MaxBackoff.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Jitter     bool
}

// DefaultPolicy returns the retry policy used by most presets
// (3 retries, 100ms base, 5s cap, jittered).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Jitter:     true,
	}
}

// Delay returns the backoff duration before retry attempt n (0-indexed),
// given the previous delay. Exposed for tests.
func (p Policy) Delay(attempt int, prev time.Duration) time.Duration {
	base := p.Backoff << uint(attempt)
	if base > p.MaxBackoff || base <= 0 {
		base = p.MaxBackoff
	}
	if !p.Jitter {
		return base
	}
	if prev <= 0 {
		prev = p.Backoff
	}
	// Decorrelated jitter: uniform in [Backoff, prev*3], capped.
	upper := prev * 3
	if upper > p.MaxBackoff {
		upper = p.MaxBackoff
	}
	if upper <= p.Backoff {
		return p.Backoff
	}
	return p.Backoff + time.Duration(rand.Int64N(int64(upper-p.Backoff))) // #nosec G404 -- non-cryptographic jitter
}

// Permanent reports whether an error must never be retried: validation and
// other client-correctable kinds, plus auth failures. Everything else —
// including unclassified errors — is assumed transient.
func Permanent(err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrUnauthenticated),
		errors.Is(err, apperrors.ErrPermissionDenied):
		return true
	default:
		return false
	}
}

// Retry executes op up to MaxRetries+1 times, sleeping between attempts.
// Permanent errors abort immediately; the last error is returned when all
// attempts fail.
func Retry(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var lastErr error
	var prev time.Duration

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			retryAttempts.Inc()
			prev = p.Delay(attempt-1, prev)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(prev):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if Permanent(lastErr) {
			return lastErr
		}
	}

	return lastErr
}
