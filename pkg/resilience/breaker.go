package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string

	// FailureThreshold trips the breaker on this many consecutive failures.
	FailureThreshold uint32

	// ErrorRateThreshold trips the breaker when the windowed failure ratio
	// reaches this value. Only evaluated once WindowSize samples exist.
	ErrorRateThreshold float64

	// WindowSize is the minimum number of requests before the error rate is evaluated.
	WindowSize uint32

	// OpenTimeout is how long the breaker stays open before moving to half-open.
	OpenTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close. It also bounds concurrent half-open probes.
	SuccessThreshold uint32

	// Interval is the cyclic period of the closed state for clearing internal counts.
	Interval time.Duration
}

// DefaultBreakerConfig returns sensible defaults for a circuit breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:               name,
		FailureThreshold:   5,
		ErrorRateThreshold: 0.5,
		WindowSize:         10,
		OpenTimeout:        30 * time.Second,
		SuccessThreshold:   2,
		Interval:           60 * time.Second,
	}
}

// Breaker wraps gobreaker with the Nova error taxonomy. While open, calls
// return ErrCircuitOpen without invoking the operation.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	name   string
	logger *slog.Logger
}

// NewBreaker creates a circuit breaker from the given config.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.FailureThreshold > 0 && counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests < cfg.WindowSize {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.ErrorRateThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
			breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](settings)
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Breaker{cb: cb, name: cfg.Name, logger: logger}
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Execute runs op through the breaker. An open circuit or a rejected
// half-open probe surfaces as ErrCircuitOpen.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w", b.name, apperrors.ErrCircuitOpen)
		}
		return err
	}
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
