package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// Timeout runs op with a deadline of d. If the deadline elapses before op
// returns, the result is classified as ErrTimeout. op must honor context
// cancellation; Timeout does not abandon the goroutine.
func Timeout(ctx context.Context, d time.Duration, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	return err
}
