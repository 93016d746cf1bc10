package resilience

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

// Budget bounds the number of operations running concurrently. Acquire blocks
// until a slot frees or the context is canceled.
type Budget struct {
	sem  *semaphore.Weighted
	name string
}

// NewBudget creates a concurrency budget of maxConcurrent slots.
func NewBudget(name string, maxConcurrent int64) *Budget {
	return &Budget{
		sem:  semaphore.NewWeighted(maxConcurrent),
		name: name,
	}
}

// Do runs op once a slot is available.
func (b *Budget) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire %s budget: %w", b.name, err)
	}
	defer b.sem.Release(1)
	return op(ctx)
}

// Shedder rejects work outright once maxInflight operations are running,
// instead of queueing it. Use on request paths where waiting is worse than
// failing fast.
type Shedder struct {
	inflight    atomic.Int64
	maxInflight int64
	name        string
}

// NewShedder creates a load shedder with the given inflight ceiling.
func NewShedder(name string, maxInflight int64) *Shedder {
	return &Shedder{maxInflight: maxInflight, name: name}
}

// Do runs op unless the shedder is saturated, in which case ErrOverloaded is
// returned without invoking op.
func (s *Shedder) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if s.inflight.Add(1) > s.maxInflight {
		s.inflight.Add(-1)
		shedRejections.WithLabelValues(s.name).Inc()
		return fmt.Errorf("%s: %w", s.name, apperrors.ErrOverloaded)
	}
	defer s.inflight.Add(-1)

	inflightGauge.WithLabelValues(s.name).Set(float64(s.inflight.Load()))
	return op(ctx)
}

// Inflight returns the current number of running operations.
func (s *Shedder) Inflight() int64 {
	return s.inflight.Load()
}
