package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Deduper is a process-local duplicate suppressor keyed by event id. Entries
// expire after the configured TTL; a background sweeper bounds memory. It is
// a best-effort guard in front of idempotent handlers, not a replacement for
// them.
type Deduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewDeduper creates a deduper with the given entry TTL and starts the
// sweeper. Call Close to stop it.
func NewDeduper(ttl, sweepInterval time.Duration) *Deduper {
	d := &Deduper{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go d.sweep(sweepInterval)
	return d
}

// ProcessOrSkip atomically claims id for processing. The first caller wins
// and gets true; every concurrent or later caller within the TTL gets false.
func (d *Deduper) ProcessOrSkip(id string) bool {
	if id == "" {
		return true
	}

	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if claimed, ok := d.entries[id]; ok && now.Sub(claimed) <= d.ttl {
		return false
	}
	d.entries[id] = now
	return true
}

// Forget releases a claim so the id can be processed again, used when the
// handler fails and the message will be redelivered.
func (d *Deduper) Forget(id string) {
	d.mu.Lock()
	delete(d.entries, id)
	d.mu.Unlock()
}

// Len returns the number of tracked ids, expired entries included.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Close stops the sweeper. Safe to call multiple times.
func (d *Deduper) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

func (d *Deduper) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-d.ttl)
			d.mu.Lock()
			for id, claimed := range d.entries {
				if claimed.Before(cutoff) {
					delete(d.entries, id)
				}
			}
			d.mu.Unlock()
		}
	}
}

// DedupHandler wraps a handler with first-observer-wins duplicate
// suppression by event id. A failed handler releases its claim so the
// redelivered message gets processed again.
func DedupHandler(d *Deduper, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, env *Envelope) error {
		if !d.ProcessOrSkip(env.EventID) {
			duplicatesSkipped.WithLabelValues(env.EventType).Inc()
			logger.DebugContext(ctx, "skipping duplicate event",
				slog.String("event_id", env.EventID),
				slog.String("event_type", env.EventType),
				slog.String("aggregate_id", env.AggregateID),
			)
			return nil
		}

		if err := inner(ctx, env); err != nil {
			d.Forget(env.EventID)
			return err
		}
		return nil
	}
}
