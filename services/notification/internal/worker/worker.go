// Package worker drains the push job queue on an interval.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/proerror77/Nova-sub006/services/notification/internal/service"
)

var batchSizes = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "notification_worker_batch_size",
	Help:    "Pending jobs handled per worker pass.",
	Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
})

// Worker runs ProcessPending on a ticker.
type Worker struct {
	service  *service.NotificationService
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// NewWorker creates the queue drain worker.
func NewWorker(svc *service.NotificationService, interval time.Duration, batch int, logger *slog.Logger) *Worker {
	return &Worker{
		service:  svc,
		interval: interval,
		batch:    batch,
		logger:   logger,
	}
}

// Run drains the queue until ctx is canceled. An immediate first pass picks up
// the backlog before the first tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopping")
			return nil
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	n, err := w.service.ProcessPending(ctx, w.batch)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.ErrorContext(ctx, "worker pass failed",
			slog.String("error", err.Error()),
		)
		return
	}
	batchSizes.Observe(float64(n))
	if n > 0 {
		w.logger.DebugContext(ctx, "worker pass complete", slog.Int("jobs", n))
	}
}
