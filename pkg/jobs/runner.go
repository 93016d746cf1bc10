package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Sink receives refreshed payloads. *cache.Cache satisfies it via SetRaw.
type Sink interface {
	SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// CacheRefreshJob periodically recomputes one cache entry. Fetch produces the
// serialized payload; the runner stores it under Key with TTL.
type CacheRefreshJob struct {
	Name     string
	Key      string
	Interval time.Duration
	TTL      time.Duration
	Fetch    func(ctx context.Context) ([]byte, error)
}

// RunnerConfig holds runner tuning.
type RunnerConfig struct {
	// Workers bounds how many job executions run concurrently.
	Workers int

	// ShutdownGrace is how long Stop waits for in-flight executions.
	ShutdownGrace time.Duration

	// JobTimeout bounds a single execution.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns sensible defaults for the job runner.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:       4,
		ShutdownGrace: 10 * time.Second,
		JobTimeout:    30 * time.Second,
	}
}

// Runner schedules cache refresh jobs on a bounded worker pool. Each job gets
// a jittered first tick so restarts do not refresh everything at once, and
// per-job single-flight: a tick is dropped while the previous execution of the
// same job is still running.
type Runner struct {
	sink   Sink
	cfg    RunnerConfig
	logger *slog.Logger

	mu   sync.Mutex
	jobs []CacheRefreshJob

	work     chan CacheRefreshJob
	inflight map[string]bool

	wg   sync.WaitGroup
	stop context.CancelFunc
	done chan struct{}
}

// NewRunner creates a job runner writing into sink.
func NewRunner(sink Sink, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		work:     make(chan CacheRefreshJob),
		inflight: make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// Register adds a job. Must be called before Start.
func (r *Runner) Register(job CacheRefreshJob) error {
	if job.Name == "" || job.Key == "" {
		return fmt.Errorf("job needs a name and a key")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Fetch == nil {
		return fmt.Errorf("job %s: fetch function required", job.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Start launches the worker pool and one ticker goroutine per job. It returns
// immediately; Stop shuts everything down.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.stop = context.WithCancel(ctx)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}

	r.mu.Lock()
	jobs := make([]CacheRefreshJob, len(r.jobs))
	copy(jobs, r.jobs)
	r.mu.Unlock()

	for _, job := range jobs {
		r.wg.Add(1)
		go r.schedule(ctx, job)
	}

	r.logger.Info("job runner started",
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", r.cfg.Workers),
	)

	go func() {
		r.wg.Wait()
		close(r.done)
	}()
}

// Stop cancels scheduling and waits up to ShutdownGrace for in-flight
// executions to finish.
func (r *Runner) Stop() {
	if r.stop == nil {
		return
	}
	r.stop()

	select {
	case <-r.done:
	case <-time.After(r.cfg.ShutdownGrace):
		r.logger.Warn("job runner shutdown grace expired")
	}
}

// schedule ticks one job. The first tick fires after a random fraction of the
// interval.
func (r *Runner) schedule(ctx context.Context, job CacheRefreshJob) {
	defer r.wg.Done()

	first := time.Duration(rand.Int64N(int64(job.Interval))) // #nosec G404 -- non-cryptographic scheduling jitter
	select {
	case <-ctx.Done():
		return
	case <-time.After(first):
	}
	r.dispatch(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.dispatch(ctx, job)
		}
	}
}

// dispatch hands the job to the pool unless an execution of it is already in
// flight.
func (r *Runner) dispatch(ctx context.Context, job CacheRefreshJob) {
	r.mu.Lock()
	if r.inflight[job.Name] {
		r.mu.Unlock()
		ticksDropped.WithLabelValues(job.Name).Inc()
		r.logger.Debug("dropping tick, job still running", slog.String("job", job.Name))
		return
	}
	r.inflight[job.Name] = true
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		r.clearInflight(job.Name)
	case r.work <- job:
	}
}

func (r *Runner) clearInflight(name string) {
	r.mu.Lock()
	delete(r.inflight, name)
	r.mu.Unlock()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.work:
			r.execute(ctx, job)
			r.clearInflight(job.Name)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job CacheRefreshJob) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	data, err := job.Fetch(ctx)
	if err != nil {
		runsTotal.WithLabelValues(job.Name, "error").Inc()
		r.logger.Error("refresh job fetch failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.sink.SetRaw(ctx, job.Key, data, job.TTL); err != nil {
		runsTotal.WithLabelValues(job.Name, "error").Inc()
		r.logger.Error("refresh job store failed",
			slog.String("job", job.Name),
			slog.String("key", job.Key),
			slog.String("error", err.Error()),
		)
		return
	}

	runsTotal.WithLabelValues(job.Name, "ok").Inc()
	runDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	r.logger.Debug("refresh job completed",
		slog.String("job", job.Name),
		slog.String("key", job.Key),
		slog.Duration("took", time.Since(start)),
	)
}
