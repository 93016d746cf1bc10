package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// trimScanCount is the COUNT hint for the conversation stream SCAN.
const trimScanCount = 200

// Trimmer periodically removes stream entries older than the retention
// window. Publication already caps length; this bounds age.
type Trimmer struct {
	client    *redis.Client
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewTrimmer creates a retention trimmer.
func NewTrimmer(client *redis.Client, retention, interval time.Duration, logger *slog.Logger) *Trimmer {
	return &Trimmer{client: client, retention: retention, interval: interval, logger: logger}
}

// Run trims on a ticker until the context is canceled.
func (t *Trimmer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.TrimOnce(ctx); err != nil {
				t.logger.ErrorContext(ctx, "stream trim pass failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// TrimOnce removes entries older than the retention window from the fanout
// stream and every conversation stream.
func (t *Trimmer) TrimOnce(ctx context.Context) error {
	// Stream entry ids are ms-timestamp prefixed, so MINID trims by age.
	minID := strconv.FormatInt(time.Now().Add(-t.retention).UnixMilli(), 10)

	removed, err := t.client.XTrimMinID(ctx, FanoutStream, minID).Result()
	if err != nil {
		return fmt.Errorf("trim fanout stream: %w", err)
	}
	trimmedTotal.Add(float64(removed))

	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, conversationStreamPattern, trimScanCount).Result()
		if err != nil {
			return fmt.Errorf("scan conversation streams: %w", err)
		}

		for _, key := range keys {
			n, err := t.client.XTrimMinID(ctx, key, minID).Result()
			if err != nil {
				return fmt.Errorf("trim stream %s: %w", key, err)
			}
			trimmedTotal.Add(float64(n))
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
