package cache

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// scanCount is the COUNT hint passed to each SCAN iteration.
	scanCount = 500

	// scanDeleteChunk is the number of keys deleted per pipeline round trip.
	scanDeleteChunk = 1000

	// maxScanIterations and maxScanKeys are safety valves: a runaway pattern
	// stops early and trips a metric instead of holding Redis.
	maxScanIterations = 10_000
	maxScanKeys       = 1_000_000
)

// ScanDel deletes all keys matching pattern using cursor-based SCAN, never a
// blocking all-keys query. Deletes are batched in chunks; the iteration yields
// between chunks. Returns the number of keys deleted.
func (c *Cache) ScanDel(ctx context.Context, pattern string) (int, error) {
	var (
		cursor     uint64
		deleted    int
		iterations int
		batch      []string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.PipelineDel(ctx, batch); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return deleted, fmt.Errorf("cache scan del %s: %w", pattern, err)
		}

		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}

		for _, k := range keys {
			batch = append(batch, k)
			if len(batch) >= scanDeleteChunk {
				if err := flush(); err != nil {
					return deleted, err
				}
			}
		}

		iterations++
		if deleted+len(batch) >= maxScanKeys || iterations >= maxScanIterations {
			scanCapTripped.WithLabelValues(pattern).Inc()
			c.logger.WarnContext(ctx, "scan delete hit safety cap",
				slog.String("pattern", pattern),
				slog.Int("iterations", iterations),
				slog.Int("deleted", deleted+len(batch)),
			)
			break
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
