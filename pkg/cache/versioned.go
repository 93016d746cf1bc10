package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Versioned wraps a cached value with a monotonic version (nanosecond clock)
// and creation metadata. An entry is stale iff its created_at is at or before
// the companion invalidated_at timestamp.
type Versioned[T any] struct {
	Data      T         `json:"data"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewVersioned stamps v with the current nanosecond clock.
func NewVersioned[T any](v T) Versioned[T] {
	now := time.Now().UTC()
	return Versioned[T]{
		Data:      v,
		Version:   now.UnixNano(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// invalidationRetention keeps the invalidated_at marker long enough for every
// outstanding entry written before the invalidation to expire.
const invalidationRetention = 24 * time.Hour

// invalidateScript atomically deletes the key and stamps its companion
// invalidated_at marker, so a concurrent writer racing the delete still loses
// to the version check on the next read.
var invalidateScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], ARGV[1], 'EX', ARGV[2])
return 1
`)

// InvalidateWithVersion deletes key and records the invalidation instant in
// one server-side script.
func (c *Cache) InvalidateWithVersion(ctx context.Context, key string) error {
	now := time.Now().UTC().UnixNano()
	err := invalidateScript.Run(ctx, c.client,
		[]string{key, InvalidationKey(key)},
		now, int(invalidationRetention.Seconds()),
	).Err()
	if err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	invalidationsTotal.Inc()
	return nil
}

// GetVersioned reads a versioned entry and applies the invalidation check:
// entries created at or before invalidated_at are treated as misses.
func GetVersioned[T any](ctx context.Context, c *Cache, key string) (Versioned[T], bool, error) {
	var zero Versioned[T]

	entry, ok, err := Get[Versioned[T]](ctx, c, key)
	if err != nil || !ok {
		return zero, false, err
	}

	raw, err := c.client.Get(ctx, InvalidationKey(key)).Result()
	if err == nil {
		invalidatedAt, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr == nil && entry.CreatedAt.UnixNano() <= invalidatedAt {
			staleRejected.Inc()
			return zero, false, nil
		}
	} else if err != redis.Nil {
		return zero, false, fmt.Errorf("cache invalidation check %s: %w", key, err)
	}

	return entry, true, nil
}

// SetVersioned stamps and writes a versioned entry.
func SetVersioned[T any](ctx context.Context, c *Cache, key string, v T, ttl time.Duration) (Versioned[T], error) {
	entry := NewVersioned(v)
	if err := Set(ctx, c, key, entry, ttl); err != nil {
		return Versioned[T]{}, err
	}
	return entry, nil
}
