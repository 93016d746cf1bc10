package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// ttlJitterFraction is the maximum uniform jitter added to every TTL so that
// entries written together do not expire together.
const ttlJitterFraction = 0.10

// negativeTTL is the lifetime of a cached miss.
const negativeTTL = 60 * time.Second

// Cache is the unified Redis-backed cache used by all read paths. No
// operation it exposes blocks Redis unboundedly; pattern deletes go through
// SCAN with hard caps.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a unified cache on top of the given Redis client.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Client exposes the underlying Redis client for callers that need raw
// commands (streams, scripts).
func (c *Cache) Client() *redis.Client {
	return c.client
}

// jitterTTL adds uniform jitter up to 10% of the TTL.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(int64(float64(ttl)*ttlJitterFraction)+1)) // #nosec G404 -- non-cryptographic expiry jitter
}

// Get reads and decodes the entry at key. It returns (zero, false, nil) on a
// miss or a cached negative. A decode failure deletes the key and reports a
// miss so corrupt entries self-heal instead of being served stale.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			missTotal.WithLabelValues("absent").Inc()
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if string(data) == MissSentinel {
		missTotal.WithLabelValues("negative").Inc()
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.WarnContext(ctx, "cache decode failed, deleting key",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		decodeFailures.Inc()
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			c.logger.WarnContext(ctx, "failed to delete corrupt cache key",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return zero, false, nil
	}

	hitTotal.Inc()
	return v, true, nil
}

// Set encodes v and writes it at key with a jittered TTL. Serialization
// errors are returned, never swallowed.
func Set[T any](ctx context.Context, c *Cache, key string, v T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, jitterTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	setTotal.Inc()
	return nil
}

// SetRaw writes pre-encoded bytes at key with a jittered TTL. Refresh jobs
// use it to store payloads they already hold serialized.
func (c *Cache) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, jitterTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("cache set raw %s: %w", key, err)
	}
	setTotal.Inc()
	return nil
}

// SetNegative writes the miss sentinel with a short TTL so repeated lookups
// of an absent entity do not hammer the authoritative store.
func (c *Cache) SetNegative(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, key, MissSentinel, negativeTTL).Err(); err != nil {
		return fmt.Errorf("cache set negative %s: %w", key, err)
	}
	negativeSetTotal.Inc()
	return nil
}

// Del removes a single key.
func (c *Cache) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", key, err)
	}
	return nil
}

// PipelineDel removes a batch of keys in one round trip.
func (c *Cache) PipelineDel(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline del: %w", err)
	}
	return nil
}

// Item is one entry of a batched write.
type Item struct {
	Key   string
	Value any
	TTL   time.Duration
}

// PipelineSet writes a batch of entries in one round trip. Any serialization
// error aborts the batch before it is sent.
func (c *Cache) PipelineSet(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	encoded := make([][]byte, len(items))
	for i, it := range items {
		data, err := json.Marshal(it.Value)
		if err != nil {
			return fmt.Errorf("cache encode %s: %w", it.Key, err)
		}
		encoded[i] = data
	}

	pipe := c.client.Pipeline()
	for i, it := range items {
		pipe.Set(ctx, it.Key, encoded[i], jitterTTL(it.TTL))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline set: %w", err)
	}
	setTotal.Add(float64(len(items)))
	return nil
}

// Outcome reports whether GetOrCompute served a cached or a freshly computed
// value.
type Outcome int

const (
	OutcomeCached Outcome = iota
	OutcomeComputed
)

// maxComputeRetries bounds the CAS loop in GetOrCompute.
const maxComputeRetries = 3

// GetOrCompute returns the cached value at key, or invokes f and stores the
// result. The read-compute-write cycle runs under WATCH so concurrent callers
// cannot stampede the upstream: when the key changes mid-compute, the loop
// retries and usually finds the winner's value on the next pass.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, f func(ctx context.Context) (T, error)) (T, Outcome, error) {
	var zero T

	for attempt := 0; attempt < maxComputeRetries; attempt++ {
		var result T
		outcome := OutcomeComputed

		err := c.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == nil && string(data) != MissSentinel {
				if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr == nil {
					outcome = OutcomeCached
					return nil
				}
				// Corrupt entry; fall through and recompute.
			} else if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			v, err := f(ctx)
			if err != nil {
				return err
			}

			encoded, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("cache encode %s: %w", key, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, jitterTTL(ttl))
				return nil
			})
			if err != nil {
				return err
			}

			result = v
			return nil
		}, key)

		if err == nil {
			if outcome == OutcomeCached {
				hitTotal.Inc()
			}
			return result, outcome, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			computeConflicts.Inc()
			continue
		}
		return zero, OutcomeComputed, fmt.Errorf("cache get-or-compute %s: %w", key, err)
	}

	// CAS kept losing; compute without caching rather than fail the read.
	v, err := f(ctx)
	if err != nil {
		return zero, OutcomeComputed, err
	}
	return v, OutcomeComputed, nil
}
