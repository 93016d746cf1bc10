package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// syncKeyPrefix prefixes every per-client sync state key.
const syncKeyPrefix = "nova:msgsync:"

// SyncState is what one (user, conversation, client) tuple has seen.
type SyncState struct {
	LastDeliveredStreamID string
	LastSyncAt            time.Time
}

// SyncStore keeps per-client delivery positions in Redis hashes with a
// sliding TTL, so an abandoned client's state eventually disappears.
type SyncStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSyncStore creates a sync state store.
func NewSyncStore(client *redis.Client, ttl time.Duration) *SyncStore {
	return &SyncStore{client: client, ttl: ttl}
}

func syncKey(userID, conversationID, clientID string) string {
	return syncKeyPrefix + userID + ":" + conversationID + ":" + clientID
}

// Get reads the sync state for a client tuple. Absent state is (zero, false,
// nil), meaning a full replay.
func (s *SyncStore) Get(ctx context.Context, userID, conversationID, clientID string) (SyncState, bool, error) {
	vals, err := s.client.HGetAll(ctx, syncKey(userID, conversationID, clientID)).Result()
	if err != nil {
		return SyncState{}, false, fmt.Errorf("read sync state: %w", err)
	}
	if len(vals) == 0 {
		return SyncState{}, false, nil
	}

	state := SyncState{LastDeliveredStreamID: vals["last_delivered_stream_id"]}
	if raw, ok := vals["last_sync_at"]; ok {
		if at, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			state.LastSyncAt = at
		}
	}
	return state, true, nil
}

// Save writes the client tuple's delivery position and refreshes the TTL.
func (s *SyncStore) Save(ctx context.Context, userID, conversationID, clientID, lastDeliveredID string) error {
	key := syncKey(userID, conversationID, clientID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"last_delivered_stream_id", lastDeliveredID,
		"last_sync_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	syncStateFlushes.Inc()
	return nil
}

// Delete removes the client tuple's state.
func (s *SyncStore) Delete(ctx context.Context, userID, conversationID, clientID string) error {
	if err := s.client.Del(ctx, syncKey(userID, conversationID, clientID)).Err(); err != nil {
		return fmt.Errorf("delete sync state: %w", err)
	}
	return nil
}
