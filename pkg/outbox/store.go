package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proerror77/Nova-sub006/pkg/database"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// Row is one pending event in the transactional outbox. Payload holds the
// fully marshaled envelope so the drainer republishes exactly what the writer
// recorded.
type Row struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	CreatedAt     time.Time
	PublishedAt   *time.Time
	AttemptCount  int
}

// Store persists outbox rows. Append runs inside the caller's transaction so
// the event commits or rolls back atomically with the state change.
type Store struct {
	db database.DBTX
}

// NewStore creates an outbox store over a pool or transaction.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Append records an envelope in the outbox using the given transaction
// handle. It must be called with the same tx that performs the aggregate
// write.
func (s *Store) Append(ctx context.Context, tx database.DBTX, env *kafka.Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, attempt_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`

	_, err = tx.Exec(ctx, query,
		uuid.New().String(),
		env.AggregateType,
		env.AggregateID,
		env.EventType,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// FetchPending claims up to limit unpublished rows in insertion order,
// skipping rows locked by another drainer and rows that exhausted their
// attempts. Must run inside a transaction; the locks are held until commit.
func (s *Store) FetchPending(ctx context.Context, tx database.DBTX, limit, maxAttempts int) ([]Row, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, published_at, attempt_count
		FROM outbox
		WHERE published_at IS NULL
		  AND attempt_count < $2
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox rows: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.AggregateType, &r.AggregateID, &r.EventType, &r.Payload, &r.CreatedAt, &r.PublishedAt, &r.AttemptCount); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return result, nil
}

// MarkPublished stamps the row as published.
func (s *Store) MarkPublished(ctx context.Context, tx database.DBTX, id string) error {
	ct, err := tx.Exec(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("outbox row", id)
	}
	return nil
}

// IncrementAttempt bumps the attempt count after a failed publish.
func (s *Store) IncrementAttempt(ctx context.Context, tx database.DBTX, id string) error {
	ct, err := tx.Exec(ctx, `UPDATE outbox SET attempt_count = attempt_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment outbox attempt: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("outbox row", id)
	}
	return nil
}

// PurgePublished deletes rows published before the retention cutoff and
// returns the number removed.
func (s *Store) PurgePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	ct, err := s.db.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge published outbox rows: %w", err)
	}
	return ct.RowsAffected(), nil
}
