package outbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proerror77/Nova-sub006/pkg/database"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// stubPublisher records published envelopes and fails for selected aggregates.
type stubPublisher struct {
	published []*kafka.Envelope
	topics    []string
	failFor   map[string]error
}

func (p *stubPublisher) Publish(_ context.Context, topic string, env *kafka.Envelope) error {
	if err, ok := p.failFor[env.AggregateID]; ok {
		return err
	}
	p.published = append(p.published, env)
	p.topics = append(p.topics, topic)
	return nil
}

func newTestDrainer(t *testing.T, pub Publisher) (*Drainer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	cfg := DefaultDrainerConfig()
	return NewDrainer(mock, pub, cfg, slog.New(slog.DiscardHandler)), mock
}

func pendingRows(t *testing.T, envs ...*kafka.Envelope) *pgxmock.Rows {
	t.Helper()
	rows := pgxmock.NewRows([]string{
		"id", "aggregate_type", "aggregate_id", "event_type", "payload",
		"created_at", "published_at", "attempt_count",
	})
	base := time.Now().UTC()
	for i, env := range envs {
		payload, err := env.Marshal()
		require.NoError(t, err)
		rows.AddRow(env.EventID, env.AggregateType, env.AggregateID, env.EventType,
			payload, base.Add(time.Duration(i)*time.Millisecond), nil, 0)
	}
	return rows
}

func userEnvelope(t *testing.T, eventType, userID string) *kafka.Envelope {
	t.Helper()
	env, err := kafka.NewEnvelope(context.Background(), eventType, "user", userID, "identity-service", nil)
	require.NoError(t, err)
	return env
}

// --- DrainOnce ---

func TestDrainer_DrainOnce_PublishesAndMarks(t *testing.T) {
	pub := &stubPublisher{}
	d, mock := newTestDrainer(t, pub)

	e1 := userEnvelope(t, kafka.EventUserCreated, "u-1")
	e2 := userEnvelope(t, kafka.EventUserProfileUpdated, "u-2")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(d.cfg.BatchSize, d.cfg.MaxAttempts).
		WillReturnRows(pendingRows(t, e1, e2))
	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(e1.EventID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(e2.EventID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.published, 2)
	assert.Equal(t, []string{
		kafka.UserEventTopic(kafka.EventUserCreated),
		kafka.UserEventTopic(kafka.EventUserProfileUpdated),
	}, pub.topics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainer_DrainOnce_EmptyBatch(t *testing.T) {
	pub := &stubPublisher{}
	d, mock := newTestDrainer(t, pub)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(d.cfg.BatchSize, d.cfg.MaxAttempts).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_type", "aggregate_id", "event_type", "payload",
			"created_at", "published_at", "attempt_count",
		}))
	mock.ExpectCommit()

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.published)
}

func TestDrainer_DrainOnce_FailedAggregateBlocksLaterRows(t *testing.T) {
	// u-1 fails: its second event must not publish ahead of its first, and
	// only the attempted row gets its attempt count bumped. u-2 is unaffected.
	e1 := userEnvelope(t, kafka.EventUserCreated, "u-1")
	e2 := userEnvelope(t, kafka.EventUserProfileUpdated, "u-1")
	e3 := userEnvelope(t, kafka.EventUserCreated, "u-2")

	pub := &stubPublisher{failFor: map[string]error{"u-1": errors.New("broker down")}}
	d, mock := newTestDrainer(t, pub)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(d.cfg.BatchSize, d.cfg.MaxAttempts).
		WillReturnRows(pendingRows(t, e1, e2, e3))
	mock.ExpectExec("UPDATE outbox SET attempt_count").
		WithArgs(e1.EventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(e3.EventID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "u-2", pub.published[0].AggregateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainer_DrainOnce_UndecodablePayloadBumpsAttempt(t *testing.T) {
	pub := &stubPublisher{}
	d, mock := newTestDrainer(t, pub)

	rows := pgxmock.NewRows([]string{
		"id", "aggregate_type", "aggregate_id", "event_type", "payload",
		"created_at", "published_at", "attempt_count",
	}).AddRow("row-bad", "user", "u-1", kafka.EventUserCreated, []byte(`{broken`), time.Now().UTC(), nil, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(d.cfg.BatchSize, d.cfg.MaxAttempts).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox SET attempt_count").
		WithArgs("row-bad").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := d.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.published)
}

func TestDrainer_DrainOnce_BeginError(t *testing.T) {
	pub := &stubPublisher{}
	d, mock := newTestDrainer(t, pub)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := d.DrainOnce(context.Background())
	require.Error(t, err)
}
