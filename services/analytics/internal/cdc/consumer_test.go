package cdc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/pkg/resilience"
	"github.com/proerror77/Nova-sub006/services/analytics/internal/repository/postgres"
)

// stubReader serves preloaded messages then blocks until the context ends.
type stubReader struct {
	mu      sync.Mutex
	msgs    []kafkago.Message
	idx     int
	commits []int64
}

func (s *stubReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	s.mu.Lock()
	if s.idx < len(s.msgs) {
		m := s.msgs[s.idx]
		s.idx++
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (s *stubReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.commits = append(s.commits, m.Offset)
	}
	return nil
}

func (s *stubReader) Close() error { return nil }

func (s *stubReader) committed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.commits...)
}

// stubOffsets records checkpoint saves.
type stubOffsets struct {
	mu    sync.Mutex
	saves []int64
}

func (s *stubOffsets) SaveOffset(_ context.Context, _ string, _ int, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, offset)
	return nil
}

func (s *stubOffsets) saved() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.saves...)
}

// stubDLQ records dead-lettered messages.
type stubDLQ struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (s *stubDLQ) Publish(_ context.Context, msg kafkago.Message, _ error, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *stubDLQ) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// stubNotifier records published feed invalidations.
type stubNotifier struct {
	mu   sync.Mutex
	err  error
	invs []Invalidation
}

func (s *stubNotifier) PublishInvalidation(_ context.Context, inv Invalidation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.invs = append(s.invs, inv)
	return nil
}

func (s *stubNotifier) published() []Invalidation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Invalidation(nil), s.invs...)
}

// funcSink routes post upserts through a test closure; the other tables are
// not exercised here.
type funcSink struct {
	memorySink
	upsertPost func(ctx context.Context, row postgres.PostRow) error
}

func (f *funcSink) UpsertPost(ctx context.Context, row postgres.PostRow) error {
	return f.upsertPost(ctx, row)
}

func postMessage(t *testing.T, offset int64, postID string) kafkago.Message {
	t.Helper()
	rec := Record{
		Op:     OpInsert,
		After:  json.RawMessage(fmt.Sprintf(`{"id":%q,"author_id":"u-1","created_at":%d}`, postID, time.Now().UnixMilli())),
		Source: Source{DB: "nova", Schema: "public", Table: TablePosts, TSMS: time.Now().UnixMilli()},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafkago.Message{Topic: "cdc.posts", Partition: 0, Offset: offset, Value: data}
}

func likeMessage(t *testing.T, offset int64, postID, userID string) kafkago.Message {
	t.Helper()
	rec := Record{
		Op:     OpInsert,
		After:  json.RawMessage(fmt.Sprintf(`{"post_id":%q,"user_id":%q,"created_at":%d}`, postID, userID, time.Now().UnixMilli())),
		Source: Source{DB: "nova", Schema: "public", Table: TableLikes, TSMS: time.Now().UnixMilli()},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafkago.Message{Topic: "cdc.likes", Partition: 0, Offset: offset, Value: data}
}

func newTestConsumer(t *testing.T, reader *stubReader, sink Sink) (*Consumer, *stubOffsets, *stubDLQ) {
	t.Helper()
	deduper := kafka.NewDeduper(time.Minute, time.Minute)
	t.Cleanup(deduper.Close)

	offsets := &stubOffsets{}
	dlq := &stubDLQ{}
	c := &Consumer{
		reader:  reader,
		sink:    sink,
		offsets: offsets,
		deduper: deduper,
		dlq:     dlq,
		cfg: ConsumerConfig{
			Topic:       "cdc.posts",
			MaxInflight: 4,
			MaxSkew:     12 * time.Hour,
		},
		policy: resilience.Policy{MaxRetries: 0, Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
		logger: slog.New(slog.DiscardHandler),
	}
	return c, offsets, dlq
}

func runUntil(t *testing.T, c *Consumer, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Start(ctx)
		close(done)
	}()

	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_CommitsInFetchOrder(t *testing.T) {
	reader := &stubReader{}
	for i := int64(0); i < 5; i++ {
		reader.msgs = append(reader.msgs, postMessage(t, i, fmt.Sprintf("p-%d", i)))
	}

	// Earlier offsets finish last, so in-order commits prove the sequencer
	// waits rather than committing completion order.
	sink := &funcSink{upsertPost: func(_ context.Context, row postgres.PostRow) error {
		var n int
		_, _ = fmt.Sscanf(row.PostID, "p-%d", &n)
		time.Sleep(time.Duration(5-n) * 10 * time.Millisecond)
		return nil
	}}

	c, offsets, _ := newTestConsumer(t, reader, sink)
	runUntil(t, c, func() bool { return len(reader.committed()) == 5 })

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, reader.committed())
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, offsets.saved())
}

func TestConsumer_InvalidRecordDeadLettersAndAdvances(t *testing.T) {
	reader := &stubReader{msgs: []kafkago.Message{
		{Topic: "cdc.posts", Offset: 0, Value: []byte(`{"op":"x"}`)},
	}}

	c, offsets, dlq := newTestConsumer(t, reader, &memorySink{})
	runUntil(t, c, func() bool { return len(reader.committed()) == 1 })

	assert.Equal(t, 1, dlq.count())
	assert.Equal(t, []int64{1}, offsets.saved())
}

func TestConsumer_DuplicateSkipped(t *testing.T) {
	msg := postMessage(t, 0, "p-dup")
	dup := msg
	dup.Offset = 1
	reader := &stubReader{msgs: []kafkago.Message{msg, dup}}

	sink := &memorySink{}
	c, _, dlq := newTestConsumer(t, reader, sink)
	runUntil(t, c, func() bool { return len(reader.committed()) == 2 })

	assert.Len(t, sink.posts, 1, "duplicate must not reach the store")
	assert.Equal(t, 0, dlq.count())
}

func TestConsumer_StoreFailureDeadLetters(t *testing.T) {
	reader := &stubReader{msgs: []kafkago.Message{postMessage(t, 0, "p-fail")}}

	sink := &funcSink{upsertPost: func(context.Context, postgres.PostRow) error {
		return apperrors.Internal(fmt.Errorf("store down"))
	}}

	c, _, dlq := newTestConsumer(t, reader, sink)
	runUntil(t, c, func() bool { return len(reader.committed()) == 1 })

	assert.Equal(t, 1, dlq.count())
}

func TestConsumer_StoredLikeRefreshesLikerFeed(t *testing.T) {
	reader := &stubReader{msgs: []kafkago.Message{likeMessage(t, 0, "p-1", "u-9")}}

	notifier := &stubNotifier{}
	c, _, _ := newTestConsumer(t, reader, &memorySink{})
	c.notifier = notifier
	runUntil(t, c, func() bool { return len(reader.committed()) == 1 })

	invs := notifier.published()
	require.Len(t, invs, 1)
	assert.Equal(t, "u-9", invs[0].UserID)
	assert.Equal(t, "like", invs[0].Reason)
}

func TestConsumer_UnstoredRecordPublishesNoInvalidation(t *testing.T) {
	reader := &stubReader{msgs: []kafkago.Message{likeMessage(t, 0, "p-1", "u-9")}}

	sink := &memorySink{err: apperrors.Internal(fmt.Errorf("store down"))}
	notifier := &stubNotifier{}
	c, _, dlq := newTestConsumer(t, reader, sink)
	c.notifier = notifier
	runUntil(t, c, func() bool { return len(reader.committed()) == 1 })

	assert.Equal(t, 1, dlq.count())
	assert.Empty(t, notifier.published(), "invalidation must follow the store, not precede it")
}

func TestConsumer_InvalidationFailureDoesNotBlockCommit(t *testing.T) {
	reader := &stubReader{msgs: []kafkago.Message{likeMessage(t, 0, "p-1", "u-9")}}

	sink := &memorySink{}
	c, _, dlq := newTestConsumer(t, reader, sink)
	c.notifier = &stubNotifier{err: fmt.Errorf("broker down")}
	runUntil(t, c, func() bool { return len(reader.committed()) == 1 })

	assert.Len(t, sink.likes, 1)
	assert.Equal(t, 0, dlq.count(), "a lost notice must not dead-letter a stored record")
}
