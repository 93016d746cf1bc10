package ws

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
)

func newTestClient(hub *Hub, userID, conversationID string) *Client {
	return NewClient(hub, nil, nil, userID, conversationID, "client-"+userID, "", slog.New(slog.DiscardHandler))
}

func TestHub_RegisterAndCount(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	a := newTestClient(hub, "u-1", "c-1")
	b := newTestClient(hub, "u-2", "c-1")
	c := newTestClient(hub, "u-3", "c-2")

	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	assert.Equal(t, 2, hub.ClientCount("c-1"))
	assert.Equal(t, 1, hub.ClientCount("c-2"))
	assert.Zero(t, hub.ClientCount("c-none"))
}

func TestHub_BroadcastReachesOnlyConversationMembers(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	member := newTestClient(hub, "u-1", "c-1")
	other := newTestClient(hub, "u-2", "c-2")
	hub.Register(member)
	hub.Register(other)

	hub.Broadcast("c-1", "100-0", []byte(`{"body":"hi"}`))

	select {
	case out := <-member.send:
		assert.Equal(t, "100-0", out.entryID)
		assert.JSONEq(t, `{"body":"hi"}`, string(out.payload))
	default:
		t.Fatal("member received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("client of another conversation received the broadcast")
	default:
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	slow := newTestClient(hub, "u-1", "c-1")
	hub.Register(slow)

	// Fill the buffer; the next broadcast cannot be enqueued.
	for i := 0; i < sendBuffer; i++ {
		require.True(t, slow.enqueue("1-0", []byte("x")))
	}

	hub.Broadcast("c-1", "2-0", []byte("overflow"))

	assert.Zero(t, hub.ClientCount("c-1"), "slow client must be unregistered")
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	c := newTestClient(hub, "u-1", "c-1")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	assert.Zero(t, hub.ClientCount("c-1"))
}

func TestClient_EnqueueReplayPreservesOrder(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	c := newTestClient(hub, "u-1", "c-1")

	c.EnqueueReplay([]stream.Entry{
		{ID: "1-0", Payload: []byte("first")},
		{ID: "2-0", Payload: []byte("second")},
	})

	first := <-c.send
	second := <-c.send
	assert.Equal(t, "1-0", first.entryID)
	assert.Equal(t, "2-0", second.entryID)
}

func TestClient_LastDeliveredSeededFromSyncState(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))
	c := NewClient(hub, nil, nil, "u-1", "c-1", "dev-1", "1700000000000-0", slog.New(slog.DiscardHandler))

	assert.Equal(t, "1700000000000-0", c.LastDelivered())

	c.setLastDelivered("1700000000001-0")
	assert.Equal(t, "1700000000001-0", c.LastDelivered())

	// Empty ids never move the position backwards.
	c.setLastDelivered("")
	assert.Equal(t, "1700000000001-0", c.LastDelivered())
}
