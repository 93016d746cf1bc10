package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
)

const (
	// writeWait is how long a single write may take.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before declaring the peer dead.
	pongWait = 60 * time.Second

	// pingPeriod must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames.
	maxMessageSize = 4096

	// sendBuffer is the per-client outbound queue; a client further behind
	// than this is disconnected.
	sendBuffer = 256

	// syncFlushInterval is how often the delivery position is persisted while
	// the client stays connected.
	syncFlushInterval = 30 * time.Second
)

// outbound is one queued delivery.
type outbound struct {
	entryID string
	payload []byte
}

// Client is one WebSocket connection bound to a (user, conversation, client)
// tuple.
type Client struct {
	UserID         string
	ConversationID string
	ClientID       string

	hub    *Hub
	conn   *websocket.Conn
	sync   *stream.SyncStore
	logger *slog.Logger

	send chan outbound

	mu            sync.Mutex
	lastDelivered string

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. lastDelivered seeds the position
// from stored sync state.
func NewClient(hub *Hub, conn *websocket.Conn, syncStore *stream.SyncStore, userID, conversationID, clientID, lastDelivered string, logger *slog.Logger) *Client {
	return &Client{
		UserID:         userID,
		ConversationID: conversationID,
		ClientID:       clientID,
		hub:            hub,
		conn:           conn,
		sync:           syncStore,
		logger:         logger,
		send:           make(chan outbound, sendBuffer),
		lastDelivered:  lastDelivered,
	}
}

// enqueue offers an entry to the client without blocking. False means the
// buffer is full.
func (c *Client) enqueue(entryID string, payload []byte) bool {
	select {
	case c.send <- outbound{entryID: entryID, payload: payload}:
		return true
	default:
		return false
	}
}

// EnqueueReplay pushes replayed entries before live traffic. It blocks only
// against the buffer, which is empty during replay.
func (c *Client) EnqueueReplay(entries []stream.Entry) {
	for _, e := range entries {
		if !c.enqueue(e.ID, e.Payload) {
			c.logger.Warn("replay overflowed client buffer, truncating",
				slog.String("client_id", c.ClientID),
				slog.String("entry_id", e.ID),
			)
			return
		}
	}
}

// Run registers the client and drives both pumps, blocking until the
// connection dies or ctx is canceled. Cleanup (sync state flush, hub removal,
// socket close) runs on every exit path.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.Close()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// Close flushes sync state and tears the connection down. Safe to call from
// any goroutine, multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.flushSyncState()
		c.hub.Unregister(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// readPump consumes inbound frames. The protocol is server-push; inbound
// frames only keep the connection alive and are otherwise discarded.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed",
					slog.String("client_id", c.ClientID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump writes queued entries, pings on a ticker, and flushes sync state
// periodically.
func (c *Client) writePump(ctx context.Context) {
	pingTicker := time.NewTicker(pingPeriod)
	syncTicker := time.NewTicker(syncFlushInterval)
	defer func() {
		pingTicker.Stop()
		syncTicker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case out := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, out.payload); err != nil {
				return
			}
			messagesSent.Inc()
			c.setLastDelivered(out.entryID)

		case <-pingTicker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-syncTicker.C:
			c.flushSyncState()
		}
	}
}

func (c *Client) setLastDelivered(entryID string) {
	if entryID == "" {
		return
	}
	c.mu.Lock()
	c.lastDelivered = entryID
	c.mu.Unlock()
}

// LastDelivered returns the current delivery position.
func (c *Client) LastDelivered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDelivered
}

// flushSyncState persists the delivery position. It uses a detached context
// so shutdown paths still flush.
func (c *Client) flushSyncState() {
	last := c.LastDelivered()
	if last == "" || c.sync == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.sync.Save(ctx, c.UserID, c.ConversationID, c.ClientID, last); err != nil {
		c.logger.Warn("sync state flush failed",
			slog.String("client_id", c.ClientID),
			slog.String("error", err.Error()),
		)
	}
}
