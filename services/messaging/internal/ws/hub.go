// Package ws implements the WebSocket delivery edge: a per-process hub keyed
// by conversation and the read/write pumps of each client.
package ws

import (
	"log/slog"
	"sync"
)

// Hub indexes connected clients by conversation and fans broadcasts out to
// them. It is process-local; cross-process delivery rides the fanout stream.
type Hub struct {
	mu            sync.RWMutex
	conversations map[string]map[*Client]struct{}
	logger        *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conversations: make(map[string]map[*Client]struct{}),
		logger:        logger,
	}
}

// Register adds a client to its conversation's set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conversations[c.ConversationID]
	if !ok {
		set = make(map[*Client]struct{})
		h.conversations[c.ConversationID] = set
	}
	set[c] = struct{}{}
	connectionsGauge.Inc()
}

// Unregister removes a client. Safe to call for an already-removed client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conversations[c.ConversationID]
	if !ok {
		return
	}
	if _, present := set[c]; !present {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conversations, c.ConversationID)
	}
	connectionsGauge.Dec()
}

// Broadcast enqueues an entry to every client of a conversation. A client
// whose buffer is full is disconnected rather than allowed to stall the rest.
func (h *Hub) Broadcast(conversationID, entryID string, payload []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.conversations[conversationID] {
		if !c.enqueue(entryID, payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slowClientsDropped.Inc()
		h.logger.Warn("dropping slow websocket client",
			slog.String("user_id", c.UserID),
			slog.String("conversation_id", c.ConversationID),
			slog.String("client_id", c.ClientID),
		)
		c.Close()
	}
}

// ClientCount reports connected clients for a conversation.
func (h *Hub) ClientCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}
