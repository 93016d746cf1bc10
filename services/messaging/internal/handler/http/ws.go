package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/proerror77/Nova-sub006/pkg/httputil"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/service"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/ws"
)

// WSHandler upgrades connections and drives the replay-then-live sequence.
type WSHandler struct {
	service   *service.MessagingService
	hub       *ws.Hub
	publisher *stream.Publisher
	syncStore *stream.SyncStore
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewWSHandler creates the WebSocket connect handler.
func NewWSHandler(svc *service.MessagingService, hub *ws.Hub, publisher *stream.Publisher, syncStore *stream.SyncStore, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service:   svc,
		hub:       hub,
		publisher: publisher,
		syncStore: syncStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the CORS middleware in front.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /ws/conversations/{conversationID}?user_id=&client_id=
//
// On connect: authorize, load sync state, replay everything after the last
// delivered entry, then go live through the hub.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}
	userID, ok := httputil.ParseUUID(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	if err := h.service.Authorize(r.Context(), conversationID.String(), userID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	state, _, err := h.syncStore.Get(r.Context(), userID.String(), conversationID.String(), clientID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "sync state read failed, replaying full window",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}

	entries, err := h.publisher.Replay(r.Context(), conversationID.String(), state.LastDeliveredStreamID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "replay failed, client starts live only",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, h.syncStore,
		userID.String(), conversationID.String(), clientID,
		state.LastDeliveredStreamID, h.logger)
	client.EnqueueReplay(entries)
	client.Run(r.Context())
}
