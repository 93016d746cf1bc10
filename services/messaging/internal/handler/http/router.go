package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/service"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/stream"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/ws"
)

// maxInflightRequests bounds concurrent requests before load shedding. The
// WebSocket route sits outside the shed: long-lived connections are not
// inflight requests.
const maxInflightRequests = 512

// NewRouter creates a chi router with all messaging service routes registered.
func NewRouter(
	messagingService *service.MessagingService,
	hub *ws.Hub,
	publisher *stream.Publisher,
	syncStore *stream.SyncStore,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("messaging"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	messageHandler := NewMessageHandler(messagingService, logger)
	r.Route("/api/v1/conversations", func(r chi.Router) {
		r.Use(middleware.LoadShed("messaging-http", maxInflightRequests))
		r.Post("/{conversationID}/messages", messageHandler.Send)
		r.Get("/{conversationID}/messages", messageHandler.History)
	})

	wsHandler := NewWSHandler(messagingService, hub, publisher, syncStore, logger)
	r.Get("/ws/conversations/{conversationID}", wsHandler.Connect)

	return r
}
