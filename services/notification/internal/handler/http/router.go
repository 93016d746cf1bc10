package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/services/notification/internal/service"
)

// maxInflightRequests bounds concurrent requests before load shedding.
const maxInflightRequests = 512

// NewRouter creates a chi router with all notification service routes
// registered.
func NewRouter(
	notificationService *service.NotificationService,
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
	r.Use(middleware.PrometheusMetrics("notification"))
	r.Use(middleware.LoadShed("notification-http", maxInflightRequests))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	handler := NewNotificationHandler(notificationService, logger)
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Post("/", handler.Enqueue)
		r.Post("/dispatch", handler.Dispatch)
		r.Get("/{jobID}", handler.Get)
		r.Post("/{jobID}/cancel", handler.Cancel)
	})

	return r
}
