package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/services/feed/internal/service"
)

// maxInflightRequests bounds concurrent requests before load shedding.
const maxInflightRequests = 512

// NewRouter creates a chi router with all feed service routes registered.
func NewRouter(
	feedService *service.FeedService,
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
	r.Use(middleware.PrometheusMetrics("feed"))
	r.Use(middleware.LoadShed("feed-http", maxInflightRequests))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	feedHandler := NewFeedHandler(feedService, logger)
	r.Route("/api/v1/feed", func(r chi.Router) {
		r.Get("/trending", feedHandler.Trending)
		r.Get("/suggested-users", feedHandler.SuggestedUsers)
		r.Get("/{userID}", feedHandler.GetFeed)
		r.Post("/{userID}/materialize", feedHandler.Materialize)
	})

	return r
}
