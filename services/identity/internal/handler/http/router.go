package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proerror77/Nova-sub006/pkg/health"
	"github.com/proerror77/Nova-sub006/pkg/middleware"
	"github.com/proerror77/Nova-sub006/services/identity/internal/service"
)

// maxInflightRequests bounds concurrent requests before load shedding.
const maxInflightRequests = 512

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(
	userService *service.UserService,
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
	r.Use(middleware.PrometheusMetrics("identity"))
	r.Use(middleware.LoadShed("identity-http", maxInflightRequests))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	userHandler := NewUserHandler(userService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/", userHandler.Register)
		r.Get("/{id}", userHandler.GetUser)
		r.Get("/by-username/{username}", userHandler.GetUserByUsername)
		r.Patch("/{id}", userHandler.UpdateProfile)
		r.Delete("/{id}", userHandler.DeleteUser)
		r.Post("/{id}/password", userHandler.ChangePassword)
		r.Post("/{id}/two-fa", userHandler.EnableTwoFA)
	})

	return r
}
