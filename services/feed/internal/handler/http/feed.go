// Package http exposes the feed service over HTTP.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/httputil"
	"github.com/proerror77/Nova-sub006/services/feed/internal/service"
)

// Trending window bounds accepted from the query string.
const (
	minTrendingWindow     = time.Hour
	maxTrendingWindow     = 7 * 24 * time.Hour
	defaultTrendingWindow = 24 * time.Hour
	suggestedWindow       = 7 * 24 * time.Hour
)

// FeedHandler handles HTTP requests for feed reads and discovery lists.
type FeedHandler struct {
	service *service.FeedService
	logger  *slog.Logger
}

// NewFeedHandler creates a new feed HTTP handler.
func NewFeedHandler(svc *service.FeedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{service: svc, logger: logger}
}

// GetFeed handles GET /api/v1/feed/{userID}?cursor=&limit=
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userID"))
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be a positive integer"), h.logger)
			return
		}
		limit = n
	}

	page, err := h.service.GetFeed(r.Context(), userID.String(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK,
		httputil.Response{Data: httputil.NewPage(page.Items, page.NextCursor, page.HasMore)})
}

// Trending handles GET /api/v1/feed/trending?window=24h
func (h *FeedHandler) Trending(w http.ResponseWriter, r *http.Request) {
	window := defaultTrendingWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < minTrendingWindow || d > maxTrendingWindow {
			httputil.WriteError(w, r, apperrors.InvalidInput("window must be a duration between 1h and 168h"), h.logger)
			return
		}
		window = d
	}

	posts, err := h.service.Trending(r.Context(), window)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: posts})
}

// SuggestedUsers handles GET /api/v1/feed/suggested-users
func (h *FeedHandler) SuggestedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.SuggestedUsers(r.Context(), suggestedWindow)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: users})
}

// Materialize handles POST /api/v1/feed/{userID}/materialize. Internal
// endpoint; in front of the mesh it is not routed publicly.
func (h *FeedHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userID"))
	if !ok {
		return
	}

	entries, err := h.service.Materialize(r.Context(), userID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"entries": entries}})
}
