// Package http exposes the notification service over HTTP.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/proerror77/Nova-sub006/pkg/httputil"
	"github.com/proerror77/Nova-sub006/pkg/validator"
	"github.com/proerror77/Nova-sub006/services/notification/internal/service"
)

// NotificationHandler handles HTTP requests for the push queue and dispatch.
type NotificationHandler struct {
	service *service.NotificationService
	logger  *slog.Logger
}

// NewNotificationHandler creates a new notification HTTP handler.
func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: logger}
}

// EnqueueRequest is the JSON request body for queuing a push job.
type EnqueueRequest struct {
	DeviceToken string `json:"device_token" validate:"required"`
	Platform    string `json:"platform" validate:"required,oneof=ios android"`
	Title       string `json:"title" validate:"required,max=256"`
	Body        string `json:"body" validate:"max=2048"`
	Badge       int    `json:"badge" validate:"gte=0"`
	MaxRetries  int    `json:"max_retries" validate:"gte=0,lte=10"`
}

// Enqueue handles POST /api/v1/notifications
func (h *NotificationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	job, err := h.service.Enqueue(r.Context(), service.EnqueueInput{
		DeviceToken: req.DeviceToken,
		Platform:    req.Platform,
		Title:       req.Title,
		Body:        req.Body,
		Badge:       req.Badge,
		MaxRetries:  req.MaxRetries,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: job})
}

// Get handles GET /api/v1/notifications/{jobID}
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, ok := httputil.ParseUUID(w, chi.URLParam(r, "jobID"))
	if !ok {
		return
	}

	job, err := h.service.Get(r.Context(), jobID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: job})
}

// Cancel handles POST /api/v1/notifications/{jobID}/cancel
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID, ok := httputil.ParseUUID(w, chi.URLParam(r, "jobID"))
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), jobID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "canceled"}})
}

// DispatchRequest is the JSON request body for multi-channel dispatch.
type DispatchRequest struct {
	UserID      string   `json:"user_id" validate:"required,uuid"`
	Channels    []string `json:"channels" validate:"required,min=1,dive,oneof=push email in_app"`
	Title       string   `json:"title" validate:"required,max=256"`
	Body        string   `json:"body" validate:"max=2048"`
	DeviceToken string   `json:"device_token"`
	Platform    string   `json:"platform" validate:"omitempty,oneof=ios android"`
	Badge       int      `json:"badge" validate:"gte=0"`
}

// Dispatch handles POST /api/v1/notifications/dispatch
func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	results, err := h.service.Dispatch(r.Context(), service.DispatchInput{
		UserID:      req.UserID,
		Channels:    req.Channels,
		Title:       req.Title,
		Body:        req.Body,
		DeviceToken: req.DeviceToken,
		Platform:    req.Platform,
		Badge:       req.Badge,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: results})
}
