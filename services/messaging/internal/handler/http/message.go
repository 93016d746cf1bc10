// Package http exposes the messaging service over HTTP and WebSocket.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/httputil"
	"github.com/proerror77/Nova-sub006/pkg/validator"
	"github.com/proerror77/Nova-sub006/services/messaging/internal/service"
)

// MessageHandler handles HTTP requests for sending and reading messages.
type MessageHandler struct {
	service *service.MessagingService
	logger  *slog.Logger
}

// NewMessageHandler creates a new message HTTP handler.
func NewMessageHandler(svc *service.MessagingService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{service: svc, logger: logger}
}

// SendRequest is the JSON request body for sending a message.
type SendRequest struct {
	SenderID string `json:"sender_id" validate:"required,uuid"`
	Body     string `json:"body" validate:"required,max=4000"`
}

// Send handles POST /api/v1/conversations/{conversationID}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}

	var req SendRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	msg, err := h.service.Send(r.Context(), conversationID.String(), req.SenderID, req.Body)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: msg})
}

// History handles GET /api/v1/conversations/{conversationID}/messages
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "conversationID"))
	if !ok {
		return
	}

	userID, ok := httputil.ParseUUID(w, r.URL.Query().Get("user_id"))
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

	msgs, err := h.service.History(r.Context(), conversationID.String(), userID.String(), r.URL.Query().Get("before"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: msgs})
}
