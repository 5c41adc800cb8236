package proxy

import (
	"errors"
	"net/http"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/notification"
)

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.notifications.List(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list notifications", err)
		return
	}
	writeEnvelope(w, envelope.Ok(items, http.StatusOK))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.UnreadCount(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to count notifications", err)
		return
	}
	writeEnvelope(w, envelope.Ok(map[string]int{"count": count}, http.StatusOK))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkRead(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, notification.ErrNotFound):
		h.fail(w, r, http.StatusNotFound, "notification.not_found", nil)
	case err != nil:
		h.internalError(w, r, "Failed to mark notification read", err)
	default:
		writeEnvelope(w, envelope.Ok(nil, http.StatusOK))
	}
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(r.Context()); err != nil {
		h.internalError(w, r, "Failed to mark notifications read", err)
		return
	}
	writeEnvelope(w, envelope.Ok(nil, http.StatusOK))
}

func (h *Handler) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Clear(r.Context()); err != nil {
		h.internalError(w, r, "Failed to clear notifications", err)
		return
	}
	env := envelope.Ok(nil, http.StatusOK)
	env.Message = h.text(r, "notification.cleared", nil)
	writeEnvelope(w, env)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.ErrorContext(r.Context(), msg, "request_id", RequestID(r.Context()), "error", err)
	h.fail(w, r, http.StatusInternalServerError, "error.internal", nil)
}
