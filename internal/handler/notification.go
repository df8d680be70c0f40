package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parley/internal/middleware"
	"github.com/parley/internal/model"
	"github.com/parley/internal/notify"
)

// NotificationHandler serves the current principal's notifications.
type NotificationHandler struct {
	notifications *notify.Dispatcher
}

func NewNotificationHandler(d *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{notifications: d}
}

// List returns notifications newest first; ?unread=true keeps unread ones only.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, queryBool(r, "unread"))
}

func (h *NotificationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *NotificationHandler) list(w http.ResponseWriter, r *http.Request, unreadOnly bool) {
	list, err := h.notifications.List(r.Context(), middleware.GetUsername(r.Context()), unreadOnly)
	if err != nil {
		writeErr(w, err)
		return
	}
	if limit := queryInt(r, "limit", 0); limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), middleware.GetUsername(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkRead(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), middleware.GetUsername(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Test sends a TEST notification to the caller over every channel.
func (h *NotificationHandler) Test(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.Notify(r.Context(), notify.Request{
		Recipient:   middleware.GetUsername(r.Context()),
		Sender:      model.SystemSender,
		Content:     "Test notification",
		ChatType:    model.ChatTypeGlobal,
		ChatID:      model.GlobalChatID,
		MessageType: model.NotificationTest,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
