package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parley/internal/chat"
	"github.com/parley/internal/middleware"
	"github.com/parley/internal/presence"
)

// UserHandler exposes presence.
type UserHandler struct {
	presence *presence.Tracker
	router   *chat.Router
}

func NewUserHandler(p *presence.Tracker, router *chat.Router) *UserHandler {
	return &UserHandler{presence: p, router: router}
}

func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.presence.ListOnline(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Disconnect marks the caller offline without waiting for the socket to drop.
func (h *UserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if middleware.GetUsername(r.Context()) != username {
		writeError(w, http.StatusForbidden, "can only disconnect yourself")
		return
	}
	if err := h.router.OnDisconnect(r.Context(), username); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetOffline clears every online flag, e.g. after an unclean restart.
func (h *UserHandler) ResetOffline(w http.ResponseWriter, r *http.Request) {
	n, err := h.presence.ResetAllOffline(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	h.router.PublishOnlineUsers(r.Context())
	writeJSON(w, http.StatusOK, map[string]int64{"reset": n})
}
