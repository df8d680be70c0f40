package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parley/internal/chat"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/middleware"
	"github.com/parley/internal/model"
	"github.com/parley/internal/session"
)

// ChatHandler serves message history and private session listings.
type ChatHandler struct {
	router   *chat.Router
	sessions *session.Resolver
}

func NewChatHandler(router *chat.Router, sessions *session.Resolver) *ChatHandler {
	return &ChatHandler{router: router, sessions: sessions}
}

// GlobalHistory returns the newest GLOBAL and SYSTEM messages, oldest first.
func (h *ChatHandler) GlobalHistory(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.GlobalHistory", time.Now())()
	writeJSON(w, http.StatusOK, h.router.GlobalHistory(r.Context()))
}

func (h *ChatHandler) PrivateHistory(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.PrivateHistory", time.Now())()
	a, b := chi.URLParam(r, "user1"), chi.URLParam(r, "user2")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "both usernames required")
		return
	}
	writeJSON(w, http.StatusOK, h.router.PrivateHistory(r.Context(), a, b))
}

func (h *ChatHandler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.router.SessionHistory(r.Context(), id))
}

// PrivateChatView is a session as seen by one participant.
type PrivateChatView struct {
	model.PrivateSession
	With string `json:"with"`
}

func (h *ChatHandler) ListPrivateChats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	list, err := h.sessions.ListForUser(r.Context(), username)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]PrivateChatView, 0, len(list))
	for _, s := range list {
		out = append(out, PrivateChatView{PrivateSession: s, With: s.Other(username)})
	}
	writeJSON(w, http.StatusOK, out)
}

// DeactivatePrivateChat soft-closes a session. Only a participant may close it.
func (h *ChatHandler) DeactivatePrivateChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !sess.Involves(middleware.GetUsername(r.Context())) {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}
	if err := h.sessions.Deactivate(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SendRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// Send posts a message as the current principal: private when recipient is
// set, global otherwise. Anonymous principals may read but not send.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAnonymous(r.Context()) {
		writeError(w, http.StatusUnauthorized, "named user required")
		return
	}
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sender := middleware.GetUsername(r.Context())
	var (
		msg *model.ChatMessage
		err error
	)
	if req.Recipient == "" {
		msg, err = h.router.SendGlobal(r.Context(), sender, req.Content)
	} else {
		msg, err = h.router.SendPrivate(r.Context(), sender, req.Recipient, req.Content)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
