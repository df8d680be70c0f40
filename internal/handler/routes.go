package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/parley/internal/middleware"
)

// Handlers groups the HTTP surface of the chat service. Nil members are not mounted.
type Handlers struct {
	Chat          *ChatHandler
	Users         *UserHandler
	Notifications *NotificationHandler
	Push          *PushHandler
	Config        *ConfigHandler
	WS            *WSHandler
}

// Mount registers every route on r. Callers install Principal before it.
func (hs *Handlers) Mount(r chi.Router) {
	if hs.WS != nil {
		r.Get("/ws", hs.WS.ServeWS)
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitAPI)

		if hs.Config != nil {
			r.Get("/config/push", hs.Config.GetPushConfig)
			r.Get("/config/chat", hs.Config.GetChatConfig)
		}
		if c := hs.Chat; c != nil {
			r.Get("/messages/all", c.GlobalHistory)
			r.Get("/messages/private/{user1}/{user2}", c.PrivateHistory)
			r.Post("/messages", c.Send)
			r.Get("/private-chat/{id}/messages", c.SessionHistory)
			r.Delete("/private-chat/{id}", c.DeactivatePrivateChat)
			r.Get("/private-chats/{username}", c.ListPrivateChats)
		}
		if u := hs.Users; u != nil {
			r.Get("/users/online", u.Online)
			r.Post("/users/{username}/disconnect", u.Disconnect)
			r.With(middleware.InternalOnly).Post("/users/reset-offline", u.ResetOffline)
		}
		if n := hs.Notifications; n != nil {
			r.Get("/notifications", n.List)
			r.Get("/notifications/unread", n.Unread)
			r.Get("/notifications/count", n.UnreadCount)
			r.Post("/notifications/read/{chatId}", n.MarkRead)
			r.Post("/notifications/read-all", n.MarkAllRead)
			r.Post("/notifications/test", n.Test)
		}
		if p := hs.Push; p != nil {
			r.Post("/push/subscribe", p.Subscribe)
			r.Post("/push/unsubscribe", p.Unsubscribe)
		}
	})
}
