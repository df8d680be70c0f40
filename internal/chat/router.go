// Package chat routes chat events: it persists every message first and only
// then delivers it on the global or private channels, announces joins and
// leaves, and keeps the presence snapshot fresh.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/presence"
	"github.com/parley/internal/pubsub"
	"github.com/parley/internal/session"
	"github.com/parley/internal/storage"
)

// Notifier is the secondary notification path used after a message is persisted.
type Notifier interface {
	NotifyGlobalMessage(ctx context.Context, recipient, sender, content string) (*model.Notification, error)
	NotifyPrivateMessage(ctx context.Context, recipient, sender, content string) (*model.Notification, error)
	NotifyTyping(ctx context.Context, recipient, sender string, chatType model.ChatType, chatID string) (*model.Notification, error)
	NotifyStopTyping(ctx context.Context, recipient, sender string, chatType model.ChatType, chatID string) (*model.Notification, error)
}

type Options struct {
	// HistoryLimit caps GlobalHistory; 0 means unlimited.
	HistoryLimit int
	// AnnounceLeave broadcasts a SYSTEM "has left the chat" message on disconnect.
	AnnounceLeave bool
}

// SessionStarted is published on both participants' notification channels
// when a private session is created. It is not persisted.
type SessionStarted struct {
	SessionID string    `json:"session_id"`
	With      string    `json:"with"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Router struct {
	presence *presence.Tracker
	sessions *session.Resolver
	messages storage.MessageStore
	notifier Notifier
	pub      pubsub.Publisher
	opts     Options
	now      func() time.Time
}

func NewRouter(p *presence.Tracker, s *session.Resolver, messages storage.MessageStore, n Notifier, pub pubsub.Publisher, opts Options) *Router {
	return &Router{
		presence: p,
		sessions: s,
		messages: messages,
		notifier: n,
		pub:      pub,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return chaterr.Invalid(field, "required")
	}
	return nil
}

// SendGlobal persists a GLOBAL message, broadcasts it and notifies every other
// online user. Nothing is delivered when persistence fails.
func (r *Router) SendGlobal(ctx context.Context, sender, content string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("chat.SendGlobal", time.Now())()
	if err := required("sender", sender); err != nil {
		return nil, err
	}
	if err := required("content", content); err != nil {
		return nil, err
	}
	if _, _, err := r.presence.FindOrCreate(ctx, sender); err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{
		Content:   content,
		Sender:    sender,
		Type:      model.MessageTypeGlobal,
		Timestamp: r.now(),
	}
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		return nil, chaterr.Storage("chat.SendGlobal", err)
	}
	// committed: delivery runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	r.touch(ctx, sender)
	r.publish(ctx, pubsub.GlobalChannel, pubsub.EventChatMessage, msg)

	online, err := r.presence.ListOnline(ctx)
	if err != nil {
		logger.Errorf("chat: list online for global notifications: %v", err)
		return msg, nil
	}
	for _, u := range online {
		if u.Username == sender {
			continue
		}
		if _, err := r.notifier.NotifyGlobalMessage(ctx, u.Username, sender, content); err != nil {
			logger.Warnf("chat: notify %s of global message: %v", u.Username, err)
		}
	}
	return msg, nil
}

// SendPrivate persists a PRIVATE message in the pair's session and delivers it
// to both participants' private channels. A message to oneself carries no
// session and is delivered once without a notification.
func (r *Router) SendPrivate(ctx context.Context, sender, recipient, content string) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("chat.SendPrivate", time.Now())()
	if err := required("sender", sender); err != nil {
		return nil, err
	}
	if err := required("recipient", recipient); err != nil {
		return nil, err
	}
	if err := required("content", content); err != nil {
		return nil, err
	}
	if _, _, err := r.presence.FindOrCreate(ctx, sender); err != nil {
		return nil, err
	}
	if _, _, err := r.presence.FindOrCreate(ctx, recipient); err != nil {
		return nil, err
	}

	self := sender == recipient
	var (
		sess    *model.PrivateSession
		created bool
	)
	if !self {
		var err error
		sess, created, err = r.sessions.GetOrCreate(ctx, sender, recipient)
		if err != nil {
			return nil, err
		}
	}

	msg := &model.ChatMessage{
		Content:   content,
		Sender:    sender,
		Recipient: recipient,
		Type:      model.MessageTypePrivate,
		Timestamp: r.now(),
	}
	if sess != nil {
		msg.SessionID = sess.ID
	}
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		return nil, chaterr.Storage("chat.SendPrivate", err)
	}
	ctx = context.WithoutCancel(ctx)
	if sess != nil {
		if err := r.sessions.UpdateLastMessage(ctx, sess.ID, msg); err != nil {
			logger.Errorf("chat: update last message of session %s: %v", sess.ID, err)
		}
	}

	r.touch(ctx, sender)
	r.publish(ctx, pubsub.UserChannel(sender), pubsub.EventChatMessage, msg)
	if self {
		return msg, nil
	}
	r.publish(ctx, pubsub.UserChannel(recipient), pubsub.EventChatMessage, msg)

	if created {
		r.announceSession(ctx, sess, sender, recipient)
	}
	if _, err := r.notifier.NotifyPrivateMessage(ctx, recipient, sender, content); err != nil {
		logger.Warnf("chat: notify %s of private message: %v", recipient, err)
	}
	return msg, nil
}

func (r *Router) announceSession(ctx context.Context, sess *model.PrivateSession, sender, recipient string) {
	at := r.now()
	r.publish(ctx, pubsub.UserNotificationChannel(sender), pubsub.EventSessionStart, SessionStarted{
		SessionID: sess.ID,
		With:      recipient,
		Content:   "Private chat started with " + recipient,
		Timestamp: at,
	})
	r.publish(ctx, pubsub.UserNotificationChannel(recipient), pubsub.EventSessionStart, SessionStarted{
		SessionID: sess.ID,
		With:      sender,
		Content:   sender + " started a private chat with you",
		Timestamp: at,
	})
}

// AnnounceJoin persists and broadcasts the "has joined" SYSTEM message, then
// pushes a fresh online-users snapshot.
func (r *Router) AnnounceJoin(ctx context.Context, username string) error {
	if err := required("username", username); err != nil {
		return err
	}
	if _, err := r.systemMessage(ctx, username+" has joined the chat!"); err != nil {
		return err
	}
	r.PublishOnlineUsers(context.WithoutCancel(ctx))
	return nil
}

// AnnounceLeave marks username offline and pushes a fresh snapshot. The
// "has left" SYSTEM message is only sent when Options.AnnounceLeave is set.
// Users that never joined are ignored.
func (r *Router) AnnounceLeave(ctx context.Context, username string) error {
	if err := required("username", username); err != nil {
		return err
	}
	found, err := r.presence.SetOnline(ctx, username, false)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	if r.opts.AnnounceLeave {
		if _, err := r.systemMessage(ctx, username+" has left the chat"); err != nil {
			logger.Errorf("chat: leave message for %s: %v", username, err)
		}
	}
	r.PublishOnlineUsers(ctx)
	return nil
}

func (r *Router) systemMessage(ctx context.Context, content string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		Content:   content,
		Sender:    model.SystemSender,
		Type:      model.MessageTypeSystem,
		Timestamp: r.now(),
	}
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		return nil, chaterr.Storage("chat.systemMessage", err)
	}
	r.publish(context.WithoutCancel(ctx), pubsub.GlobalChannel, pubsub.EventChatMessage, msg)
	return msg, nil
}

// PublishOnlineUsers pushes the current online snapshot on the presence channel.
func (r *Router) PublishOnlineUsers(ctx context.Context) {
	users, err := r.presence.ListOnline(ctx)
	if err != nil {
		logger.Errorf("chat: online snapshot: %v", err)
		return
	}
	r.publish(ctx, pubsub.PresenceChannel, pubsub.EventOnlineUsers, users)
}

// GlobalHistory returns GLOBAL and SYSTEM messages in ascending time order,
// at most Options.HistoryLimit of the newest. Store errors yield an empty list.
func (r *Router) GlobalHistory(ctx context.Context) []model.ChatMessage {
	msgs, err := r.messages.ListMessages(ctx, storage.MessageQuery{Limit: r.opts.HistoryLimit})
	if err != nil {
		logger.Errorf("chat: global history: %v", chaterr.Storage("chat.GlobalHistory", err))
		return []model.ChatMessage{}
	}
	return msgs
}

// PrivateHistory returns every PRIVATE message between a and b in ascending
// time order, across all sessions of the pair. Store errors yield an empty list.
func (r *Router) PrivateHistory(ctx context.Context, a, b string) []model.ChatMessage {
	msgs, err := r.messages.ListPrivateMessages(ctx, a, b)
	if err != nil {
		logger.Errorf("chat: private history %s/%s: %v", a, b, chaterr.Storage("chat.PrivateHistory", err))
		return []model.ChatMessage{}
	}
	return msgs
}

// SessionHistory returns the messages of a single private session.
func (r *Router) SessionHistory(ctx context.Context, sessionID string) []model.ChatMessage {
	msgs, err := r.messages.ListSessionMessages(ctx, sessionID)
	if err != nil {
		logger.Errorf("chat: session history %s: %v", sessionID, chaterr.Storage("chat.SessionHistory", err))
		return []model.ChatMessage{}
	}
	return msgs
}

// Typing sends a transient typing (or stop-typing) notification. An empty
// recipient means the global chat: every other online user is notified.
func (r *Router) Typing(ctx context.Context, sender, recipient string, typing bool) error {
	if err := required("sender", sender); err != nil {
		return err
	}
	notifyFn := r.notifier.NotifyTyping
	if !typing {
		notifyFn = r.notifier.NotifyStopTyping
	}
	if recipient != "" {
		if recipient == sender {
			return nil
		}
		_, err := notifyFn(ctx, recipient, sender, model.ChatTypePrivate, sender)
		return err
	}
	online, err := r.presence.ListOnline(ctx)
	if err != nil {
		return err
	}
	for _, u := range online {
		if u.Username == sender {
			continue
		}
		if _, err := notifyFn(ctx, u.Username, sender, model.ChatTypeGlobal, model.GlobalChatID); err != nil {
			logger.Warnf("chat: typing notification to %s: %v", u.Username, err)
		}
	}
	return nil
}

func (r *Router) touch(ctx context.Context, username string) {
	if err := r.presence.Touch(ctx, username); err != nil {
		logger.Warnf("chat: touch last seen of %s: %v", username, err)
	}
}

// publish is best effort: a failing transport is logged and never undoes the persisted message.
func (r *Router) publish(ctx context.Context, channel string, typ pubsub.EventType, payload any) {
	if err := r.pub.Publish(ctx, channel, pubsub.Event{Type: typ, Channel: channel, Payload: payload}); err != nil {
		logger.Warnf("chat: %v", &chaterr.DeliveryError{Channel: channel, Err: err})
	}
}
