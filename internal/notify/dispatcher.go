// Package notify persists and fans out secondary notifications ("you have a new
// message", typing indicators). Delivery is best effort: the chat message itself
// is the authoritative record.
package notify

import (
	"context"
	"time"

	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

const (
	// persistTimeout caps the notification insert.
	persistTimeout = 5 * time.Second
	// deliveryTimeout caps a single channel's delivery attempt.
	deliveryTimeout = 5 * time.Second
)

// Channel is one independent delivery path for a persisted notification.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n *model.Notification) error
}

type Request struct {
	Recipient   string
	Sender      string
	Content     string
	ChatType    model.ChatType
	ChatID      string
	MessageType model.NotificationType
}

type Dispatcher struct {
	store    storage.NotificationStore
	channels []Channel
	now      func() time.Time
}

func NewDispatcher(store storage.NotificationStore, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		store:    store,
		channels: channels,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists the notification and then attempts every channel. Only a
// persistence failure is returned; channel failures are logged and isolated.
func (d *Dispatcher) Notify(ctx context.Context, req Request) (*model.Notification, error) {
	defer logger.DeferLogDuration("notify.Notify", time.Now())()
	if req.Recipient == "" {
		return nil, chaterr.Invalid("recipient", "required")
	}
	if req.MessageType == "" {
		req.MessageType = model.NotificationMessage
	}
	n := &model.Notification{
		Recipient:   req.Recipient,
		Sender:      req.Sender,
		Content:     req.Content,
		ChatType:    req.ChatType,
		ChatID:      req.ChatID,
		MessageType: req.MessageType,
		Timestamp:   d.now(),
	}
	saveCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	err := d.store.SaveNotification(saveCtx, n)
	cancel()
	if err != nil {
		return nil, chaterr.Storage("notify.Notify", err)
	}
	for _, ch := range d.channels {
		d.deliver(ctx, ch, n)
	}
	return n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, n *model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("notify: channel %s panicked for %s: %v", ch.Name(), n.Recipient, r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := ch.Deliver(ctx, n); err != nil {
		derr := &chaterr.DeliveryError{Channel: ch.Name(), Err: err}
		logger.Warnf("notify: recipient=%s: %v", n.Recipient, derr)
	}
}

func (d *Dispatcher) NotifyGlobalMessage(ctx context.Context, recipient, sender, content string) (*model.Notification, error) {
	return d.Notify(ctx, Request{
		Recipient:   recipient,
		Sender:      sender,
		Content:     content,
		ChatType:    model.ChatTypeGlobal,
		ChatID:      model.GlobalChatID,
		MessageType: model.NotificationMessage,
	})
}

// NotifyPrivateMessage keys the notification by sender, which is how the
// recipient's client groups unread private chats.
func (d *Dispatcher) NotifyPrivateMessage(ctx context.Context, recipient, sender, content string) (*model.Notification, error) {
	return d.Notify(ctx, Request{
		Recipient:   recipient,
		Sender:      sender,
		Content:     content,
		ChatType:    model.ChatTypePrivate,
		ChatID:      sender,
		MessageType: model.NotificationMessage,
	})
}

func (d *Dispatcher) NotifyTyping(ctx context.Context, recipient, sender string, chatType model.ChatType, chatID string) (*model.Notification, error) {
	return d.Notify(ctx, Request{
		Recipient:   recipient,
		Sender:      sender,
		Content:     sender + " is typing...",
		ChatType:    chatType,
		ChatID:      chatID,
		MessageType: model.NotificationTyping,
	})
}

func (d *Dispatcher) NotifyStopTyping(ctx context.Context, recipient, sender string, chatType model.ChatType, chatID string) (*model.Notification, error) {
	return d.Notify(ctx, Request{
		Recipient:   recipient,
		Sender:      sender,
		Content:     sender + " stopped typing",
		ChatType:    chatType,
		ChatID:      chatID,
		MessageType: model.NotificationStopTyping,
	})
}

func (d *Dispatcher) List(ctx context.Context, recipient string, unreadOnly bool) ([]model.Notification, error) {
	list, err := d.store.ListNotifications(ctx, recipient, storage.NotificationFilter{UnreadOnly: unreadOnly})
	if err != nil {
		return nil, chaterr.Storage("notify.List", err)
	}
	return list, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	n, err := d.store.CountUnread(ctx, recipient)
	if err != nil {
		return 0, chaterr.Storage("notify.UnreadCount", err)
	}
	return n, nil
}

// MarkRead flags every notification of recipient in chatID as read. Idempotent.
func (d *Dispatcher) MarkRead(ctx context.Context, recipient, chatID string) (int64, error) {
	n, err := d.store.MarkRead(ctx, recipient, chatID)
	if err != nil {
		return 0, chaterr.Storage("notify.MarkRead", err)
	}
	return n, nil
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	n, err := d.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, chaterr.Storage("notify.MarkAllRead", err)
	}
	return n, nil
}

// CleanupOlderThan deletes notifications created before cutoff.
func (d *Dispatcher) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := d.store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, chaterr.Storage("notify.CleanupOlderThan", err)
	}
	return n, nil
}
