package notify

import (
	"context"
	"errors"

	"github.com/parley/internal/model"
	"github.com/parley/internal/pubsub"
	"github.com/parley/internal/push"
)

// UserChannel pushes to the recipient's own notification channel.
type UserChannel struct {
	Pub pubsub.Publisher
}

func (UserChannel) Name() string { return "user" }

func (c UserChannel) Deliver(ctx context.Context, n *model.Notification) error {
	ch := pubsub.UserNotificationChannel(n.Recipient)
	return c.Pub.Publish(ctx, ch, pubsub.Event{Type: pubsub.EventNotification, Channel: ch, Payload: n})
}

// TopicPayload wraps a notification published on a shared topic.
type TopicPayload struct {
	Recipient    string              `json:"recipient"`
	Notification *model.Notification `json:"notification"`
}

// TopicChannel pushes to a shared topic where clients filter by recipient.
type TopicChannel struct {
	Pub   pubsub.Publisher
	Topic string
}

func (c TopicChannel) Name() string { return "topic:" + c.Topic }

func (c TopicChannel) Deliver(ctx context.Context, n *model.Notification) error {
	return c.Pub.Publish(ctx, c.Topic, pubsub.Event{
		Type:    pubsub.EventNotification,
		Channel: c.Topic,
		Payload: TopicPayload{Recipient: n.Recipient, Notification: n},
	})
}

// WebPushChannel forwards MESSAGE notifications to the Web Push service.
// Typing indicators are not worth a device notification and are skipped.
type WebPushChannel struct {
	Client *push.Client
}

func (WebPushChannel) Name() string { return "webpush" }

const maxPushBody = 120

func (c WebPushChannel) Deliver(ctx context.Context, n *model.Notification) error {
	if n.MessageType != model.NotificationMessage && n.MessageType != model.NotificationTest {
		return nil
	}
	err := c.Client.Notify(ctx, n.Recipient, n.Sender, truncate(n.Content, maxPushBody), map[string]string{
		"chat_type": string(n.ChatType),
		"chat_id":   n.ChatID,
	})
	if errors.Is(err, push.ErrDisabled) {
		return nil
	}
	return err
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// DefaultChannels returns the standard channel set: user channel, shared topic,
// debug mirror and, when pc is enabled, Web Push.
func DefaultChannels(pub pubsub.Publisher, pc *push.Client) []Channel {
	chs := []Channel{
		UserChannel{Pub: pub},
		TopicChannel{Pub: pub, Topic: pubsub.NotificationTopic},
		TopicChannel{Pub: pub, Topic: pubsub.DebugChannel},
	}
	if pc.Enabled() {
		chs = append(chs, WebPushChannel{Client: pc})
	}
	return chs
}
