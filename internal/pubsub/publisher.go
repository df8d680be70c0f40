// Package pubsub names the delivery channels and defines the publish capability
// the router and notification dispatcher deliver through.
package pubsub

import (
	"context"
	"errors"
	"strings"
)

const (
	// GlobalChannel carries GLOBAL and SYSTEM chat messages to everyone.
	GlobalChannel = "global"
	// PresenceChannel carries online-user snapshots.
	PresenceChannel = "presence"
	// NotificationTopic carries every notification, tagged with its recipient.
	NotificationTopic = "notifications"
	// DebugChannel mirrors notifications for diagnostics.
	DebugChannel = "notifications-debug"

	userPrefix          = "user:"
	notificationsSuffix = ":notifications"
)

// UserChannel is the private message channel of username.
func UserChannel(username string) string {
	return userPrefix + username
}

// UserNotificationChannel is the notification channel of username.
func UserNotificationChannel(username string) string {
	return userPrefix + username + notificationsSuffix
}

// ParseUserChannel returns the username addressed by a user-scoped channel.
func ParseUserChannel(channel string) (username string, ok bool) {
	if !strings.HasPrefix(channel, userPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(channel, userPrefix)
	rest = strings.TrimSuffix(rest, notificationsSuffix)
	if rest == "" {
		return "", false
	}
	return rest, true
}

type EventType string

const (
	EventChatMessage  EventType = "chat_message"
	EventOnlineUsers  EventType = "online_users"
	EventNotification EventType = "notification"
	EventSessionStart EventType = "private_session_started"
	EventError        EventType = "error"
)

// Event is the envelope published on every channel.
type Event struct {
	Type    EventType `json:"type"`
	Channel string    `json:"channel"`
	Payload any       `json:"payload"`
}

// Publisher delivers payload to the subscribers of channel, best effort.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

// Fanout publishes to several transports; one failing transport does not stop the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, channel string, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, channel, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
