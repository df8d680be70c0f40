package model

import "time"

type ChatType string

const (
	ChatTypeGlobal  ChatType = "GLOBAL"
	ChatTypePrivate ChatType = "PRIVATE"
)

type NotificationType string

const (
	NotificationMessage    NotificationType = "MESSAGE"
	NotificationTyping     NotificationType = "TYPING"
	NotificationStopTyping NotificationType = "STOP_TYPING"
	NotificationTest       NotificationType = "TEST"
)

// GlobalChatID is the chat_id used for notifications about the global channel.
const GlobalChatID = "general"

// Notification is a best-effort secondary notice, independent from ChatMessage.
// For private chats ChatID is the sender's username.
type Notification struct {
	ID          int64            `json:"id"`
	Recipient   string           `json:"recipient"`
	Sender      string           `json:"sender"`
	Content     string           `json:"content"`
	ChatType    ChatType         `json:"chat_type"`
	ChatID      string           `json:"chat_id"`
	MessageType NotificationType `json:"message_type"`
	Read        bool             `json:"read"`
	Timestamp   time.Time        `json:"timestamp"`
}
