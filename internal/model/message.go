package model

import "time"

type MessageType string

const (
	MessageTypeGlobal  MessageType = "GLOBAL"
	MessageTypePrivate MessageType = "PRIVATE"
	MessageTypeSystem  MessageType = "SYSTEM"
)

// SystemSender is the sender name stamped on SYSTEM messages.
const SystemSender = "System"

// ChatMessage is a persisted chat event. Relations are plain identifiers:
// Sender/Recipient are usernames, SessionID points at a PrivateSession.
type ChatMessage struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsBroadcast reports whether the message goes to everyone (GLOBAL and SYSTEM).
func (m *ChatMessage) IsBroadcast() bool {
	return m.Type == MessageTypeGlobal || m.Type == MessageTypeSystem
}
