package ws

import (
	"github.com/parley/internal/chat"
	"github.com/parley/internal/pubsub"
)

// IncomingMessage is what the client sends to the server. The sender is
// always the connection's principal.
type IncomingMessage struct {
	Type      chat.EventKind `json:"type"`
	Recipient string         `json:"recipient,omitempty"`
	Content   string         `json:"content,omitempty"`
}

func (m IncomingMessage) inbound(sender string) chat.Inbound {
	return chat.Inbound{
		Kind:      m.Type,
		Sender:    sender,
		Recipient: m.Recipient,
		Content:   m.Content,
	}
}

// OutgoingMessage is what the server sends to the client: the published event as is.
type OutgoingMessage = pubsub.Event

// ErrorPayload reports a rejected inbound frame back to its sender.
type ErrorPayload struct {
	Kind    chat.EventKind `json:"kind,omitempty"`
	Message string         `json:"message"`
}
