// Package storage defines the persistence contract used by the routing core.
// Implementations: repository.Store (PostgreSQL via pgx) and memory.Store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/parley/internal/model"
)

var (
	// ErrNotFound is returned when a keyed lookup has no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a uniqueness rule,
	// e.g. a second active session for the same pair.
	ErrConflict = errors.New("conflict")
)

type UserStore interface {
	GetUser(ctx context.Context, username string) (*model.User, error)
	// CreateUser inserts u unless the username exists; it returns the stored
	// record and whether this call created it.
	CreateUser(ctx context.Context, u *model.User) (*model.User, bool, error)
	// UpdatePresence sets online and last_seen; found is false for unknown users.
	UpdatePresence(ctx context.Context, username string, online bool, at time.Time) (found bool, err error)
	TouchLastSeen(ctx context.Context, username string, at time.Time) error
	ListOnlineUsers(ctx context.Context) ([]model.User, error)
	ResetOnline(ctx context.Context) (int64, error)
}

// MessageQuery selects broadcast history. Types empty means all broadcast types.
type MessageQuery struct {
	Types  []model.MessageType
	Limit  int
	Offset int
}

type MessageStore interface {
	// SaveMessage assigns m.ID.
	SaveMessage(ctx context.Context, m *model.ChatMessage) error
	// ListMessages returns the newest Limit messages matching q in ascending timestamp order.
	ListMessages(ctx context.Context, q MessageQuery) ([]model.ChatMessage, error)
	// ListPrivateMessages returns PRIVATE messages exchanged between a and b, ascending.
	ListPrivateMessages(ctx context.Context, a, b string) ([]model.ChatMessage, error)
	ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type SessionStore interface {
	// FindActiveSession expects a canonical pair (a < b).
	FindActiveSession(ctx context.Context, a, b string) (*model.PrivateSession, error)
	GetSession(ctx context.Context, id string) (*model.PrivateSession, error)
	// CreateSession returns ErrConflict when an active session for the pair exists.
	CreateSession(ctx context.Context, s *model.PrivateSession) error
	// UpdateSessionLastMessage only moves the cache forward, ordered by
	// (timestamp, message id).
	UpdateSessionLastMessage(ctx context.Context, id string, msg *model.ChatMessage) error
	DeactivateSession(ctx context.Context, id string) error
	ListActiveSessions(ctx context.Context, username string) ([]model.PrivateSession, error)
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	UnreadOnly bool
	ChatType   model.ChatType
	ChatID     string
}

type NotificationStore interface {
	// SaveNotification assigns n.ID.
	SaveNotification(ctx context.Context, n *model.Notification) error
	// ListNotifications returns newest first.
	ListNotifications(ctx context.Context, recipient string, f NotificationFilter) ([]model.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, recipient, chatID string) (int64, error)
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store aggregates every collaborator the core consumes.
type Store interface {
	UserStore
	MessageStore
	SessionStore
	NotificationStore
	Close() error
}
