// Package memory is an in-process storage.Store for tests and the -memory run mode.
// It enforces the same uniqueness rules as the PostgreSQL schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]model.User
	messages      []model.ChatMessage
	sessions      map[string]model.PrivateSession
	activeByPair  map[[2]string]string
	notifications []model.Notification
	nextMsgID     int64
	nextNotifID   int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[string]model.User),
		sessions:     make(map[string]model.PrivateSession),
		activeByPair: make(map[[2]string]string),
	}
}

func (s *Store) Close() error { return nil }

// --- users ---

func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) (*model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.Username]; ok {
		return &existing, false, nil
	}
	s.users[u.Username] = *u
	created := *u
	return &created, true, nil
}

func (s *Store) UpdatePresence(ctx context.Context, username string, online bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return false, nil
	}
	u.Online = online
	u.LastSeen = at
	s.users[username] = u
	return true, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.LastSeen = at
		s.users[username] = u
	}
	return nil
}

func (s *Store) ListOnlineUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Online {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) ResetOnline(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for name, u := range s.users {
		if u.Online {
			u.Online = false
			s.users[name] = u
			n++
		}
	}
	return n, nil
}

// --- messages ---

func (s *Store) SaveMessage(ctx context.Context, m *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsgID++
	m.ID = s.nextMsgID
	s.messages = append(s.messages, *m)
	return nil
}

// messageLess orders by timestamp, then by insertion id.
func messageLess(a, b model.ChatMessage) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

func (s *Store) ListMessages(ctx context.Context, q storage.MessageQuery) ([]model.ChatMessage, error) {
	types := q.Types
	if len(types) == 0 {
		types = []model.MessageType{model.MessageTypeGlobal, model.MessageTypeSystem}
	}
	s.mu.RLock()
	var matched []model.ChatMessage
	for _, m := range s.messages {
		for _, t := range types {
			if m.Type == t {
				matched = append(matched, m)
				break
			}
		}
	}
	s.mu.RUnlock()

	// newest first for paging, then flip back to ascending
	sort.Slice(matched, func(i, j int) bool { return messageLess(matched[j], matched[i]) })
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []model.ChatMessage{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	sort.Slice(matched, func(i, j int) bool { return messageLess(matched[i], matched[j]) })
	if matched == nil {
		matched = []model.ChatMessage{}
	}
	return matched, nil
}

func (s *Store) ListPrivateMessages(ctx context.Context, a, b string) ([]model.ChatMessage, error) {
	s.mu.RLock()
	out := make([]model.ChatMessage, 0, 16)
	for _, m := range s.messages {
		if m.Type != model.MessageTypePrivate {
			continue
		}
		if (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return messageLess(out[i], out[j]) })
	return out, nil
}

func (s *Store) ListSessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	s.mu.RLock()
	out := make([]model.ChatMessage, 0, 16)
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return messageLess(out[i], out[j]) })
	return out, nil
}

// --- private sessions ---

func (s *Store) FindActiveSession(ctx context.Context, a, b string) (*model.PrivateSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeByPair[[2]string{a, b}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sess := s.sessions[id]
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.PrivateSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *model.PrivateSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{sess.UserA, sess.UserB}
	if sess.Active {
		if _, exists := s.activeByPair[key]; exists {
			return storage.ErrConflict
		}
		s.activeByPair[key] = sess.ID
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) UpdateSessionLastMessage(ctx context.Context, id string, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if sess.LastMessageTime != nil {
		last := model.ChatMessage{ID: sess.LastMessageID, Timestamp: *sess.LastMessageTime}
		if !messageLess(last, *msg) {
			return nil
		}
	}
	t := msg.Timestamp
	sess.LastMessage = msg.Content
	sess.LastMessageTime = &t
	sess.LastMessageID = msg.ID
	s.sessions[id] = sess
	return nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	if sess.Active {
		sess.Active = false
		s.sessions[id] = sess
		key := [2]string{sess.UserA, sess.UserB}
		if s.activeByPair[key] == id {
			delete(s.activeByPair, key)
		}
	}
	return nil
}

func (s *Store) ListActiveSessions(ctx context.Context, username string) ([]model.PrivateSession, error) {
	s.mu.RLock()
	out := make([]model.PrivateSession, 0, 8)
	for _, sess := range s.sessions {
		if sess.Active && sess.Involves(username) {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()
	// most recent activity first, sessions without messages last
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageTime, out[j].LastMessageTime
		switch {
		case ti == nil && tj == nil:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		case ti == nil:
			return false
		case tj == nil:
			return true
		}
		return ti.After(*tj)
	})
	return out, nil
}

// --- notifications ---

func (s *Store) SaveNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNotifID++
	n.ID = s.nextNotifID
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, recipient string, f storage.NotificationFilter) ([]model.Notification, error) {
	s.mu.RLock()
	out := make([]model.Notification, 0, 16)
	for _, n := range s.notifications {
		if n.Recipient != recipient {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		if f.ChatType != "" && n.ChatType != f.ChatType {
			continue
		}
		if f.ChatID != "" && n.ChatID != f.ChatID {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CountUnread(ctx context.Context, recipient string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, notif := range s.notifications {
		if notif.Recipient == recipient && !notif.Read {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, recipient, chatID string) (int64, error) {
	return s.markRead(func(n *model.Notification) bool {
		return n.Recipient == recipient && n.ChatID == chatID
	}), nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return s.markRead(func(n *model.Notification) bool {
		return n.Recipient == recipient
	}), nil
}

func (s *Store) markRead(match func(*model.Notification) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for i := range s.notifications {
		n := &s.notifications[i]
		if !n.Read && match(n) {
			n.Read = true
			changed++
		}
	}
	return changed
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	var removed int64
	for _, n := range s.notifications {
		if n.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return removed, nil
}
