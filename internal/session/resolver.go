// Package session maps an unordered pair of usernames to its one active private session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/keymutex"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

// maxConvergeAttempts bounds re-fetches after losing a creation race to another writer.
const maxConvergeAttempts = 3

type Resolver struct {
	sessions storage.SessionStore
	locks    *keymutex.Map
	now      func() time.Time
	newID    func() string
}

func NewResolver(sessions storage.SessionStore) *Resolver {
	return &Resolver{
		sessions: sessions,
		locks:    keymutex.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

// GetOrCreate returns the active session of {a, b}, creating it on first contact.
// created is true only for the caller that inserted the session.
func (r *Resolver) GetOrCreate(ctx context.Context, a, b string) (sess *model.PrivateSession, created bool, err error) {
	defer logger.DeferLogDuration("session.GetOrCreate", time.Now())()
	if a == "" || b == "" {
		return nil, false, chaterr.Invalid("participants", "both usernames required")
	}
	if a == b {
		return nil, false, chaterr.Invalid("participants", "a private session needs two distinct users")
	}
	a, b = model.CanonicalPair(a, b)

	unlock := r.locks.Lock(pairKey(a, b))
	defer unlock()

	for attempt := 0; attempt < maxConvergeAttempts; attempt++ {
		existing, err := r.sessions.FindActiveSession(ctx, a, b)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, false, chaterr.Storage("session.GetOrCreate", err)
		}

		s := &model.PrivateSession{
			ID:        r.newID(),
			UserA:     a,
			UserB:     b,
			Active:    true,
			CreatedAt: r.now(),
		}
		err = r.sessions.CreateSession(ctx, s)
		if err == nil {
			logger.Infof("session: created %s for %s/%s", s.ID, a, b)
			return s, true, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, false, chaterr.Storage("session.GetOrCreate", err)
		}
		// another writer (e.g. a second process) won; converge on its row
		logger.Debugf("session: create conflict for %s/%s, re-fetching", a, b)
	}
	return nil, false, chaterr.Storage("session.GetOrCreate", storage.ErrConflict)
}

// UpdateLastMessage refreshes the listing cache with msg. The store never moves it backwards.
func (r *Resolver) UpdateLastMessage(ctx context.Context, sessionID string, msg *model.ChatMessage) error {
	return chaterr.Storage("session.UpdateLastMessage", r.sessions.UpdateSessionLastMessage(ctx, sessionID, msg))
}

// Deactivate soft-closes a session; history stays, the next GetOrCreate starts a new one.
func (r *Resolver) Deactivate(ctx context.Context, sessionID string) error {
	sess, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return chaterr.Storage("session.Deactivate", err)
	}
	unlock := r.locks.Lock(pairKey(sess.UserA, sess.UserB))
	defer unlock()
	if err := r.sessions.DeactivateSession(ctx, sessionID); err != nil {
		return chaterr.Storage("session.Deactivate", err)
	}
	logger.Infof("session: deactivated %s", sessionID)
	return nil
}

func (r *Resolver) Get(ctx context.Context, sessionID string) (*model.PrivateSession, error) {
	s, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, chaterr.Storage("session.Get", err)
	}
	return s, nil
}

// ListForUser returns the user's active sessions, most recently active first.
func (r *Resolver) ListForUser(ctx context.Context, username string) ([]model.PrivateSession, error) {
	list, err := r.sessions.ListActiveSessions(ctx, username)
	if err != nil {
		return nil, chaterr.Storage("session.ListForUser", err)
	}
	return list, nil
}
