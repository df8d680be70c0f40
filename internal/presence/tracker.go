// Package presence is the single source of truth for who is online.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/keymutex"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
)

type Tracker struct {
	users storage.UserStore
	locks *keymutex.Map
	now   func() time.Time
}

func NewTracker(users storage.UserStore) *Tracker {
	return &Tracker{
		users: users,
		locks: keymutex.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreate returns the user, creating it offline if unseen.
// isNew is true only for the call that created the record.
func (t *Tracker) FindOrCreate(ctx context.Context, username string) (*model.User, bool, error) {
	if username == "" {
		return nil, false, chaterr.Invalid("username", "required")
	}
	unlock := t.locks.Lock(username)
	defer unlock()

	u, err := t.users.GetUser(ctx, username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, chaterr.Storage("presence.FindOrCreate", err)
	}
	now := t.now()
	u, created, err := t.users.CreateUser(ctx, &model.User{
		Username:  username,
		Online:    false,
		CreatedAt: now,
		LastSeen:  now,
	})
	if err != nil {
		return nil, false, chaterr.Storage("presence.FindOrCreate", err)
	}
	if created {
		logger.Infof("presence: new user %s", username)
	}
	return u, created, nil
}

// SetOnline records a presence transition. Unknown users are ignored and
// reported with found == false.
func (t *Tracker) SetOnline(ctx context.Context, username string, online bool) (found bool, err error) {
	unlock := t.locks.Lock(username)
	defer unlock()

	found, err = t.users.UpdatePresence(ctx, username, online, t.now())
	if err != nil {
		return false, chaterr.Storage("presence.SetOnline", err)
	}
	if !found {
		logger.Debugf("presence: drop transition for unknown user %s", username)
	}
	return found, nil
}

// Touch bumps last_seen after the user sent a message.
func (t *Tracker) Touch(ctx context.Context, username string) error {
	unlock := t.locks.Lock(username)
	defer unlock()
	return chaterr.Storage("presence.Touch", t.users.TouchLastSeen(ctx, username, t.now()))
}

func (t *Tracker) IsOnline(ctx context.Context, username string) (bool, error) {
	u, err := t.users.GetUser(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, chaterr.Storage("presence.IsOnline", err)
	}
	return u.Online, nil
}

func (t *Tracker) ListOnline(ctx context.Context) ([]model.User, error) {
	users, err := t.users.ListOnlineUsers(ctx)
	if err != nil {
		return nil, chaterr.Storage("presence.ListOnline", err)
	}
	return users, nil
}

// ResetAllOffline flips every online user offline. Run once at startup:
// no connection survives a restart.
func (t *Tracker) ResetAllOffline(ctx context.Context) (int64, error) {
	n, err := t.users.ResetOnline(ctx)
	if err != nil {
		return 0, chaterr.Storage("presence.ResetAllOffline", err)
	}
	logger.Infof("presence: reset %d users offline", n)
	return n, nil
}
