package chat

import (
	"context"

	"github.com/parley/internal/pubsub"
)

// OnConnect is called once per new transport connection. It sends the current
// online snapshot to that user only; presence changes on join or reconnect.
func (r *Router) OnConnect(ctx context.Context, username string) {
	users, err := r.presence.ListOnline(ctx)
	if err != nil {
		return
	}
	r.publish(ctx, pubsub.UserChannel(username), pubsub.EventOnlineUsers, users)
}

// OnDisconnect is called when the user's last connection goes away.
func (r *Router) OnDisconnect(ctx context.Context, username string) error {
	return r.AnnounceLeave(ctx, username)
}

// OnJoin registers username (announcing brand-new users) and marks it online.
func (r *Router) OnJoin(ctx context.Context, username string) error {
	if err := required("username", username); err != nil {
		return err
	}
	_, isNew, err := r.presence.FindOrCreate(ctx, username)
	if err != nil {
		return err
	}
	if _, err := r.presence.SetOnline(ctx, username, true); err != nil {
		return err
	}
	if isNew {
		return r.AnnounceJoin(ctx, username)
	}
	r.PublishOnlineUsers(ctx)
	return nil
}

// OnReconnect marks a known user online again without any announcement.
// Unknown users are ignored by presence; they must join first.
func (r *Router) OnReconnect(ctx context.Context, username string) error {
	if err := required("username", username); err != nil {
		return err
	}
	if _, err := r.presence.SetOnline(ctx, username, true); err != nil {
		return err
	}
	r.PublishOnlineUsers(ctx)
	return nil
}

func (r *Router) OnGlobalSend(ctx context.Context, sender, content string) error {
	_, err := r.SendGlobal(ctx, sender, content)
	return err
}

func (r *Router) OnPrivateSend(ctx context.Context, sender, recipient, content string) error {
	_, err := r.SendPrivate(ctx, sender, recipient, content)
	return err
}
