package chat

import (
	"context"
	"sort"

	"github.com/parley/internal/chaterr"
)

type EventKind string

const (
	KindJoin        EventKind = "join"
	KindReconnect   EventKind = "reconnect"
	KindLeave       EventKind = "leave"
	KindGlobalSend  EventKind = "global_send"
	KindPrivateSend EventKind = "private_send"
	KindTyping      EventKind = "typing"
	KindStopTyping  EventKind = "stop_typing"
)

// Inbound is a client event. Sender is set by the transport from the
// authenticated connection, never from the frame.
type Inbound struct {
	Kind      EventKind `json:"type"`
	Sender    string    `json:"-"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content,omitempty"`
}

type HandlerFunc func(ctx context.Context, in Inbound) error

// Dispatcher maps event kinds to router entry points.
type Dispatcher struct {
	handlers map[EventKind]HandlerFunc
}

func NewDispatcher(r *Router) *Dispatcher {
	d := &Dispatcher{handlers: make(map[EventKind]HandlerFunc)}
	d.Handle(KindJoin, func(ctx context.Context, in Inbound) error {
		return r.OnJoin(ctx, in.Sender)
	})
	d.Handle(KindReconnect, func(ctx context.Context, in Inbound) error {
		return r.OnReconnect(ctx, in.Sender)
	})
	d.Handle(KindLeave, func(ctx context.Context, in Inbound) error {
		return r.OnDisconnect(ctx, in.Sender)
	})
	d.Handle(KindGlobalSend, func(ctx context.Context, in Inbound) error {
		return r.OnGlobalSend(ctx, in.Sender, in.Content)
	})
	d.Handle(KindPrivateSend, func(ctx context.Context, in Inbound) error {
		return r.OnPrivateSend(ctx, in.Sender, in.Recipient, in.Content)
	})
	d.Handle(KindTyping, func(ctx context.Context, in Inbound) error {
		return r.Typing(ctx, in.Sender, in.Recipient, true)
	})
	d.Handle(KindStopTyping, func(ctx context.Context, in Inbound) error {
		return r.Typing(ctx, in.Sender, in.Recipient, false)
	})
	return d
}

// Handle registers fn for kind, replacing any previous handler.
func (d *Dispatcher) Handle(kind EventKind, fn HandlerFunc) {
	d.handlers[kind] = fn
}

func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) error {
	fn, ok := d.handlers[in.Kind]
	if !ok {
		return chaterr.Invalid("type", "unknown event kind "+string(in.Kind))
	}
	return fn(ctx, in)
}

// Kinds lists the registered event kinds in sorted order.
func (d *Dispatcher) Kinds() []EventKind {
	kinds := make([]EventKind, 0, len(d.handlers))
	for k := range d.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
