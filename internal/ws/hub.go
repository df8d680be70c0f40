package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/parley/internal/chat"
	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/logger"
	"github.com/parley/internal/pubsub"
)

const handleTimeout = 5 * time.Second

// Lifecycle receives connection events. OnDisconnect fires when a user's last
// connection is gone.
type Lifecycle interface {
	OnConnect(ctx context.Context, username string)
	OnDisconnect(ctx context.Context, username string) error
}

// Dispatcher handles inbound client events.
type Dispatcher interface {
	Dispatch(ctx context.Context, in chat.Inbound) error
}

// Hub tracks live connections per username and implements pubsub.Publisher
// for them: broadcast channels reach every client, user channels only the
// clients of that user.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	lifecycle  Lifecycle
	dispatcher Dispatcher
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

var _ pubsub.Publisher = (*Hub)(nil)

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// Bind attaches the chat side. The hub is created first because the router
// publishes through it; Bind must be called before Run.
func (h *Hub) Bind(l Lifecycle, d Dispatcher) {
	h.lifecycle = l
	h.dispatcher = d
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// collect under the lock, close outside it
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.username)
		c.Close()
		return
	}
	if _, ok := h.clients[c.username]; !ok {
		h.clients[c.username] = make(map[*Client]struct{})
	}
	h.clients[c.username][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	if h.lifecycle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		h.lifecycle.OnConnect(ctx, c.username)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.username]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.username)
	}
	h.mu.Unlock()

	c.Close()

	if lastClient && h.lifecycle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := h.lifecycle.OnDisconnect(ctx, c.username); err != nil {
			logger.Errorf("ws disconnect user=%s: %v", c.username, err)
		}
	}
}

// HandleMessage passes an inbound frame to the dispatcher and reports
// failures back to the sending client only.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.HandleMessage", time.Now())()
	if h.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := h.dispatcher.Dispatch(ctx, msg.inbound(c.username))
	if err == nil {
		return
	}
	var verr *chaterr.ValidationError
	reason := "internal error"
	if errors.As(err, &verr) {
		reason = verr.Error()
	} else {
		logger.Errorf("ws handle %s user=%s: %v", msg.Type, c.username, err)
	}
	h.sendToClient(c, OutgoingMessage{
		Type:    pubsub.EventError,
		Payload: ErrorPayload{Kind: msg.Type, Message: reason},
	})
}

// Publish delivers ev to the clients subscribed to channel. It never blocks:
// slow clients are dropped by sendToClient.
func (h *Hub) Publish(_ context.Context, channel string, ev pubsub.Event) error {
	ev.Channel = channel
	if username, ok := pubsub.ParseUserChannel(channel); ok {
		h.sendToUser(username, ev)
		return nil
	}
	debugOnly := channel == pubsub.DebugChannel

	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			if debugOnly && !c.debug {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
	return nil
}

func (h *Hub) sendToUser(username string, msg OutgoingMessage) {
	h.mu.RLock()
	clients := h.clients[username]
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// backpressure: send buffer full, close slow client
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.username)
		c.Close()
	}
}

// Online reports whether username has at least one live connection.
func (h *Hub) Online(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[username]) > 0
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
