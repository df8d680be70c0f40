package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/model"
	"github.com/parley/internal/pubsub"
	"github.com/parley/internal/push"
	"github.com/parley/internal/storage"
	"github.com/parley/internal/storage/memory"
)

type fakeChannel struct {
	name  string
	err   error
	panic bool

	mu  sync.Mutex
	got []model.Notification
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(_ context.Context, n *model.Notification) error {
	if c.panic {
		panic("boom")
	}
	c.mu.Lock()
	c.got = append(c.got, *n)
	c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestNotifyPersistsAndDelivers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ch := &fakeChannel{name: "a"}
	d := NewDispatcher(store, ch)

	n, err := d.NotifyPrivateMessage(ctx, "bob", "alice", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if n.ID == 0 || n.ChatID != "alice" || n.ChatType != model.ChatTypePrivate {
		t.Fatalf("unexpected notification %+v", n)
	}
	if ch.count() != 1 {
		t.Fatalf("deliveries = %d", ch.count())
	}
	list, err := d.List(ctx, "bob", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Read {
		t.Fatalf("stored = %+v", list)
	}
}

func TestChannelFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	broken := &fakeChannel{name: "broken", err: errors.New("socket closed")}
	panicky := &fakeChannel{name: "panicky", panic: true}
	healthy := &fakeChannel{name: "healthy"}
	d := NewDispatcher(memory.New(), broken, panicky, healthy)

	if _, err := d.NotifyGlobalMessage(ctx, "bob", "alice", "hello"); err != nil {
		t.Fatalf("channel failure leaked: %v", err)
	}
	if healthy.count() != 1 {
		t.Fatal("healthy channel skipped after a failing one")
	}
	if broken.count() != 1 {
		t.Fatal("broken channel not attempted")
	}
}

type failingNotifications struct {
	storage.NotificationStore
}

func (failingNotifications) SaveNotification(context.Context, *model.Notification) error {
	return errors.New("disk full")
}

func TestPersistFailureSkipsDelivery(t *testing.T) {
	ch := &fakeChannel{name: "a"}
	d := NewDispatcher(failingNotifications{memory.New()}, ch)

	_, err := d.NotifyGlobalMessage(context.Background(), "bob", "alice", "hello")
	if !chaterr.IsStorage(err) {
		t.Fatalf("err = %v, want storage error", err)
	}
	if ch.count() != 0 {
		t.Fatal("delivered a notification that was never persisted")
	}
}

func TestNotifyRequiresRecipient(t *testing.T) {
	_, err := NewDispatcher(memory.New()).Notify(context.Background(), Request{Sender: "alice"})
	if !chaterr.IsValidation(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestTypingContent(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(memory.New())

	n, err := d.NotifyTyping(ctx, "bob", "alice", model.ChatTypePrivate, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n.Content != "alice is typing..." || n.MessageType != model.NotificationTyping {
		t.Fatalf("typing = %+v", n)
	}
	n, err = d.NotifyStopTyping(ctx, "bob", "alice", model.ChatTypePrivate, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n.Content != "alice stopped typing" || n.MessageType != model.NotificationStopTyping {
		t.Fatalf("stop typing = %+v", n)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(memory.New())
	for _, sender := range []string{"alice", "alice", "carol"} {
		if _, err := d.NotifyPrivateMessage(ctx, "bob", sender, "hi"); err != nil {
			t.Fatal(err)
		}
	}

	changed, err := d.MarkRead(ctx, "bob", "alice")
	if err != nil || changed != 2 {
		t.Fatalf("MarkRead = %d, %v", changed, err)
	}
	changed, err = d.MarkRead(ctx, "bob", "alice")
	if err != nil || changed != 0 {
		t.Fatalf("second MarkRead = %d, %v", changed, err)
	}
	unread, err := d.UnreadCount(ctx, "bob")
	if err != nil || unread != 1 {
		t.Fatalf("unread = %d, %v", unread, err)
	}
	if _, err := d.MarkAllRead(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if unread, _ := d.UnreadCount(ctx, "bob"); unread != 0 {
		t.Fatalf("unread after MarkAllRead = %d", unread)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(memory.New())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	d.now = func() time.Time { return now }

	if _, err := d.NotifyGlobalMessage(ctx, "bob", "alice", "old"); err != nil {
		t.Fatal(err)
	}
	now = base.Add(40 * 24 * time.Hour)
	if _, err := d.NotifyGlobalMessage(ctx, "bob", "alice", "new"); err != nil {
		t.Fatal(err)
	}

	removed, err := d.CleanupOlderThan(ctx, now.Add(-30*24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("removed = %d, %v", removed, err)
	}
	list, _ := d.List(ctx, "bob", false)
	if len(list) != 1 || list[0].Content != "new" {
		t.Fatalf("left = %+v", list)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ pubsub.Event) error {
	p.mu.Lock()
	p.channels = append(p.channels, channel)
	p.mu.Unlock()
	return nil
}

func TestDefaultChannelsTargets(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(memory.New(), DefaultChannels(pub, push.NewClient(""))...)

	if _, err := d.NotifyGlobalMessage(context.Background(), "bob", "alice", "hi"); err != nil {
		t.Fatal(err)
	}
	want := []string{pubsub.UserNotificationChannel("bob"), pubsub.NotificationTopic, pubsub.DebugChannel}
	if len(pub.channels) != len(want) {
		t.Fatalf("channels = %v", pub.channels)
	}
	for i := range want {
		if pub.channels[i] != want[i] {
			t.Fatalf("channel %d = %s, want %s", i, pub.channels[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatal(got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatal(got)
	}
}
