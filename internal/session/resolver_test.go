package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parley/internal/chaterr"
	"github.com/parley/internal/model"
	"github.com/parley/internal/storage"
	"github.com/parley/internal/storage/memory"
)

func TestGetOrCreateOrderIndependent(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(memory.New())

	pairs := [][2]string{{"alice", "bob"}, {"zed", "amy"}, {"x", "y"}}
	for _, p := range pairs {
		first, created, err := r.GetOrCreate(ctx, p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		if !created {
			t.Fatalf("%v: first call did not create", p)
		}
		for i := 0; i < 3; i++ {
			fwd, c1, err := r.GetOrCreate(ctx, p[0], p[1])
			if err != nil {
				t.Fatal(err)
			}
			rev, c2, err := r.GetOrCreate(ctx, p[1], p[0])
			if err != nil {
				t.Fatal(err)
			}
			if c1 || c2 {
				t.Fatalf("%v: repeated call created a session", p)
			}
			if fwd.ID != first.ID || rev.ID != first.ID {
				t.Fatalf("%v: ids diverged: %s %s %s", p, first.ID, fwd.ID, rev.ID)
			}
		}
		if first.UserA > first.UserB {
			t.Fatalf("pair not canonical: %s %s", first.UserA, first.UserB)
		}
	}
}

type countingStore struct {
	storage.SessionStore
	creates atomic.Int32
}

func (c *countingStore) CreateSession(ctx context.Context, s *model.PrivateSession) error {
	err := c.SessionStore.CreateSession(ctx, s)
	if err == nil {
		c.creates.Add(1)
	}
	return err
}

func TestConcurrentFirstContactCreatesOneSession(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{SessionStore: memory.New()}
	r := NewResolver(st)

	const callers = 64
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			s, _, err := r.GetOrCreate(ctx, a, b)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	if n := st.creates.Load(); n != 1 {
		t.Fatalf("sessions created = %d, want 1", n)
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("caller %d got %s, want %s", i, id, ids[0])
		}
	}
}

func TestDifferentPairsAreIndependent(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(memory.New())
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := r.GetOrCreate(ctx, "hub", fmt.Sprintf("peer%d", i))
			if err != nil {
				t.Error(err)
				return
			}
			if _, dup := seen.LoadOrStore(s.ID, i); dup {
				t.Errorf("session %s shared across pairs", s.ID)
			}
		}(i)
	}
	wg.Wait()
	list, err := r.ListForUser(ctx, "hub")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 20 {
		t.Fatalf("hub sessions = %d, want 20", len(list))
	}
}

// racingStore simulates another process inserting the pair's session between
// our lookup and our insert.
type racingStore struct {
	*memory.Store
	once sync.Once
}

func (s *racingStore) CreateSession(ctx context.Context, sess *model.PrivateSession) error {
	s.once.Do(func() {
		winner := *sess
		winner.ID = "winner"
		_ = s.Store.CreateSession(ctx, &winner)
	})
	return s.Store.CreateSession(ctx, sess)
}

func TestConflictConvergesOnWinner(t *testing.T) {
	r := NewResolver(&racingStore{Store: memory.New()})
	s, created, err := r.GetOrCreate(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("conflict surfaced: %v", err)
	}
	if created {
		t.Fatal("losing caller must not report creation")
	}
	if s.ID != "winner" {
		t.Fatalf("id = %s, want winner", s.ID)
	}
}

func TestGetOrCreateValidation(t *testing.T) {
	r := NewResolver(memory.New())
	for _, p := range [][2]string{{"alice", "alice"}, {"", "bob"}, {"alice", ""}} {
		if _, _, err := r.GetOrCreate(context.Background(), p[0], p[1]); !chaterr.IsValidation(err) {
			t.Errorf("%q: err = %v, want validation error", p, err)
		}
	}
}

func TestDeactivateStartsFreshSession(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := NewResolver(st)

	old, _, err := r.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Deactivate(ctx, old.ID); err != nil {
		t.Fatal(err)
	}
	fresh, created, err := r.GetOrCreate(ctx, "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created || fresh.ID == old.ID {
		t.Fatalf("expected a new session, got %s (created=%v)", fresh.ID, created)
	}
	kept, err := r.Get(ctx, old.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Active {
		t.Fatal("old session still active")
	}
	if err := r.Deactivate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deactivate missing: %v", err)
	}
}

func TestUpdateLastMessageNeverGoesBack(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(memory.New())
	s, _, err := r.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := r.UpdateLastMessage(ctx, s.ID, &model.ChatMessage{ID: 2, Content: "second", Timestamp: t0.Add(time.Second)}); err != nil {
		t.Fatal(err)
	}
	// a slower writer finishing late with an older message
	if err := r.UpdateLastMessage(ctx, s.ID, &model.ChatMessage{ID: 1, Content: "first", Timestamp: t0}); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != "second" || !got.LastMessageTime.Equal(t0.Add(time.Second)) {
		t.Fatalf("last message = %q at %v", got.LastMessage, got.LastMessageTime)
	}
}

func TestUpdateLastMessageTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(memory.New())
	s, _, err := r.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := &model.ChatMessage{ID: 8, Content: "newer", Timestamp: at}
	older := &model.ChatMessage{ID: 7, Content: "older", Timestamp: at}
	for _, m := range []*model.ChatMessage{newer, older} {
		if err := r.UpdateLastMessage(ctx, s.ID, m); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != "newer" {
		t.Fatalf("last message = %q, want the higher id to win the tie", got.LastMessage)
	}
}
