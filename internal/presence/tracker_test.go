package presence

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

func TestFindOrCreateReportsNewOnce(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.New())

	u, isNew, err := tr.FindOrCreate(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("first call must report isNew")
	}
	if u.Online {
		t.Fatal("new users start offline")
	}
	for i := 0; i < 3; i++ {
		if _, err := tr.SetOnline(ctx, "alice", i%2 == 0); err != nil {
			t.Fatal(err)
		}
		_, isNew, err = tr.FindOrCreate(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if isNew {
			t.Fatalf("reconnect %d reported isNew", i)
		}
	}
}

func TestFindOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.New())

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := tr.FindOrCreate(ctx, "bob")
			if err != nil {
				t.Error(err)
				return
			}
			if isNew {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := created.Load(); got != 1 {
		t.Fatalf("isNew reported %d times, want 1", got)
	}
}

func TestFindOrCreateRejectsEmpty(t *testing.T) {
	_, _, err := NewTracker(memory.New()).FindOrCreate(context.Background(), "")
	if !chaterr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSetOnlineUnknownUserIsNoop(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tr := NewTracker(st)

	found, err := tr.SetOnline(ctx, "carol", true)
	if err != nil {
		t.Fatalf("SetOnline unknown user: %v", err)
	}
	if found {
		t.Fatal("unknown user reported as found")
	}
	if _, err := st.GetUser(ctx, "carol"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("user record created for unknown user: %v", err)
	}
}

func TestSetOnlineUpdatesLastSeen(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.New())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }
	if _, _, err := tr.FindOrCreate(ctx, "dave"); err != nil {
		t.Fatal(err)
	}

	tr.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := tr.SetOnline(ctx, "dave", true); err != nil {
		t.Fatal(err)
	}
	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0].Username != "dave" {
		t.Fatalf("online = %+v", online)
	}
	if !online[0].LastSeen.Equal(base.Add(time.Minute)) {
		t.Fatalf("last seen = %v", online[0].LastSeen)
	}
	ok, err := tr.IsOnline(ctx, "dave")
	if err != nil || !ok {
		t.Fatalf("IsOnline = %v, %v", ok, err)
	}
}

func TestResetAllOffline(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.New())
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("user%d", i)
		if _, _, err := tr.FindOrCreate(ctx, name); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.SetOnline(ctx, name, i%3 != 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := tr.ResetAllOffline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("reset %d users, want 6", n)
	}
	online, err := tr.ListOnline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 0 {
		t.Fatalf("still online: %+v", online)
	}
}

type failingUsers struct {
	storage.UserStore
}

func (failingUsers) GetUser(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection refused")
}

func (failingUsers) ListOnlineUsers(context.Context) ([]model.User, error) {
	return nil, errors.New("connection refused")
}

func TestStoreErrorsSurfaceAsStorageError(t *testing.T) {
	tr := NewTracker(failingUsers{})
	if _, _, err := tr.FindOrCreate(context.Background(), "eve"); !chaterr.IsStorage(err) {
		t.Fatalf("FindOrCreate err = %v, want storage error", err)
	}
	if _, err := tr.ListOnline(context.Background()); !chaterr.IsStorage(err) {
		t.Fatalf("ListOnline err = %v, want storage error", err)
	}
}
