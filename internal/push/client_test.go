package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestNotifyDisabled(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Fatal("empty URL must disable the client")
	}
	if err := c.Notify(context.Background(), "alice", "t", "b", nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
	if err := c.Subscribe(context.Background(), "alice", PushSubscription{}); err != nil {
		t.Fatalf("subscribe on disabled client: %v", err)
	}
}

func TestNotifyPostsToService(t *testing.T) {
	var got NotifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notify" || r.Method != http.MethodPost {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	err := c.Notify(context.Background(), "bob", "alice", "hey", map[string]string{"chat_id": "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "bob" || got.Body != "hey" || got.Data["chat_id"] != "alice" {
		t.Fatalf("request = %+v", got)
	}
}

func TestNotifyReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewClient(srv.URL).Notify(context.Background(), "bob", "t", "b", nil); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestEnsureVAPIDKeysPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")
	first, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.PublicKey == "" || first.PublicKey != second.PublicKey || first.PrivateKey != second.PrivateKey {
		t.Fatal("keys were not reloaded from disk")
	}
}
