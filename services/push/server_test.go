package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/parley/internal/push"
)

type memSubs struct {
	mu   sync.Mutex
	subs map[string][]push.PushSubscription
}

func newMemSubs() *memSubs { return &memSubs{subs: make(map[string][]push.PushSubscription)} }

func (m *memSubs) Add(_ context.Context, username string, sub push.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[username] = append(m.subs[username], sub)
	return nil
}

func (m *memSubs) List(_ context.Context, username string) ([]push.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]push.PushSubscription(nil), m.subs[username]...), nil
}

func (m *memSubs) Remove(_ context.Context, username, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subs[username][:0]
	for _, s := range m.subs[username] {
		if s.Endpoint != endpoint {
			kept = append(kept, s)
		}
	}
	m.subs[username] = kept
	return nil
}

func post(t *testing.T, h http.Handler, method, path, body string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec.Code
}

const aliceSub = `{"username":"alice","subscription":{"endpoint":"https://push.example/%s","keys":{"p256dh":"k","auth":"a"}}}`

func TestSubscribeValidation(t *testing.T) {
	s := newServer(newMemSubs(), "", "")
	h := s.routes()
	if code := post(t, h, http.MethodPost, "/api/subscribe", `{"username":"alice"}`); code != http.StatusBadRequest {
		t.Fatalf("missing subscription: %d", code)
	}
	if code := post(t, h, http.MethodPost, "/api/subscribe", strings.Replace(aliceSub, "%s", "1", 1)); code != http.StatusNoContent {
		t.Fatalf("subscribe: %d", code)
	}
	if code := post(t, h, http.MethodGet, "/api/vapid-public", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("vapid-public without keys: %d", code)
	}
}

func TestNotifyDropsGoneSubscriptions(t *testing.T) {
	subs := newMemSubs()
	s := newServer(subs, "pub", "priv")
	var sent []string
	s.send = func(_ context.Context, _ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		sent = append(sent, sub.Endpoint)
		status := http.StatusCreated
		if strings.HasSuffix(sub.Endpoint, "/gone") {
			status = http.StatusGone
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	h := s.routes()
	for _, ep := range []string{"live", "gone"} {
		if code := post(t, h, http.MethodPost, "/api/subscribe", strings.Replace(aliceSub, "%s", ep, 1)); code != http.StatusNoContent {
			t.Fatalf("subscribe %s: %d", ep, code)
		}
	}

	if code := post(t, h, http.MethodPost, "/api/notify", `{"username":"alice","title":"t","body":"b"}`); code != http.StatusNoContent {
		t.Fatalf("notify: %d", code)
	}
	if len(sent) != 2 {
		t.Fatalf("sent to %v", sent)
	}
	left, _ := subs.List(context.Background(), "alice")
	if len(left) != 1 || !strings.HasSuffix(left[0].Endpoint, "/live") {
		t.Fatalf("remaining subscriptions = %+v", left)
	}
}

func TestUnsubscribe(t *testing.T) {
	subs := newMemSubs()
	h := newServer(subs, "", "").routes()
	post(t, h, http.MethodPost, "/api/subscribe", strings.Replace(aliceSub, "%s", "1", 1))
	if code := post(t, h, http.MethodDelete, "/api/subscribe", `{"username":"alice"}`); code != http.StatusBadRequest {
		t.Fatalf("missing endpoint: %d", code)
	}
	if code := post(t, h, http.MethodDelete, "/api/subscribe", `{"username":"alice","endpoint":"https://push.example/1"}`); code != http.StatusNoContent {
		t.Fatalf("unsubscribe: %d", code)
	}
	if left, _ := subs.List(context.Background(), "alice"); len(left) != 0 {
		t.Fatalf("left = %+v", left)
	}
}
