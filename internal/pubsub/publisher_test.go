package pubsub

import (
	"context"
	"errors"
	"testing"
)

func TestUserChannels(t *testing.T) {
	tests := []struct {
		channel string
		user    string
		ok      bool
	}{
		{UserChannel("alice"), "alice", true},
		{UserNotificationChannel("bob"), "bob", true},
		{GlobalChannel, "", false},
		{"user:", "", false},
		{NotificationTopic, "", false},
	}
	for _, tt := range tests {
		user, ok := ParseUserChannel(tt.channel)
		if user != tt.user || ok != tt.ok {
			t.Errorf("ParseUserChannel(%q) = %q, %v; want %q, %v", tt.channel, user, ok, tt.user, tt.ok)
		}
	}
}

type recorder struct {
	channels []string
	err      error
}

func (r *recorder) Publish(_ context.Context, channel string, _ Event) error {
	r.channels = append(r.channels, channel)
	return r.err
}

func TestFanoutIsolatesFailures(t *testing.T) {
	broken := &recorder{err: errors.New("redis down")}
	ok := &recorder{}
	f := Fanout{broken, nil, ok}

	err := f.Publish(context.Background(), GlobalChannel, Event{Type: EventChatMessage})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.channels) != 1 || ok.channels[0] != GlobalChannel {
		t.Fatalf("healthy publisher got %v", ok.channels)
	}
}

func TestNATSSubject(t *testing.T) {
	p := NewNATSPublisher(nil, "")
	if got := p.Subject(UserNotificationChannel("alice")); got != "chat.user.alice.notifications" {
		t.Fatalf("subject = %s", got)
	}
}
