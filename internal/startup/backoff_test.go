package startup

import (
	"errors"
	"testing"
	"time"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	ok := retry("op", time.Minute, "", func() error {
		calls++
		return nil
	})
	if !ok || calls != 1 {
		t.Fatalf("ok=%v calls=%d", ok, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	ok := retry("op", 0, "test: ", func() error {
		calls++
		return errors.New("down")
	})
	if ok || calls != 1 {
		t.Fatalf("ok=%v calls=%d", ok, calls)
	}
}
