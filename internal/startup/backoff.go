// Package startup connects the service to its backing systems, retrying with
// exponential backoff and exiting the process once maxWait has elapsed.
package startup

import (
	"os"
	"time"

	"github.com/parley/internal/logger"
)

const maxBackoff = 30 * time.Second

// retry calls attempt until it succeeds or maxWait elapses. It reports false
// when it gave up.
func retry(what string, maxWait time.Duration, logPrefix string, attempt func() error) bool {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := attempt()
		if err == nil {
			return true
		}
		if time.Now().After(deadline) {
			logger.Errorf("%s%s (gave up after %v): %v", logPrefix, what, maxWait, err)
			return false
		}
		logger.Errorf("%s%s failed, retry in %v: %v", logPrefix, what, backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func mustRetry(what string, maxWait time.Duration, logPrefix string, attempt func() error) {
	if !retry(what, maxWait, logPrefix, attempt) {
		os.Exit(1)
	}
}
