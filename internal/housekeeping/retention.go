// Package housekeeping runs periodic maintenance outside the request path.
package housekeeping

import (
	"context"
	"time"

	"github.com/parley/internal/logger"
)

// Cleaner deletes notifications created before cutoff.
type Cleaner interface {
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention purges notifications older than MaxAge every Interval.
type Retention struct {
	cleaner  Cleaner
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewRetention(c Cleaner, maxAge, interval time.Duration) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Retention{
		cleaner:  c,
		maxAge:   maxAge,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single purge pass.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	defer logger.DeferLogDuration("housekeeping.RunOnce", time.Now())()
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.cleaner.CleanupOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infof("housekeeping: removed %d notifications older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Run purges once at start and then every interval until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if _, err := r.RunOnce(runCtx); err != nil {
			logger.Errorf("housekeeping: notification cleanup: %v", err)
		}
		cancel()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
