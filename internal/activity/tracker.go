// Package activity tracks when domains were last looked at. The hot path
// bumps cheap Redis counters; a background flusher drains them into
// Postgres, where the scheduler reads last-access times for its decay
// decisions.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/metrics"
)

// Counters is the ephemeral counter store (Redis). Drain must be atomic
// per counter: a hit recorded mid-drain lands in the next cycle, never lost.
// A Drain that fails partway returns the counters it already cleared along
// with the error; those are the caller's to persist.
type Counters interface {
	Touch(ctx context.Context, domainName string) error
	Drain(ctx context.Context) (map[string]int64, error)
}

// Tracker records accesses and periodically flushes them to durable storage.
type Tracker struct {
	counters Counters
	repo     storage.ActivityRepository
	interval time.Duration
	log      *slog.Logger
}

// NewTracker creates a tracker. interval <= 0 falls back to 30 seconds.
func NewTracker(counters Counters, repo storage.ActivityRepository, interval time.Duration, log *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{counters: counters, repo: repo, interval: interval, log: log}
}

// Touch records one access. Failures are logged, not returned: losing a
// single activity sample never fails a user request.
func (t *Tracker) Touch(ctx context.Context, domainName string) {
	if err := t.counters.Touch(ctx, domainName); err != nil {
		t.log.Warn("Failed to record domain access", "domain", domainName, "error", err)
	}
}

// Start runs the flush loop until the context is cancelled, draining once
// more on shutdown so counters aren't stranded in Redis.
func (t *Tracker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			t.flush(ctx)
		}
	}
}

func (t *Tracker) flush(ctx context.Context) {
	drained, err := t.counters.Drain(ctx)
	if err != nil {
		// Counters drained before the failure are already cleared from
		// Redis; persist them now or their hits are gone for good.
		t.log.Warn("Activity drain failed", "error", err, "partial", len(drained))
	}
	if len(drained) == 0 {
		return
	}

	now := time.Now()
	for domainName, hits := range drained {
		if err := t.repo.RecordAccess(ctx, domainName, now, hits); err != nil {
			t.log.Warn("Failed to persist domain activity", "domain", domainName, "error", err)
		}
	}
	metrics.ActivityFlushes.Inc()
	t.log.Debug("Flushed domain activity", "domains", len(drained))
}
