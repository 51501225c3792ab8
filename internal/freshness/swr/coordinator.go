// Package swr implements the stale-while-revalidate read path: fresh data
// is served as-is, stale data within the staleness budget is served
// immediately while exactly one detached refresh runs in the background,
// and anything beyond the budget is treated as a miss.
package swr

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/domainwatch/internal/metrics"
)

// Record is one cache read result. Found=false means no data exists yet;
// Stale marks data whose TTL window has elapsed.
type Record[T any] struct {
	Data      T
	FetchedAt time.Time
	Found     bool
	Stale     bool
}

// Outcome is what a read returns to the caller. Err is only set when the
// fetch ran synchronously (miss or expired); background failures are logged,
// never surfaced.
type Outcome[T any] struct {
	Data   T
	Err    error
	Cached bool
	Stale  bool
}

// Options tunes a single read. MaxAge is the staleness budget: stale data
// older than MaxAge is treated as a miss. Zero means no ceiling.
type Options struct {
	MaxAge time.Duration
}

// Coordinator holds the shared state for SWR reads: the singleflight group
// keeps concurrent stale reads of the same key from firing more than one
// background refresh.
type Coordinator struct {
	group singleflight.Group
	log   *slog.Logger
	now   func() time.Time

	// wakeup of the detached refresh, for tests
	refreshDone func(key string, err error)
}

// NewCoordinator creates a coordinator.
func NewCoordinator(log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{log: log, now: time.Now}
}

// Read serves one key through the SWR decision procedure.
//
// getCached reads the cache; a read failure is treated as a miss. fetchFresh
// performs the authoritative fetch and is expected to persist its own result;
// permanent upstream failures come back as a typed error, never a panic.
func Read[T any](
	ctx context.Context,
	c *Coordinator,
	key string,
	getCached func(ctx context.Context) (Record[T], error),
	fetchFresh func(ctx context.Context) (T, error),
	opts Options,
) Outcome[T] {
	rec, err := getCached(ctx)
	if err != nil {
		c.log.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		rec = Record[T]{}
	}

	// Case 1: nothing cached, fetch synchronously.
	if !rec.Found {
		metrics.SWRReads.WithLabelValues("miss").Inc()
		data, err := fetchFresh(ctx)
		return Outcome[T]{Data: data, Err: err}
	}

	// Case 2: cached and still fresh.
	if !rec.Stale {
		metrics.SWRReads.WithLabelValues("fresh").Inc()
		return Outcome[T]{Data: rec.Data, Cached: true}
	}

	// Case 4: stale beyond the budget, treat as a miss.
	if opts.MaxAge > 0 && c.now().Sub(rec.FetchedAt) > opts.MaxAge {
		metrics.SWRReads.WithLabelValues("expired").Inc()
		data, err := fetchFresh(ctx)
		return Outcome[T]{Data: data, Err: err}
	}

	// Case 3: stale within budget. Serve the stale data now and revalidate
	// in the background, detached from the caller: the caller never waits
	// on it and the caller's cancellation does not cancel it.
	metrics.SWRReads.WithLabelValues("stale_served").Inc()
	c.refresh(context.WithoutCancel(ctx), key, func(ctx context.Context) error {
		_, err := fetchFresh(ctx)
		return err
	})
	return Outcome[T]{Data: rec.Data, Cached: true, Stale: true}
}

func (c *Coordinator) refresh(ctx context.Context, key string, fetchFresh func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("Background refresh panicked",
					"key", key,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()

		// Do runs the callback exactly once per in-flight key no matter how
		// many stale reads piled on, so reporting lives inside it: a shared
		// result must still count and log its one refresh.
		c.group.Do(key, func() (any, error) {
			err := fetchFresh(ctx)
			if err != nil {
				metrics.SWRBackgroundRefreshes.WithLabelValues("error").Inc()
				c.log.Warn("Background refresh failed, next read retries", "key", key, "error", err)
			} else {
				metrics.SWRBackgroundRefreshes.WithLabelValues("ok").Inc()
			}
			if c.refreshDone != nil {
				c.refreshDone(key, err)
			}
			return nil, nil
		})
	}()
}
