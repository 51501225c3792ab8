// Package dedup guards background work so that at most one instance runs
// it concurrently across all server processes. Correctness rides on the
// shared store's atomic set-if-absent-with-TTL; when the store is down the
// gate fails open by default, preferring duplicate work over no work.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/domainwatch/internal/metrics"
)

// Store is the shared lock store. SetIfAbsent must be atomic; Update must
// preserve the key's remaining TTL.
type Store interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Update(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Attachment is the gate's result: the task id doing the work, and whether
// this caller started it.
type Attachment struct {
	TaskID  string
	Started bool
}

// ErrOwnerPending is returned when another instance holds the lock but has
// not yet recorded its task id within the polling budget. Work is running;
// its id just isn't visible yet.
var ErrOwnerPending = errors.New("dedup: owner has not recorded a task id yet")

// errOwnerVanished reports that the lock disappeared while attaching: the
// owner finished (or crashed and expired) before recording a task id.
var errOwnerVanished = errors.New("dedup: lock vanished while attaching")

const pendingPrefix = "pending:"

// Options tunes gate behavior.
type Options struct {
	// FailClosed makes store outages return an error instead of running
	// the work anyway. Reserve for operations where duplicates are worse
	// than delays.
	FailClosed bool

	// PollInterval and PollAttempts bound how long an attaching caller
	// waits for the owner's task id to appear.
	PollInterval time.Duration
	PollAttempts int
}

// Gate implements at-most-one-concurrent execution per key.
type Gate struct {
	store Store
	log   *slog.Logger
	opts  Options
}

// New creates a gate.
func New(store Store, log *slog.Logger, opts Options) *Gate {
	if log == nil {
		log = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 20
	}
	return &Gate{store: store, log: log, opts: opts}
}

// AcquireOrAttach wins the key and starts the work, or attaches to the task
// already running under it.
//
// The lock always carries ttl so a crashed owner cannot stall the key: the
// lock simply expires and the next caller wins it.
func (g *Gate) AcquireOrAttach(
	ctx context.Context,
	key string,
	start func(ctx context.Context) (string, error),
	ttl time.Duration,
) (Attachment, error) {
	// The lock can vanish between losing SetIfAbsent and the first attach
	// read (owner finished, or crashed and expired). One more acquisition
	// attempt covers that window; a second vanish means the key is churning
	// and the caller can retry later.
	for try := 0; try < 2; try++ {
		marker := pendingPrefix + uuid.NewString()

		won, err := g.store.SetIfAbsent(ctx, key, marker, ttl)
		if err != nil {
			if g.opts.FailClosed {
				return Attachment{}, fmt.Errorf("dedup store unavailable: %w", err)
			}
			// Fail open: run the work as if we owned the key.
			metrics.DedupAcquires.WithLabelValues("fail_open").Inc()
			g.log.Warn("Dedup store unavailable, proceeding without lock", "key", key, "error", err)
			taskID, err := start(ctx)
			if err != nil {
				return Attachment{}, err
			}
			return Attachment{TaskID: taskID, Started: true}, nil
		}

		if won {
			return g.runAsOwner(ctx, key, start)
		}

		att, err := g.attach(ctx, key)
		if !errors.Is(err, errOwnerVanished) {
			return att, err
		}
		g.log.Debug("Dedup lock vanished before attach, retrying acquisition", "key", key)
	}
	return Attachment{}, ErrOwnerPending
}

func (g *Gate) runAsOwner(
	ctx context.Context,
	key string,
	start func(ctx context.Context) (string, error),
) (Attachment, error) {
	taskID, err := start(ctx)
	if err != nil {
		// Nothing is running under the key; release it so the next caller
		// does not wait out the TTL.
		if derr := g.store.Delete(ctx, key); derr != nil {
			g.log.Warn("Failed to release dedup lock after start error", "key", key, "error", derr)
		}
		return Attachment{}, err
	}

	// Record the task id for attaching callers, keeping the lock's TTL.
	if uerr := g.store.Update(ctx, key, taskID); uerr != nil {
		g.log.Warn("Failed to record task id under dedup lock", "key", key, "error", uerr)
	}

	metrics.DedupAcquires.WithLabelValues("owner").Inc()
	return Attachment{TaskID: taskID, Started: true}, nil
}

// attach reads the owner's recorded task id, polling briefly through the
// window right after acquisition where the id hasn't been written yet.
func (g *Gate) attach(ctx context.Context, key string) (Attachment, error) {
	for attempt := 0; attempt < g.opts.PollAttempts; attempt++ {
		value, found, err := g.store.Get(ctx, key)
		if err != nil {
			g.log.Warn("Dedup lock read failed while attaching", "key", key, "error", err)
		} else if found && !strings.HasPrefix(value, pendingPrefix) {
			metrics.DedupAcquires.WithLabelValues("attached").Inc()
			return Attachment{TaskID: value, Started: false}, nil
		} else if !found {
			return Attachment{}, errOwnerVanished
		}

		select {
		case <-ctx.Done():
			return Attachment{}, ctx.Err()
		case <-time.After(g.opts.PollInterval):
		}
	}
	return Attachment{}, ErrOwnerPending
}
