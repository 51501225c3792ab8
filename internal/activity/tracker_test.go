package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/infra/storage"
)

// ==================== FAKES ====================

type fakeCounters struct {
	mu       sync.Mutex
	counts   map[string]int64
	touchErr error
	drainErr error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counts: make(map[string]int64)}
}

func (c *fakeCounters) Touch(ctx context.Context, domainName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.touchErr != nil {
		return c.touchErr
	}
	c.counts[domainName]++
	return nil
}

func (c *fakeCounters) Drain(ctx context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drainErr != nil {
		return nil, c.drainErr
	}
	drained := c.counts
	c.counts = make(map[string]int64)
	return drained, nil
}

func (c *fakeCounters) setDrainErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainErr = err
}

type fakeActivityRepo struct {
	mu       sync.Mutex
	recorded map[string]int64
	err      error
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{recorded: make(map[string]int64)}
}

func (r *fakeActivityRepo) RecordAccess(ctx context.Context, domainName string, at time.Time, hits int64) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded[domainName] += hits
	return nil
}

func (r *fakeActivityRepo) Get(ctx context.Context, domainName string) (*storage.DomainActivity, error) {
	return nil, domain.ErrActivityNotFound
}

func (r *fakeActivityRepo) hits(domainName string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded[domainName]
}

// ==================== TESTS ====================

func TestTouch_CountsHits(t *testing.T) {
	counters := newFakeCounters()
	tr := NewTracker(counters, newFakeActivityRepo(), time.Second, nil)

	tr.Touch(context.Background(), "example.com")
	tr.Touch(context.Background(), "example.com")
	tr.Touch(context.Background(), "other.org")

	if got := counters.counts["example.com"]; got != 2 {
		t.Errorf("example.com hits = %d, want 2", got)
	}
	if got := counters.counts["other.org"]; got != 1 {
		t.Errorf("other.org hits = %d, want 1", got)
	}
}

func TestTouch_FailureDoesNotPropagate(t *testing.T) {
	counters := newFakeCounters()
	counters.touchErr = errors.New("redis down")
	tr := NewTracker(counters, newFakeActivityRepo(), time.Second, nil)

	// Must not panic or block; the miss is logged and dropped.
	tr.Touch(context.Background(), "example.com")
}

func TestStart_FlushesPeriodically(t *testing.T) {
	counters := newFakeCounters()
	repo := newFakeActivityRepo()
	tr := NewTracker(counters, repo, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Start(ctx)
		close(done)
	}()

	tr.Touch(ctx, "example.com")
	tr.Touch(ctx, "example.com")

	waitFor(t, func() bool { return repo.hits("example.com") == 2 })

	cancel()
	<-done
}

func TestStart_FinalDrainOnShutdown(t *testing.T) {
	counters := newFakeCounters()
	repo := newFakeActivityRepo()
	// Long interval: the only flush is the shutdown drain.
	tr := NewTracker(counters, repo, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Start(ctx)
		close(done)
	}()

	tr.Touch(ctx, "example.com")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop on cancellation")
	}
	if got := repo.hits("example.com"); got != 1 {
		t.Errorf("example.com hits after shutdown = %d, want 1", got)
	}
}

func TestFlush_DrainFailureKeepsRunning(t *testing.T) {
	counters := newFakeCounters()
	counters.setDrainErr(errors.New("redis down"))
	repo := newFakeActivityRepo()
	tr := NewTracker(counters, repo, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	counters.setDrainErr(nil)
	tr.Touch(ctx, "example.com")

	waitFor(t, func() bool { return repo.hits("example.com") == 1 })

	cancel()
	<-done
}

// partialDrainCounters models a drain that clears some counters and then
// fails: the cleared hits come back alongside the error.
type partialDrainCounters struct {
	drained map[string]int64
	err     error
}

func (c *partialDrainCounters) Touch(ctx context.Context, domainName string) error { return nil }

func (c *partialDrainCounters) Drain(ctx context.Context) (map[string]int64, error) {
	return c.drained, c.err
}

func TestFlush_PartialDrainStillPersisted(t *testing.T) {
	counters := &partialDrainCounters{
		drained: map[string]int64{"example.com": 3},
		err:     errors.New("getdel failed for other.org: redis down"),
	}
	repo := newFakeActivityRepo()
	tr := NewTracker(counters, repo, time.Hour, nil)

	tr.flush(context.Background())

	// The counters cleared before the failure were already removed from the
	// store; dropping them would lose those hits permanently.
	if got := repo.hits("example.com"); got != 3 {
		t.Errorf("example.com hits = %d, want 3 persisted despite drain error", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
