package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/freshness/dedup"
	"github.com/vietddude/domainwatch/internal/freshness/scheduler"
	"github.com/vietddude/domainwatch/internal/freshness/ttl"
	"github.com/vietddude/domainwatch/internal/infra/fetch"
	redisinfra "github.com/vietddude/domainwatch/internal/infra/redis"
	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/metrics"
)

// Queue is the slice of the task queue the worker consumes.
type Queue interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]redisinfra.Task, error)
	SetStatus(ctx context.Context, taskID string, status domain.TaskStatus) error
}

// WorkerConfig tunes the revalidation worker loop.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int64         `yaml:"batch_size"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

// Worker drains due revalidation tasks and runs each through the dedup gate
// so no two instances refresh the same (domain, section) concurrently.
type Worker struct {
	queue    Queue
	gate     *dedup.Gate
	pipeline *Pipeline
	sched    *scheduler.Scheduler
	activity storage.ActivityRepository
	policy   ttl.Policy
	cfg      WorkerConfig
	log      *slog.Logger
}

// NewWorker creates a revalidation worker.
func NewWorker(
	queue Queue,
	gate *dedup.Gate,
	pipeline *Pipeline,
	sched *scheduler.Scheduler,
	activity storage.ActivityRepository,
	policy ttl.Policy,
	cfg WorkerConfig,
	log *slog.Logger,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:    queue,
		gate:     gate,
		pipeline: pipeline,
		sched:    sched,
		activity: activity,
		policy:   policy,
		cfg:      cfg,
		log:      log,
	}
}

// Start runs the worker loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	tasks, err := w.queue.Due(ctx, time.Now(), w.cfg.BatchSize)
	if err != nil {
		w.log.Warn("Failed to poll revalidation queue", "error", err)
		return
	}

	for _, task := range tasks {
		metrics.TasksDue.Inc()
		w.handle(ctx, task)
	}
}

func (w *Worker) handle(ctx context.Context, task redisinfra.Task) {
	domainName, section, err := domain.ParseTaskKey(task.Key)
	if err != nil {
		w.log.Warn("Dropping malformed revalidation task", "key", task.Key, "error", err)
		return
	}

	start := func(ctx context.Context) (string, error) {
		taskID := uuid.NewString()
		if err := w.queue.SetStatus(ctx, taskID, domain.TaskRunning); err != nil {
			w.log.Warn("Failed to record task status", "task_id", taskID, "error", err)
		}
		// The refresh runs detached: it outlives this poll cycle and its
		// failure is recorded on the task, not propagated.
		go w.run(context.WithoutCancel(ctx), taskID, domainName, section)
		return taskID, nil
	}

	attach, err := w.gate.AcquireOrAttach(ctx, "revalidate:"+task.Key, start, w.cfg.LockTTL)
	switch {
	case errors.Is(err, dedup.ErrOwnerPending):
		w.log.Debug("Refresh already running elsewhere", "key", task.Key)
	case err != nil:
		w.log.Warn("Dedup gate failed for revalidation task", "key", task.Key, "error", err)
	case !attach.Started:
		w.log.Debug("Attached to running refresh", "key", task.Key, "task_id", attach.TaskID)
	}
}

func (w *Worker) run(ctx context.Context, taskID, domainName string, section domain.Section) {
	snap, err := w.pipeline.RefreshSection(ctx, domainName, section)

	status := domain.TaskCompleted
	if err != nil {
		status = domain.TaskFailed
		if fetch.IsPermanent(err) {
			w.log.Info("Refresh hit permanent upstream failure", "domain", domainName, "section", section, "error", err)
		} else {
			w.log.Warn("Refresh failed", "domain", domainName, "section", section, "error", err)
		}
	}
	if serr := w.queue.SetStatus(ctx, taskID, status); serr != nil {
		w.log.Warn("Failed to record task status", "task_id", taskID, "error", serr)
	}

	// Plan the next revalidation either way: a failed refresh retries on
	// the section's default cadence instead of dropping out of rotation.
	baseDueAt := w.policy.ForSection(section, time.Now(), ttl.Hint{})
	if snap != nil {
		baseDueAt = snap.ExpiresAt
	}

	var lastAccessed time.Time
	act, aerr := w.activity.Get(ctx, domainName)
	if aerr == nil {
		lastAccessed = act.LastAccessedAt
	} else if !errors.Is(aerr, domain.ErrActivityNotFound) {
		w.log.Warn("Failed to read domain activity", "domain", domainName, "error", aerr)
	}

	w.sched.Schedule(ctx, domainName, section, baseDueAt, lastAccessed)
}
