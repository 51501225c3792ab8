// Package scheduler plans future revalidations. It decides timing only:
// the single external effect is one submission to the durable task queue,
// keyed deterministically on (domain, section) so re-scheduling overwrites
// a pending task instead of duplicating it.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/metrics"
)

// Queue is the durable task queue collaborator.
type Queue interface {
	Submit(ctx context.Context, key string, payload []byte, notBefore time.Time) (bool, error)
}

// Scheduler maps a base due time plus domain inactivity onto a decayed
// submission, or decides not to submit at all.
type Scheduler struct {
	queue  Queue
	curves map[domain.Section]Curve
	log    *slog.Logger
	now    func() time.Time
}

// New builds a scheduler. Sections missing from curves fall back to the
// defaults; invalid curves are rejected up front.
func New(queue Queue, curves map[domain.Section]Curve, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}

	merged := DefaultCurves()
	for section, curve := range curves {
		if !section.Valid() {
			return nil, fmt.Errorf("scheduler: unknown section %q in decay config", section)
		}
		merged[section] = curve
	}
	for section, curve := range merged {
		if err := curve.validate(section); err != nil {
			return nil, err
		}
	}

	return &Scheduler{queue: queue, curves: merged, log: log, now: time.Now}, nil
}

// Schedule submits one revalidation task for (domainName, section).
//
// A zero lastAccessedAt means access history is unknown: the task is
// submitted at baseDueAt unmodified. Otherwise the domain's inactivity age
// picks a decay multiplier for the base interval, and inactivity beyond the
// section's cutoff suppresses the task entirely. The return value reports
// whether a task was submitted; queue failures are logged and reported as
// false, never returned as errors, since a missed revalidation self-heals
// on the next trigger.
func (s *Scheduler) Schedule(
	ctx context.Context,
	domainName string,
	section domain.Section,
	baseDueAt time.Time,
	lastAccessedAt time.Time,
) bool {
	now := s.now()

	if baseDueAt.IsZero() || baseDueAt.Unix() < 0 {
		metrics.SchedulerSubmissions.WithLabelValues(string(section), "invalid").Inc()
		s.log.Warn("Rejected revalidation with invalid due time",
			"domain", domainName, "section", section, "due_at", baseDueAt)
		return false
	}

	dueAt := baseDueAt
	if !lastAccessedAt.IsZero() {
		curve := s.curves[section]
		inactivity := now.Sub(lastAccessedAt)

		if inactivity > curve.Cutoff {
			metrics.SchedulerSubmissions.WithLabelValues(string(section), "cutoff").Inc()
			s.log.Debug("Domain past inactivity cutoff, not scheduling",
				"domain", domainName, "section", section, "inactivity", inactivity)
			return false
		}

		baseInterval := baseDueAt.Sub(now)
		if baseInterval < 0 {
			baseInterval = 0
		}
		factor := curve.FactorFor(inactivity)
		dueAt = now.Add(time.Duration(float64(baseInterval) * factor))
	}

	// Never schedule into the past.
	if dueAt.Before(now) {
		dueAt = now
	}

	task := domain.RevalidationTask{Domain: domainName, Section: section, DueAt: dueAt}
	payload, err := json.Marshal(task)
	if err != nil {
		metrics.SchedulerSubmissions.WithLabelValues(string(section), "error").Inc()
		s.log.Error("Failed to encode revalidation task", "domain", domainName, "error", err)
		return false
	}

	accepted, err := s.queue.Submit(ctx, task.Key(), payload, dueAt)
	if err != nil {
		metrics.SchedulerSubmissions.WithLabelValues(string(section), "error").Inc()
		s.log.Warn("Task queue submission failed, revalidation skipped",
			"domain", domainName, "section", section, "error", err)
		return false
	}
	if !accepted {
		metrics.SchedulerSubmissions.WithLabelValues(string(section), "rejected").Inc()
		return false
	}

	metrics.SchedulerSubmissions.WithLabelValues(string(section), "ok").Inc()
	return true
}
