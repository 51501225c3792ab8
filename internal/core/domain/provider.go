package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProviderRef identifies a recognized provider. A nil *ProviderRef means
// "no provider matched" and is a valid, terminal classification result.
type ProviderRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// RevalidationTask is one pending refresh of a domain section. Tasks are
// keyed by (domain, section): resubmitting moves the due time, it never
// creates a duplicate.
type RevalidationTask struct {
	Domain  string    `json:"domain"`
	Section Section   `json:"section"`
	DueAt   time.Time `json:"due_at"`
}

// Key returns the deterministic queue key for the task.
func (t RevalidationTask) Key() string {
	return TaskKey(t.Domain, t.Section)
}

// TaskKey builds the deterministic queue key for a (domain, section) pair.
func TaskKey(domainName string, section Section) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(domainName), section)
}

// ParseTaskKey splits a queue key back into its (domain, section) pair.
func ParseTaskKey(key string) (string, Section, error) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed task key: %q", key)
	}
	name, section := key[:idx], Section(key[idx+1:])
	if !section.Valid() {
		return "", "", fmt.Errorf("unknown section in task key %q", key)
	}
	return name, section, nil
}

// TaskStatus is the lifecycle state of a background refresh task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskUnknown   TaskStatus = "unknown"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a
	// (domain, section) pair.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrActivityNotFound is returned when a domain has no recorded access.
	ErrActivityNotFound = errors.New("domain activity not found")
)
