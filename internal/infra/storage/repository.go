package storage

import (
	"context"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
)

// SectionSnapshot is the persisted result of one section refresh: the raw
// data blob plus the freshness bookkeeping the SWR path reads.
type SectionSnapshot struct {
	Domain    string         `db:"domain"`
	Section   domain.Section `db:"section"`
	Data      []byte         `db:"data"`
	FetchedAt time.Time      `db:"fetched_at"`
	ExpiresAt time.Time      `db:"expires_at"`
}

// Stale reports whether the snapshot's TTL window has elapsed.
func (s *SectionSnapshot) Stale(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SnapshotRepository stores section snapshots keyed by (domain, section).
// Only the lock-holding refresher writes a given pair; readers are unbounded.
type SnapshotRepository interface {
	// Upsert creates or replaces the snapshot for its (domain, section).
	Upsert(ctx context.Context, snap *SectionSnapshot) error

	// Get returns the snapshot, or domain.ErrSnapshotNotFound.
	Get(ctx context.Context, domainName string, section domain.Section) (*SectionSnapshot, error)
}

// ProviderFact is one persisted classification: the provider recognized for
// a domain under one category. A nil Provider records "classified, no match".
type ProviderFact struct {
	Domain       string
	Category     domain.Category
	Provider     *domain.ProviderRef
	ClassifiedAt time.Time
}

// ProviderFactRepository stores classification results per (domain, category).
type ProviderFactRepository interface {
	// UpsertAll replaces the facts for the given categories of one domain.
	UpsertAll(ctx context.Context, facts []ProviderFact) error

	// GetAll returns every stored fact for a domain (possibly none).
	GetAll(ctx context.Context, domainName string) ([]ProviderFact, error)
}

// DomainActivity is the access history the scheduler's decay decisions read.
type DomainActivity struct {
	Domain         string    `db:"domain"`
	LastAccessedAt time.Time `db:"last_accessed_at"`
	AccessCount    int64     `db:"access_count"`
}

// ActivityRepository stores per-domain access history.
type ActivityRepository interface {
	// RecordAccess adds hits accesses observed up to at.
	RecordAccess(ctx context.Context, domainName string, at time.Time, hits int64) error

	// Get returns the domain's activity, or domain.ErrActivityNotFound.
	Get(ctx context.Context, domainName string) (*DomainActivity, error)
}
