// Package memory provides in-memory repository implementations, used when
// no database is configured and throughout the test suites.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/infra/storage"
)

type MemoryStorage struct {
	snapshots map[string]*storage.SectionSnapshot
	facts     map[string]map[domain.Category]storage.ProviderFact
	activity  map[string]*storage.DomainActivity
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		snapshots: make(map[string]*storage.SectionSnapshot),
		facts:     make(map[string]map[domain.Category]storage.ProviderFact),
		activity:  make(map[string]*storage.DomainActivity),
	}
}

func snapshotKey(domainName string, section domain.Section) string {
	return strings.ToLower(domainName) + "|" + string(section)
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func NewSnapshotRepo(store *MemoryStorage) *SnapshotRepo {
	return &SnapshotRepo{store: store}
}

func (r *SnapshotRepo) Upsert(ctx context.Context, snap *storage.SectionSnapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *snap
	cp.Domain = strings.ToLower(snap.Domain)
	r.store.snapshots[snapshotKey(snap.Domain, snap.Section)] = &cp
	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, domainName string, section domain.Section) (*storage.SectionSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	snap, ok := r.store.snapshots[snapshotKey(domainName, section)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	cp := *snap
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Provider Fact Repository
// -----------------------------------------------------------------------------

type FactRepo struct {
	store *MemoryStorage
}

func NewFactRepo(store *MemoryStorage) *FactRepo {
	return &FactRepo{store: store}
}

func (r *FactRepo) UpsertAll(ctx context.Context, facts []storage.ProviderFact) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, f := range facts {
		name := strings.ToLower(f.Domain)
		if r.store.facts[name] == nil {
			r.store.facts[name] = make(map[domain.Category]storage.ProviderFact)
		}
		f.Domain = name
		r.store.facts[name][f.Category] = f
	}
	return nil
}

func (r *FactRepo) GetAll(ctx context.Context, domainName string) ([]storage.ProviderFact, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	byCat := r.store.facts[strings.ToLower(domainName)]
	facts := make([]storage.ProviderFact, 0, len(byCat))
	for _, cat := range domain.Categories {
		if f, ok := byCat[cat]; ok {
			facts = append(facts, f)
		}
	}
	return facts, nil
}

// -----------------------------------------------------------------------------
// Activity Repository
// -----------------------------------------------------------------------------

type ActivityRepo struct {
	store *MemoryStorage
}

func NewActivityRepo(store *MemoryStorage) *ActivityRepo {
	return &ActivityRepo{store: store}
}

func (r *ActivityRepo) RecordAccess(ctx context.Context, domainName string, at time.Time, hits int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	name := strings.ToLower(domainName)
	act, ok := r.store.activity[name]
	if !ok {
		r.store.activity[name] = &storage.DomainActivity{
			Domain:         name,
			LastAccessedAt: at,
			AccessCount:    hits,
		}
		return nil
	}
	if at.After(act.LastAccessedAt) {
		act.LastAccessedAt = at
	}
	act.AccessCount += hits
	return nil
}

func (r *ActivityRepo) Get(ctx context.Context, domainName string) (*storage.DomainActivity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	act, ok := r.store.activity[strings.ToLower(domainName)]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	cp := *act
	return &cp, nil
}
