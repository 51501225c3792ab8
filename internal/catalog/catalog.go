package catalog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vietddude/domainwatch/internal/classify"
	"github.com/vietddude/domainwatch/internal/core/domain"
)

// Snapshot is one immutable, fully validated catalog version. Once built it
// is never mutated; readers share it freely without synchronization.
type Snapshot struct {
	Version  string
	LoadedAt time.Time
	entries  map[domain.Category][]classify.Entry
}

// Entries returns the ordered provider entries for a category.
func (s *Snapshot) Entries(cat domain.Category) []classify.Entry {
	if s == nil {
		return nil
	}
	return s.entries[cat]
}

// Len returns the total number of provider entries across all categories.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, es := range s.entries {
		n += len(es)
	}
	return n
}

// Classify returns the first provider in the category whose rule matches,
// or nil. A nil snapshot (catalog never loaded) classifies everything nil.
func (s *Snapshot) Classify(cat domain.Category, sig domain.Signals) *domain.ProviderRef {
	if s == nil {
		return nil
	}
	return classify.Classify(s.entries[cat], sig)
}

// ClassifyAll classifies the signals under every known category.
func (s *Snapshot) ClassifyAll(sig domain.Signals) map[domain.Category]*domain.ProviderRef {
	out := make(map[domain.Category]*domain.ProviderRef, len(domain.Categories))
	for _, cat := range domain.Categories {
		out[cat] = s.Classify(cat, sig)
	}
	return out
}

// Store publishes the current catalog snapshot. Replacement is atomic: a
// concurrent reader sees either the old snapshot or the new one in full,
// never a partial update.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates an empty store. Current returns nil until the first
// successful load.
func NewStore() *Store {
	return &Store{}
}

// Current returns the latest good snapshot, or nil if none loaded yet.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace swaps in a new snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}

// ValidationError pinpoints the first invalid part of a catalog document.
// A document with any invalid entry is rejected as a whole.
type ValidationError struct {
	Category domain.Category
	Entry    int
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"catalog: category %q entry %d field %q: %s",
		e.Category, e.Entry, e.Field, e.Reason,
	)
}
