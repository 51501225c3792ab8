// Package refresh runs the section refresh pipeline: fetch fresh signals,
// classify them against the current catalog snapshot, persist the results,
// and plan the next revalidation.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/domainwatch/internal/catalog"
	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/freshness/ttl"
	"github.com/vietddude/domainwatch/internal/infra/fetch"
	"github.com/vietddude/domainwatch/internal/infra/storage"
	"github.com/vietddude/domainwatch/internal/metrics"
)

// Pipeline performs one authoritative refresh of a (domain, section) pair.
// Concurrency control (the dedup gate) lives with the callers; the pipeline
// assumes it is the only writer for the pair while it runs.
type Pipeline struct {
	fetcher   fetch.Fetcher
	catalog   *catalog.Store
	policy    ttl.Policy
	snapshots storage.SnapshotRepository
	facts     storage.ProviderFactRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewPipeline wires the refresh pipeline.
func NewPipeline(
	fetcher fetch.Fetcher,
	cat *catalog.Store,
	policy ttl.Policy,
	snapshots storage.SnapshotRepository,
	facts storage.ProviderFactRepository,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		fetcher:   fetcher,
		catalog:   cat,
		policy:    policy,
		snapshots: snapshots,
		facts:     facts,
		log:       log,
		now:       time.Now,
	}
}

// RefreshSection fetches, classifies, and persists one section. It returns
// the stored snapshot so SWR callers can serve it directly.
func (p *Pipeline) RefreshSection(ctx context.Context, domainName string, section domain.Section) (*storage.SectionSnapshot, error) {
	started := p.now()
	defer func() {
		metrics.RefreshDuration.WithLabelValues(string(section)).Observe(time.Since(started).Seconds())
	}()

	data, err := p.fetcher.Fetch(ctx, domainName, section)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(string(section), "error").Inc()
		return nil, fmt.Errorf("refresh %s/%s: %w", domainName, section, err)
	}

	now := p.now()
	if err := p.classifyAndStore(ctx, domainName, section, data.Signals, now); err != nil {
		metrics.RefreshesTotal.WithLabelValues(string(section), "error").Inc()
		return nil, err
	}

	blob, err := json.Marshal(data)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(string(section), "error").Inc()
		return nil, fmt.Errorf("failed to encode section data: %w", err)
	}

	snap := &storage.SectionSnapshot{
		Domain:    domainName,
		Section:   section,
		Data:      blob,
		FetchedAt: now,
		ExpiresAt: p.policy.ForSection(section, now, ttl.Hint{
			DomainExpiry: data.DomainExpiry,
			CertValidTo:  data.CertValidTo,
			RecordTTL:    data.RecordTTL,
		}),
	}
	if err := p.snapshots.Upsert(ctx, snap); err != nil {
		metrics.RefreshesTotal.WithLabelValues(string(section), "error").Inc()
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	metrics.RefreshesTotal.WithLabelValues(string(section), "ok").Inc()
	return snap, nil
}

// classifyAndStore classifies the fresh signals under every category this
// section informs and persists the resulting facts.
func (p *Pipeline) classifyAndStore(ctx context.Context, domainName string, section domain.Section, sig domain.Signals, now time.Time) error {
	categories := domain.SectionCategories[section]
	if len(categories) == 0 {
		return nil
	}

	snap := p.catalog.Current()
	facts := make([]storage.ProviderFact, 0, len(categories))
	for _, cat := range categories {
		ref := snap.Classify(cat, sig)

		providerLabel := "none"
		if ref != nil {
			providerLabel = ref.ID
		}
		metrics.ClassificationsTotal.WithLabelValues(string(cat), providerLabel).Inc()

		facts = append(facts, storage.ProviderFact{
			Domain:       domainName,
			Category:     cat,
			Provider:     ref,
			ClassifiedAt: now,
		})
	}

	if err := p.facts.UpsertAll(ctx, facts); err != nil {
		return fmt.Errorf("failed to persist provider facts: %w", err)
	}
	return nil
}
