package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/domainwatch/internal/metrics"
)

// Reloader periodically re-fetches the catalog document and swaps a new
// snapshot into the store. A failed reload keeps the previous good snapshot
// serving; the error is logged and counted, never fatal.
type Reloader struct {
	source   Source
	store    *Store
	interval time.Duration
	log      *slog.Logger
}

// NewReloader creates a reloader. interval <= 0 falls back to 10 minutes.
func NewReloader(source Source, store *Store, interval time.Duration, log *slog.Logger) *Reloader {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reloader{source: source, store: store, interval: interval, log: log}
}

// LoadOnce fetches, validates, and publishes one snapshot. Used at startup
// and by each tick of Run.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	raw, err := r.source.Fetch(ctx)
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("catalog fetch failed: %w", err)
	}

	snap, err := Parse(raw, time.Now())
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("invalid").Inc()
		return err
	}

	prev := r.store.Current()
	if prev != nil && prev.Version == snap.Version {
		metrics.CatalogReloads.WithLabelValues("unchanged").Inc()
		return nil
	}

	r.store.Replace(snap)
	metrics.CatalogReloads.WithLabelValues("ok").Inc()
	metrics.CatalogProviders.Set(float64(snap.Len()))
	r.log.Info("Catalog snapshot published",
		"version", snap.Version,
		"providers", snap.Len(),
	)
	return nil
}

// Run reloads the catalog on a ticker until the context is cancelled.
func (r *Reloader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.LoadOnce(ctx); err != nil {
				r.log.Error("Catalog reload failed, keeping previous snapshot", "error", err)
			}
		}
	}
}
