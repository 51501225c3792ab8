package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassificationsTotal tracks classification results per category.
	// provider is the matched provider id, or "none".
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_classifications_total",
			Help: "Total number of category classifications performed",
		},
		[]string{"category", "provider"},
	)

	// CatalogReloads tracks catalog reload outcomes.
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_catalog_reloads_total",
			Help: "Total number of catalog reload attempts by outcome",
		},
		[]string{"status"},
	)

	// CatalogProviders tracks the provider entry count of the live snapshot.
	CatalogProviders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "domainwatch_catalog_providers",
			Help: "Number of provider entries in the current catalog snapshot",
		},
	)

	// SWRReads tracks read outcomes on the stale-while-revalidate path.
	SWRReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_swr_reads_total",
			Help: "Total SWR reads by outcome (fresh, stale_served, miss, expired)",
		},
		[]string{"outcome"},
	)

	// SWRBackgroundRefreshes tracks detached refreshes fired by stale reads.
	SWRBackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_swr_background_refreshes_total",
			Help: "Total background refreshes fired by stale reads, by status",
		},
		[]string{"status"},
	)

	// SchedulerSubmissions tracks revalidation scheduling decisions.
	SchedulerSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_scheduler_submissions_total",
			Help: "Total revalidation scheduling decisions by section and result",
		},
		[]string{"section", "result"},
	)

	// DedupAcquires tracks dedup gate outcomes.
	DedupAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_dedup_acquires_total",
			Help: "Total dedup gate acquisitions by outcome (owner, attached, fail_open)",
		},
		[]string{"outcome"},
	)

	// RefreshDuration tracks end-to-end section refresh latency.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domainwatch_refresh_duration_seconds",
			Help:    "Section refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"section"},
	)

	// RefreshesTotal tracks section refresh completions by status.
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domainwatch_refreshes_total",
			Help: "Total section refreshes by section and status",
		},
		[]string{"section", "status"},
	)

	// ActivityFlushes tracks completed activity flush cycles.
	ActivityFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "domainwatch_activity_flushes_total",
			Help: "Total activity counter flush cycles",
		},
	)

	// TasksDue tracks due revalidation tasks claimed from the queue.
	TasksDue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "domainwatch_tasks_due_total",
			Help: "Total due revalidation tasks claimed from the queue",
		},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "domainwatch_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
