package config

import (
	"time"

	"github.com/vietddude/domainwatch/internal/api"
	"github.com/vietddude/domainwatch/internal/freshness/scheduler"
	"github.com/vietddude/domainwatch/internal/freshness/ttl"
	redisclient "github.com/vietddude/domainwatch/internal/infra/redis"
	"github.com/vietddude/domainwatch/internal/infra/storage/postgres"
	"github.com/vietddude/domainwatch/internal/refresh"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    api.Config           `yaml:"server"`
	Redis     redisclient.Config   `yaml:"redis"`
	Database  postgres.Config      `yaml:"database"`
	Logging   LoggingConfig        `yaml:"logging"`
	Catalog   CatalogConfig        `yaml:"catalog"`
	Freshness FreshnessConfig      `yaml:"freshness"`
	Worker    refresh.WorkerConfig `yaml:"worker"`
	Dedup     DedupConfig          `yaml:"dedup"`
	Activity  ActivityConfig       `yaml:"activity"`
	Fetcher   FetcherConfig        `yaml:"fetcher"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CatalogConfig holds provider catalog source settings. Exactly one of URL
// or Path is used; Path wins when both are set.
type CatalogConfig struct {
	URL            string        `yaml:"url"`
	Path           string        `yaml:"path"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// FreshnessConfig tunes TTL windows and revalidation decay.
type FreshnessConfig struct {
	TTL   ttl.Windows                `yaml:"ttl"`
	Decay map[string]scheduler.Curve `yaml:"decay"`
}

// DedupConfig tunes the cross-instance deduplication gate.
type DedupConfig struct {
	FailClosed   bool          `yaml:"fail_closed"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
}

// ActivityConfig tunes domain access tracking.
type ActivityConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// FetcherConfig points at the signal fetcher service and tunes its retry
// policy.
type FetcherConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}
