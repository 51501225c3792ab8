package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  stale_max_age: 72h
redis:
  url: redis://localhost:6379/0
database:
  url: postgres://localhost/domainwatch
logging:
  level: debug
  format: text
catalog:
  path: testdata/catalog.json
  reload_interval: 5m
freshness:
  ttl:
    dns_default: 30m
  decay:
    dns:
      cutoff: 240h
      steps:
        - after: 24h
          factor: 2
worker:
  poll_interval: 10s
  batch_size: 100
dedup:
  fail_closed: true
fetcher:
  url: http://fetcher:8081
  timeout: 15s
  max_retries: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Catalog.Path != "testdata/catalog.json" || cfg.Catalog.ReloadInterval != 5*time.Minute {
		t.Errorf("catalog config = %+v", cfg.Catalog)
	}
	if cfg.Freshness.TTL.DNSDefault != 30*time.Minute {
		t.Errorf("freshness.ttl.dns_default = %v, want 30m", cfg.Freshness.TTL.DNSDefault)
	}
	curve, ok := cfg.Freshness.Decay["dns"]
	if !ok || curve.Cutoff != 240*time.Hour || len(curve.Steps) != 1 || curve.Steps[0].Factor != 2 {
		t.Errorf("freshness.decay.dns = %+v", curve)
	}
	if cfg.Worker.PollInterval != 10*time.Second || cfg.Worker.BatchSize != 100 {
		t.Errorf("worker config = %+v", cfg.Worker)
	}
	if !cfg.Dedup.FailClosed {
		t.Error("dedup.fail_closed = false, want true")
	}
	if cfg.Fetcher.MaxRetries != 5 || cfg.Fetcher.Timeout != 15*time.Second {
		t.Errorf("fetcher config = %+v", cfg.Fetcher)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  url: https://catalog.example/providers.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Catalog.ReloadInterval != 10*time.Minute {
		t.Errorf("catalog.reload_interval = %v, want default 10m", cfg.Catalog.ReloadInterval)
	}
	if cfg.Activity.FlushInterval != 30*time.Second {
		t.Errorf("activity.flush_interval = %v, want default 30s", cfg.Activity.FlushInterval)
	}
	if cfg.Fetcher.Timeout != 30*time.Second {
		t.Errorf("fetcher.timeout = %v, want default 30s", cfg.Fetcher.Timeout)
	}
}

func TestLoad_EnvironmentSubstitution(t *testing.T) {
	t.Setenv("DW_REDIS_URL", "redis://prod-redis:6379/2")
	t.Setenv("DW_DB_URL", "postgres://prod-db/domainwatch")

	path := writeConfig(t, `
redis:
  url: ${DW_REDIS_URL}
database:
  url: ${DW_DB_URL}
catalog:
  path: catalog.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.URL != "redis://prod-redis:6379/2" {
		t.Errorf("redis.url = %q, env var not expanded", cfg.Redis.URL)
	}
	if cfg.Database.URL != "postgres://prod-db/domainwatch" {
		t.Errorf("database.url = %q, env var not expanded", cfg.Database.URL)
	}
}

func TestLoad_MissingCatalogSource(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	if _, err := Load(path); err == nil {
		t.Error("Load accepted a config without a catalog source")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load succeeded on a missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}
