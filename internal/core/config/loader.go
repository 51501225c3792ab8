package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Catalog.ReloadInterval == 0 {
		cfg.Catalog.ReloadInterval = 10 * time.Minute
	}
	if cfg.Activity.FlushInterval == 0 {
		cfg.Activity.FlushInterval = 30 * time.Second
	}
	if cfg.Fetcher.Timeout == 0 {
		cfg.Fetcher.Timeout = 30 * time.Second
	}

	if cfg.Catalog.URL == "" && cfg.Catalog.Path == "" {
		return nil, fmt.Errorf("catalog source missing: set catalog.url or catalog.path")
	}

	return &cfg, nil
}
