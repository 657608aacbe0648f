package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills every unset value.
func ApplyDefaults(cfg *Config) {
	applyAPIDefaults(&cfg.API)
	applyQueryDefaults(&cfg.Query)
	applyLoggingDefaults(&cfg.Logging)
	applyDownloadDefaults(&cfg.Download)
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
}

func applyQueryDefaults(cfg *QueryConfig) {
	if cfg.PageSize == 0 {
		cfg.PageSize = 20
	}
	if cfg.StaleTime == 0 {
		cfg.StaleTime = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 256
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyDownloadDefaults(cfg *DownloadConfig) {
	if cfg.Sink == "" {
		cfg.Sink = "local"
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}
