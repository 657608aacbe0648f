// Package config loads the file manager client configuration.
//
// Sources, lowest precedence first: built-in defaults, the config file
// ($XDG_CONFIG_HOME/madar/config.yaml or an explicit path), then MADAR_* environment variables
// such as MADAR_API_BASE_URL or MADAR_QUERY_PAGE_SIZE.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete client configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Query    QueryConfig    `mapstructure:"query"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Download DownloadConfig `mapstructure:"download"`
}

// APIConfig points at the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// QueryConfig tunes the browse cache and query retries.
type QueryConfig struct {
	PageSize      int           `mapstructure:"page_size" validate:"min=1,max=200"`
	StaleTime     time.Duration `mapstructure:"stale_time" validate:"gt=0"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=1,max=10"`
	MaxEntries    int           `mapstructure:"max_entries" validate:"min=1"`
}

// SessionConfig tunes the interactive session.
type SessionConfig struct {
	// PrecheckPasswords verifies a submitted folder password with the server before browsing.
	PrecheckPasswords bool `mapstructure:"precheck_passwords"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// DownloadConfig selects where downloads are saved.
type DownloadConfig struct {
	Sink string   `mapstructure:"sink" validate:"oneof=local s3"`
	Dir  string   `mapstructure:"dir"`
	S3   S3Config `mapstructure:"s3"`
}

// S3Config is the bucket used by the s3 download sink.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,url"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// envKeys are bound explicitly so environment variables reach Unmarshal even when the key is
// absent from the config file.
var envKeys = []string{
	"api.base_url", "api.token", "api.timeout",
	"query.page_size", "query.stale_time", "query.retry_attempts", "query.max_entries",
	"session.precheck_passwords",
	"logging.level", "logging.format", "logging.output",
	"metrics.addr",
	"download.sink", "download.dir",
	"download.s3.endpoint", "download.s3.bucket", "download.s3.region",
	"download.s3.access_key", "download.s3.secret_key", "download.s3.prefix",
}

// Load reads, defaults and validates the configuration. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// ConfigDir returns $XDG_CONFIG_HOME/madar, falling back to ~/.config/madar.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "madar")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "madar")
	}
	return filepath.Join(home, ".config", "madar")
}
