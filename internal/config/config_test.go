package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 20, cfg.Query.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Query.StaleTime)
	assert.Equal(t, 3, cfg.Query.RetryAttempts)
	assert.Equal(t, 256, cfg.Query.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "local", cfg.Download.Sink)
	assert.False(t, cfg.Session.PrecheckPasswords)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://api.madar.example/
  timeout: 10s
query:
  page_size: 50
  stale_time: 1m
session:
  precheck_passwords: true
logging:
  level: DEBUG
  format: json
download:
  sink: s3
  s3:
    bucket: madar-downloads
    endpoint: http://localhost:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.madar.example", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Query.PageSize)
	assert.Equal(t, time.Minute, cfg.Query.StaleTime)
	assert.True(t, cfg.Session.PrecheckPasswords)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "madar-downloads", cfg.Download.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Download.S3.Region)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MADAR_API_BASE_URL", "https://env.example")
	t.Setenv("MADAR_QUERY_PAGE_SIZE", "40")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.API.BaseURL)
	assert.Equal(t, 40, cfg.Query.PageSize)
}

func TestLoad_S3NeedsBucket(t *testing.T) {
	path := writeConfig(t, "download:\n  sink: s3\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download.s3.bucket")
}

func TestLoad_InvalidPageSize(t *testing.T) {
	path := writeConfig(t, "query:\n  page_size: 500\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PageSize")
}

func TestLoad_InvalidLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")

	_, err := Load(path)
	require.Error(t, err)
}
