package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.twitter.com", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4*time.Minute, cfg.InvocationTimeout)
	assert.Equal(t, 15*time.Minute, cfg.UserCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.EnabledTools)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.True(t, cfg.CacheEnabled())
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.RequireToken(), ErrMissingToken)
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "birdwatch.yaml")
	writeFile(t, path, `
api_base_url: http://localhost:9999
request_timeout: 3s
log_level: debug
enabled_tools:
  - search_tweets
  - health
circuit:
  failure_threshold: 9
  open_timeout: 1m
`)

	t.Setenv("TWITTER_BEARER_TOKEN", "secret")
	t.Setenv("BIRDWATCH_LOG_LEVEL", "warn")
	t.Setenv("BIRDWATCH_CIRCUIT_SUCCESS_THRESHOLD", "4")
	t.Setenv("BIRDWATCH_USER_CACHE_TTL", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.BearerToken)
	assert.Equal(t, "http://localhost:9999", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4*time.Minute, cfg.InvocationTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"search_tweets", "health"}, cfg.EnabledTools)
	assert.Equal(t, 9, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 4, cfg.Circuit.SuccessThreshold)
	assert.Equal(t, time.Minute, cfg.Circuit.OpenTimeout)
	assert.False(t, cfg.CacheEnabled())
	assert.NoError(t, cfg.RequireToken())
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("BIRDWATCH_ENABLED_TOOLS", "get_user_*,health")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_user_*", "health"}, cfg.EnabledTools)
}

func TestLoadExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BIRDWATCH_CACHE_PATH", "~/cache/users.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache", "users.db"), cfg.CachePath)

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(home, "cache"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "request_timeout: [not, a, duration]\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("BIRDWATCH_REQUEST_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"base url", func(c *Config) { c.APIBaseURL = "ftp://x" }, "api_base_url"},
		{"request timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"invocation timeout", func(c *Config) { c.InvocationTimeout = -time.Second }, "invocation_timeout"},
		{"cache ttl", func(c *Config) { c.UserCacheTTL = -time.Second }, "user_cache_ttl"},
		{"no tools", func(c *Config) { c.EnabledTools = nil }, "enabled_tools"},
		{"bad pattern", func(c *Config) { c.EnabledTools = []string{"[x"} }, "invalid pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	d.Stop()
	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchReloadsLogLevel(t *testing.T) {
	logger.SetLevel(slog.LevelInfo)
	t.Cleanup(func() { logger.SetLevel(slog.LevelInfo) })

	path := filepath.Join(t.TempDir(), "birdwatch.yaml")
	writeFile(t, path, "log_level: info\n")

	var reloads atomic.Int32
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config) {
		reloads.Add(1)
		ApplyLogLevel(cfg)
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	writeFile(t, path, "log_level: debug\n")
	assert.Eventually(t, func() bool { return logger.Level() == slog.LevelDebug }, 2*time.Second, 10*time.Millisecond)

	before := reloads.Load()
	writeFile(t, path, "log_level: [broken\n")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, reloads.Load())
	assert.Equal(t, slog.LevelDebug, logger.Level())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
