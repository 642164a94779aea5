package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
	"github.com/alucardeht/birdwatch-mcp/internal/twitter"
)

var ErrMissingToken = errors.New("TWITTER_BEARER_TOKEN is not set")

type Config struct {
	BearerToken       string                `yaml:"bearer_token" env:"TWITTER_BEARER_TOKEN"`
	APIBaseURL        string                `yaml:"api_base_url" env:"BIRDWATCH_API_BASE_URL"`
	RequestTimeout    time.Duration         `yaml:"request_timeout" env:"BIRDWATCH_REQUEST_TIMEOUT"`
	InvocationTimeout time.Duration         `yaml:"invocation_timeout" env:"BIRDWATCH_INVOCATION_TIMEOUT"`
	CachePath         string                `yaml:"cache_path" env:"BIRDWATCH_CACHE_PATH"`
	UserCacheTTL      time.Duration         `yaml:"user_cache_ttl" env:"BIRDWATCH_USER_CACHE_TTL"`
	EnabledTools      []string              `yaml:"enabled_tools" env:"BIRDWATCH_ENABLED_TOOLS" envSeparator:","`
	LogLevel          string                `yaml:"log_level" env:"BIRDWATCH_LOG_LEVEL"`
	LogFormat         string                `yaml:"log_format" env:"BIRDWATCH_LOG_FORMAT"`
	OTelEndpoint      string                `yaml:"otel_endpoint" env:"BIRDWATCH_OTEL_ENDPOINT"`
	Circuit           twitter.CircuitConfig `yaml:"circuit" envPrefix:"BIRDWATCH_CIRCUIT_"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		APIBaseURL:        twitter.DefaultBaseURL,
		RequestTimeout:    15 * time.Second,
		InvocationTimeout: 4 * time.Minute,
		CachePath:         filepath.Join(homeDir, ".birdwatch", "cache.db"),
		UserCacheTTL:      15 * time.Minute,
		EnabledTools:      []string{"*"},
		LogLevel:          "info",
		LogFormat:         "text",
		Circuit:           twitter.DefaultCircuitConfig(),
	}
}

// Load layers the defaults, the YAML file at path (if any) and the environment,
// in that order. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.CachePath = expandHome(cfg.CachePath)
	return cfg, nil
}

// Validate checks everything except the bearer token, which only commands that
// reach the API need. See RequireToken.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log_format: must be text or json, got %q", c.LogFormat))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api_base_url: invalid url %q", c.APIBaseURL))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout: must be positive"))
	}
	if c.InvocationTimeout < 0 {
		errs = append(errs, fmt.Errorf("invocation_timeout: must not be negative"))
	}
	if c.UserCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("user_cache_ttl: must not be negative"))
	}

	if len(c.EnabledTools) == 0 {
		errs = append(errs, fmt.Errorf("enabled_tools: at least one pattern is required"))
	}
	for _, pattern := range c.EnabledTools {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("enabled_tools: invalid pattern %q", pattern))
		}
	}

	if c.Circuit.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("circuit.open_timeout: must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.BearerToken) == "" {
		return ErrMissingToken
	}
	return nil
}

// CacheEnabled reports whether user lookups should go through the sqlite cache.
func (c *Config) CacheEnabled() bool {
	return c.UserCacheTTL > 0 && c.CachePath != ""
}

func (c *Config) EnsureDirectories() error {
	if !c.CacheEnabled() {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.CachePath), 0700)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
