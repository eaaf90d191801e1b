// Package config provides the configuration structure for the trackr CLI
// and API server, read from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// Config represents the full trackr configuration file.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Store  StoreConfig  `yaml:"store"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
	Serve  ServeConfig  `yaml:"serve"`
}

// APIConfig holds catalog service client settings.
type APIConfig struct {
	BaseURL   string        `yaml:"base-url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache-ttl"`
	UserAgent string        `yaml:"user-agent,omitempty"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig controls retries of server errors and timeouts. Attempts
// counts the first request.
type RetryConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// FetchConfig holds request pacing settings.
type FetchConfig struct {
	RequirementDelay time.Duration `yaml:"requirement-delay"`
	DocumentDelay    time.Duration `yaml:"document-delay"`
	CCIDelay         time.Duration `yaml:"cci-delay"`
	CCIConcurrency   int           `yaml:"cci-concurrency"`
}

// StoreConfig holds the SQLite document store location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ExportConfig holds batch export destinations.
type ExportConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3,omitempty"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"access-key,omitempty"`
	SecretKey string `yaml:"secret-key,omitempty"`
	UseSSL    bool   `yaml:"use-ssl,omitempty"`
}

// Enabled reports whether an S3 destination is configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServeConfig holds local API server settings.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// NewDefaultConfig returns a Config populated with safe defaults.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  trackr.DefaultBaseURL,
			Timeout:  30 * time.Second,
			CacheTTL: 60 * time.Second,
			Retry: RetryConfig{
				Attempts: 1,
				Delay:    500 * time.Millisecond,
			},
		},
		Fetch: FetchConfig{
			RequirementDelay: 100 * time.Millisecond,
			DocumentDelay:    time.Second,
			CCIDelay:         100 * time.Millisecond,
			CCIConcurrency:   1,
		},
		Store: StoreConfig{
			Path: "trackr.db",
		},
		Export: ExportConfig{
			Dir: "stigs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	// Secrets may be present.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env.local and .env from the working directory when
// present. Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

// ApplyEnv overrides settings from TRACKR_* variables looked up with
// lookup (os.LookupEnv outside tests).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("TRACKR_BASE_URL", &c.API.BaseURL)
	str("TRACKR_USER_AGENT", &c.API.UserAgent)
	str("TRACKR_STORE", &c.Store.Path)
	str("TRACKR_EXPORT_DIR", &c.Export.Dir)
	str("TRACKR_LOG_LEVEL", &c.Log.Level)
	str("TRACKR_LOG_FORMAT", &c.Log.Format)
	str("TRACKR_ADDR", &c.Serve.Addr)
	str("TRACKR_S3_ENDPOINT", &c.Export.S3.Endpoint)
	str("TRACKR_S3_BUCKET", &c.Export.S3.Bucket)
	str("TRACKR_S3_PREFIX", &c.Export.S3.Prefix)
	str("TRACKR_S3_ACCESS_KEY", &c.Export.S3.AccessKey)
	str("TRACKR_S3_SECRET_KEY", &c.Export.S3.SecretKey)

	if v, ok := lookup("TRACKR_S3_USE_SSL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACKR_S3_USE_SSL: %w", err)
		}
		c.Export.S3.UseSSL = b
	}
	if err := dur("TRACKR_TIMEOUT", &c.API.Timeout); err != nil {
		return err
	}
	if err := dur("TRACKR_CACHE_TTL", &c.API.CacheTTL); err != nil {
		return err
	}
	if err := dur("TRACKR_REQUIREMENT_DELAY", &c.Fetch.RequirementDelay); err != nil {
		return err
	}
	return dur("TRACKR_DOCUMENT_DELAY", &c.Fetch.DocumentDelay)
}

// ClientOptions converts the api section into client options.
func (c *Config) ClientOptions() []trackr.Option {
	opts := []trackr.Option{
		trackr.WithBaseURL(c.API.BaseURL),
		trackr.WithTimeout(c.API.Timeout),
		trackr.WithCacheTTL(c.API.CacheTTL),
		trackr.WithRetry(c.API.Retry.Attempts, c.API.Retry.Delay),
	}
	if c.API.UserAgent != "" {
		opts = append(opts, trackr.WithUserAgent(c.API.UserAgent))
	}
	return opts
}
