package common

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Each surface is a closed
// struct; unknown TOML keys are rejected at load time.
type Config struct {
	Environment string          `toml:"environment" validate:"omitempty,oneof=development production"`
	AppURL      string          `toml:"app_url"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Discovery   DiscoveryConfig `toml:"discovery"`
	Scanner     ScannerConfig   `toml:"scanner"`
	Email       EmailConfig     `toml:"email"`
	AI          AIConfig        `toml:"ai"`
	Batch       BatchConfig     `toml:"batch"`
	Logging     LoggingConfig   `toml:"logging"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	Badger  BadgerConfig `toml:"badger"`
	Objects string       `toml:"objects"` // report artifact directory
	// ObjectURLSecret signs presigned report URLs.
	ObjectURLSecret string `toml:"object_url_secret"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`
	InMemory       bool   `toml:"in_memory"` // tests only
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// QueueConfig controls the shared job runtime.
type QueueConfig struct {
	Concurrency     int    `toml:"concurrency" validate:"omitempty,min=1"` // workers per queue
	PollInterval    string `toml:"poll_interval"`                          // e.g. "250ms"
	DefaultAttempts int    `toml:"default_attempts" validate:"omitempty,min=1"`
}

// DiscoveryConfig controls the website discovery engine.
type DiscoveryConfig struct {
	MonthlyLimit      int    `toml:"monthly_limit" validate:"omitempty,min=1"`
	MaxConcurrency    int    `toml:"max_concurrency" validate:"omitempty,min=1,max=64"`
	MinRequestDelay   string `toml:"min_request_delay"` // per-origin floor, default 100ms
	FetchTimeout      string `toml:"fetch_timeout"`     // default 30s
	MaxBodySize       int64  `toml:"max_body_size"`     // default 5 MiB
	SitemapMaxURLs    int    `toml:"sitemap_max_urls"`  // default 50000
	SitemapMaxDepth   int    `toml:"sitemap_max_depth"` // default 3
	DefaultMaxPages   int    `toml:"default_max_pages"`
	DefaultMaxDepth   int    `toml:"default_max_depth"`
	ResultCacheTTL    string `toml:"result_cache_ttl"` // default 24h
	UserAgent         string `toml:"user_agent"`
	GlobalRatePerSec  int    `toml:"global_rate_per_sec"` // fetcher throttle
}

// ScannerConfig controls the headless-browser scan processor.
type ScannerConfig struct {
	RenderTimeout string `toml:"render_timeout"` // default 30s
	BrowserPool   int    `toml:"browser_pool" validate:"omitempty,min=1,max=20"`
	Headless      bool   `toml:"headless"`
}

// EmailConfig holds SMTP provider credentials and notification policy.
type EmailConfig struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
	// FastScanThresholdMs suppresses scan_complete emails for scans shorter
	// than this duration. The stored email is still nullified.
	FastScanThresholdMs int64 `toml:"fast_scan_threshold_ms"`
}

// AIConfig holds the batch analyzer defaults and Anthropic credentials.
type AIConfig struct {
	APIKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	BatchSize     int    `toml:"batch_size" validate:"omitempty,min=1"`
	MiniBatchSize int    `toml:"mini_batch_size" validate:"omitempty,min=1,max=10"`
	DelaySeconds  int    `toml:"delay_seconds"`
	TimeoutMs     int64  `toml:"timeout_ms"`
	Retries       int    `toml:"retries" validate:"omitempty,min=0,max=10"`
	CacheTTL      string `toml:"cache_ttl"`
	MaxTokens     int    `toml:"max_tokens"`
}

// BatchConfig controls the batch scheduler and its janitor.
type BatchConfig struct {
	StaleIdleWindow string `toml:"stale_idle_window"` // default 30m
	JanitorSchedule string `toml:"janitor_schedule"`  // cron spec, default "@every 5m"
}

// LoggingConfig mirrors the arbor writer setup.
type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration defaults documented in the
// environment contract.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		AppURL:      "http://localhost:8080",
		Storage: StorageConfig{
			Badger:          BadgerConfig{Path: "./data/badger"},
			Objects:         "./data/objects",
			ObjectURLSecret: "dev-only-secret",
		},
		Queue: QueueConfig{
			Concurrency:     10,
			PollInterval:    "250ms",
			DefaultAttempts: 5,
		},
		Discovery: DiscoveryConfig{
			MonthlyLimit:     3,
			MaxConcurrency:   10,
			MinRequestDelay:  "100ms",
			FetchTimeout:     "30s",
			MaxBodySize:      5 * 1024 * 1024,
			SitemapMaxURLs:   50000,
			SitemapMaxDepth:  3,
			DefaultMaxPages:  100,
			DefaultMaxDepth:  3,
			ResultCacheTTL:   "24h",
			UserAgent:        "AdaScan-Discovery/1.0",
			GlobalRatePerSec: 20,
		},
		Scanner: ScannerConfig{
			RenderTimeout: "30s",
			BrowserPool:   4,
			Headless:      true,
		},
		Email: EmailConfig{
			SMTPPort:            587,
			FromName:            "AdaScan",
			UseTLS:              true,
			FastScanThresholdMs: 30000,
		},
		AI: AIConfig{
			Model:         "claude-sonnet-4-20250514",
			BatchSize:     100,
			MiniBatchSize: 5,
			DelaySeconds:  2,
			TimeoutMs:     180000,
			Retries:       3,
			CacheTTL:      "168h",
			MaxTokens:     8192,
		},
		Batch: BatchConfig{
			StaleIdleWindow: "30m",
			JanitorSchedule: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional TOML file
// and environment overrides, then validates it.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides maps the recognized environment keys onto the config.
// REDIS_HOST/REDIS_PORT are accepted for compatibility but ignored: the
// cache layer is the embedded badger store.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Queue.Concurrency = n
		}
	}
	if v := os.Getenv("APP_URL"); v != "" {
		config.AppURL = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		config.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Email.SMTPPort = n
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		config.Email.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		config.Email.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		config.Email.From = v
	}
	if v := os.Getenv("DISCOVERY_MONTHLY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Discovery.MonthlyLimit = n
		}
	}
	if v := os.Getenv("FAST_SCAN_THRESHOLD_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			config.Email.FastScanThresholdMs = n
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.AI.APIKey = v
	}
	if v := os.Getenv("AI_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.AI.BatchSize = n
		}
	}
	if v := os.Getenv("AI_MINI_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 10 {
			config.AI.MiniBatchSize = n
		}
	}
	if v := os.Getenv("AI_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.AI.DelaySeconds = n
		}
	}
	if v := os.Getenv("AI_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			config.AI.TimeoutMs = n
		}
	}
	if v := os.Getenv("AI_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.AI.Retries = n
		}
	}
}

// Duration helpers with defaults for unset/invalid values.

func (c *DiscoveryConfig) MinRequestDelayDuration() time.Duration {
	return parseDurationOr(c.MinRequestDelay, 100*time.Millisecond)
}

func (c *DiscoveryConfig) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(c.FetchTimeout, 30*time.Second)
}

func (c *DiscoveryConfig) ResultCacheTTLDuration() time.Duration {
	return parseDurationOr(c.ResultCacheTTL, 24*time.Hour)
}

func (c *QueueConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.PollInterval, 250*time.Millisecond)
}

func (c *ScannerConfig) RenderTimeoutDuration() time.Duration {
	return parseDurationOr(c.RenderTimeout, 30*time.Second)
}

func (c *AIConfig) TimeoutDuration() time.Duration {
	if c.TimeoutMs <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *AIConfig) CacheTTLDuration() time.Duration {
	return parseDurationOr(c.CacheTTL, 168*time.Hour)
}

func (c *BatchConfig) StaleIdleWindowDuration() time.Duration {
	return parseDurationOr(c.StaleIdleWindow, 30*time.Minute)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
