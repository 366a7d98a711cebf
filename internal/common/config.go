package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	LLM         LLMConfig       `toml:"llm"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	Search      SearchConfig    `toml:"search"`
	Sweep       SweepConfig     `toml:"sweep"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Images string `toml:"images"` // Directory for generated images, served under /media/images/
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "250ms" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// AuthConfig maps bearer tokens to owner IDs. Authentication is a thin
// collaborator here; token issuance lives outside this service.
type AuthConfig struct {
	Enabled bool              `toml:"enabled"`
	Tokens  map[string]string `toml:"tokens"` // token -> owner ID
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	EmbedModelName string `toml:"embed_model_name"`
	ImageModelName string `toml:"image_model_name"`
	Timeout        string `toml:"timeout"`
}

// LLMConfig selects providers and the degradation policy for backend outages.
type LLMConfig struct {
	TextProvider  string  `toml:"text_provider"`       // "claude" or "offline"
	EmbedProvider string  `toml:"embed_provider"`      // "gemini" or "offline"
	ImageProvider string  `toml:"image_provider"`      // "gemini" or "offline"
	Policy        string  `toml:"policy"`              // "fail_soft" or "fail_hard"
	RateLimit     float64 `toml:"rate_limit"`          // LLM calls per second (0 = unlimited)
	RateBurst     int     `toml:"rate_burst"`          // Burst size for the rate limiter
}

type EmbeddingConfig struct {
	Dimension int `toml:"dimension"` // Embedding vector dimension
}

type SearchConfig struct {
	TopK int `toml:"top_k"` // Default number of segments retrieved for context
}

// SweepConfig controls the background re-embedding of segments that were
// persisted with a zero vector while the embedding backend was down.
type SweepConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
	Limit    int    `toml:"limit"`    // Max segments to re-embed per run
}

// PollIntervalDuration parses the queue poll interval with a sane default.
func (q *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(q.PollInterval)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// VisibilityTimeoutDuration parses the queue visibility timeout with a sane default.
func (q *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(q.VisibilityTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// IsFailSoft reports whether degraded backends fall back to placeholder
// output instead of failing the pipeline step.
func (l *LLMConfig) IsFailSoft() bool {
	return l.Policy != "fail_hard"
}

// DefaultConfig returns the built-in defaults applied before any file or
// environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/fabula",
			},
			Filesystem: FilesystemConfig{
				Images: "./data/images",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "250ms",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "fabula",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Auth: AuthConfig{
			Enabled: false,
			Tokens:  map[string]string{},
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Timeout:     "60s",
			MaxTokens:   1024,
			Temperature: 0.8,
		},
		Gemini: GeminiConfig{
			EmbedModelName: "text-embedding-004",
			ImageModelName: "imagen-3.0-generate-002",
			Timeout:        "30s",
		},
		LLM: LLMConfig{
			TextProvider:  "offline",
			EmbedProvider: "offline",
			ImageProvider: "offline",
			Policy:        "fail_soft",
			RateLimit:     2,
			RateBurst:     4,
		},
		Embedding: EmbeddingConfig{
			Dimension: 384,
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "@every 10m",
			Limit:    50,
		},
	}
}

// LoadFromFiles loads configuration with precedence:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority).
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}

// applyEnvOverrides maps FABULA_* environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FABULA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FABULA_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FABULA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FABULA_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("FABULA_LLM_POLICY"); v != "" {
		cfg.LLM.Policy = v
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	switch c.LLM.Policy {
	case "", "fail_soft", "fail_hard":
	default:
		return fmt.Errorf("invalid llm policy %q (expected fail_soft or fail_hard)", c.LLM.Policy)
	}
	if c.Sweep.Enabled && c.Sweep.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Sweep.Schedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", c.Sweep.Schedule, err)
		}
	}
	if strings.TrimSpace(c.Storage.Badger.Path) == "" {
		return fmt.Errorf("storage badger path is required")
	}
	return nil
}
