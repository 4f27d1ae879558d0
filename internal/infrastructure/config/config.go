package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Editor    EditorConfig
	Frame     FrameConfig
	Storage   StorageConfig
	Importer  ImporterConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// EditorConfig holds editing session configuration.
type EditorConfig struct {
	DebounceWindow time.Duration `envconfig:"EDITOR_DEBOUNCE" default:"600ms"`
	SaveTimeout    time.Duration `envconfig:"EDITOR_SAVE_TIMEOUT" default:"5s"`
	ReconcileMode  string        `envconfig:"EDITOR_RECONCILE_MODE" default:"flat"`
	FlushOnClose   bool          `envconfig:"EDITOR_FLUSH_ON_CLOSE" default:"true"`
	DefaultSlug    string        `envconfig:"EDITOR_DEFAULT_SLUG" default:"/demo"`
}

// FrameConfig holds the rendered-frame channel configuration.
type FrameConfig struct {
	AllowedOrigins    []string `envconfig:"FRAME_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MessagesPerSecond int      `envconfig:"FRAME_MSG_RPS" default:"50"`
	MessageBurst      int      `envconfig:"FRAME_MSG_BURST" default:"100"`
	OutboxSize        int      `envconfig:"FRAME_OUTBOX_SIZE" default:"32"`
	MaxMessageBytes   int64    `envconfig:"FRAME_MAX_MESSAGE_BYTES" default:"1048576"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend      string `envconfig:"STORAGE_BACKEND" default:"file"`
	Path         string `envconfig:"STORAGE_PATH" default:"/tmp/visual-editor"`
	Compress     bool   `envconfig:"STORAGE_COMPRESS" default:"false"`
	TemplatePath string `envconfig:"STORAGE_TEMPLATE"`
}

// ImporterConfig holds settings for discovering blocks from the live site.
type ImporterConfig struct {
	SiteOrigin    string        `envconfig:"SITE_ORIGIN" default:"http://localhost:3000"`
	Timeout       time.Duration `envconfig:"IMPORT_TIMEOUT" default:"15s"`
	MaxRetries    int           `envconfig:"IMPORT_MAX_RETRIES" default:"2"`
	BlockSelector string        `envconfig:"IMPORT_BLOCK_SELECTOR" default:"[data-block-id]"`
	BlockXPath    string        `envconfig:"IMPORT_BLOCK_XPATH"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Editor: EditorConfig{
			DebounceWindow: 600 * time.Millisecond,
			SaveTimeout:    5 * time.Second,
			ReconcileMode:  "flat",
			FlushOnClose:   true,
			DefaultSlug:    "/demo",
		},
		Frame: FrameConfig{
			AllowedOrigins:    []string{"http://localhost:3000"},
			MessagesPerSecond: 50,
			MessageBurst:      100,
			OutboxSize:        32,
			MaxMessageBytes:   1 << 20,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    "/tmp/visual-editor",
		},
		Importer: ImporterConfig{
			SiteOrigin:    "http://localhost:3000",
			Timeout:       15 * time.Second,
			MaxRetries:    2,
			BlockSelector: "[data-block-id]",
		},
	}
}
