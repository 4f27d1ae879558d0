package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Editor config
	assert.Equal(t, 600*time.Millisecond, cfg.Editor.DebounceWindow)
	assert.Equal(t, "flat", cfg.Editor.ReconcileMode)
	assert.True(t, cfg.Editor.FlushOnClose)
	assert.Equal(t, "/demo", cfg.Editor.DefaultSlug)

	// Frame config
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Frame.AllowedOrigins)
	assert.Equal(t, 32, cfg.Frame.OutboxSize)

	// Storage config
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.False(t, cfg.Storage.Compress)

	// Importer config
	assert.Equal(t, "[data-block-id]", cfg.Importer.BlockSelector)
	assert.Empty(t, cfg.Importer.BlockXPath)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
		"EDITOR_DEBOUNCE":       "250ms",
		"EDITOR_RECONCILE_MODE": "hierarchical",
		"EDITOR_FLUSH_ON_CLOSE": "false",
		"FRAME_ALLOWED_ORIGINS": "http://a.test,http://b.test",
		"FRAME_MSG_RPS":         "5",
		"STORAGE_BACKEND":       "sqlite",
		"STORAGE_PATH":          "/var/lib/editor/docs.db",
		"STORAGE_COMPRESS":      "true",
		"SITE_ORIGIN":           "https://site.test",
		"IMPORT_BLOCK_XPATH":    "//*[@data-block-id]",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 250*time.Millisecond, cfg.Editor.DebounceWindow)
	assert.Equal(t, "hierarchical", cfg.Editor.ReconcileMode)
	assert.False(t, cfg.Editor.FlushOnClose)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Frame.AllowedOrigins)
	assert.Equal(t, 5, cfg.Frame.MessagesPerSecond)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/editor/docs.db", cfg.Storage.Path)
	assert.True(t, cfg.Storage.Compress)

	assert.Equal(t, "https://site.test", cfg.Importer.SiteOrigin)
	assert.Equal(t, "//*[@data-block-id]", cfg.Importer.BlockXPath)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	err := os.Setenv("PORT", "3000")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	err = os.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, err)
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 600*time.Millisecond, cfg.Editor.DebounceWindow)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadInvalidDuration(t *testing.T) {
	err := os.Setenv("EDITOR_DEBOUNCE", "soon")
	require.NoError(t, err)
	defer os.Unsetenv("EDITOR_DEBOUNCE")

	_, err = Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing
	cfg := LoadOrDefault()
	assert.Equal(t, 600*time.Millisecond, cfg.Editor.DebounceWindow)
}

func TestEditorConfig(t *testing.T) {
	tests := []struct {
		name         string
		debounce     string
		mode         string
		wantDebounce time.Duration
		wantMode     string
	}{
		{
			name:         "default values",
			wantDebounce: 600 * time.Millisecond,
			wantMode:     "flat",
		},
		{
			name:         "short window",
			debounce:     "50ms",
			wantDebounce: 50 * time.Millisecond,
			wantMode:     "flat",
		},
		{
			name:         "hierarchical mode",
			debounce:     "1s",
			mode:         "hierarchical",
			wantDebounce: time.Second,
			wantMode:     "hierarchical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("EDITOR_DEBOUNCE")
			os.Unsetenv("EDITOR_RECONCILE_MODE")

			if tt.debounce != "" {
				os.Setenv("EDITOR_DEBOUNCE", tt.debounce)
				defer os.Unsetenv("EDITOR_DEBOUNCE")
			}
			if tt.mode != "" {
				os.Setenv("EDITOR_RECONCILE_MODE", tt.mode)
				defer os.Unsetenv("EDITOR_RECONCILE_MODE")
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.wantDebounce, cfg.Editor.DebounceWindow)
			assert.Equal(t, tt.wantMode, cfg.Editor.ReconcileMode)
		})
	}
}

func TestStorageConfig(t *testing.T) {
	tests := []struct {
		name        string
		backend     string
		compress    string
		wantBackend string
		wantCompr   bool
	}{
		{"default values", "", "", "file", false},
		{"memory backend", "memory", "", "memory", false},
		{"compressed file", "file", "true", "file", true},
		{"sqlite", "sqlite", "false", "sqlite", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("STORAGE_BACKEND")
			os.Unsetenv("STORAGE_COMPRESS")

			if tt.backend != "" {
				os.Setenv("STORAGE_BACKEND", tt.backend)
				defer os.Unsetenv("STORAGE_BACKEND")
			}
			if tt.compress != "" {
				os.Setenv("STORAGE_COMPRESS", tt.compress)
				defer os.Unsetenv("STORAGE_COMPRESS")
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.wantBackend, cfg.Storage.Backend)
			assert.Equal(t, tt.wantCompr, cfg.Storage.Compress)
		})
	}
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{
			name:        "default values",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			enabled:     "false",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: false,
		},
		{
			name:        "custom limits",
			rps:         "10",
			burst:       "20",
			wantRPS:     10,
			wantBurst:   20,
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("RATE_LIMIT_RPS")
			os.Unsetenv("RATE_LIMIT_BURST")
			os.Unsetenv("RATE_LIMIT_ENABLED")

			if tt.rps != "" {
				os.Setenv("RATE_LIMIT_RPS", tt.rps)
				defer os.Unsetenv("RATE_LIMIT_RPS")
			}
			if tt.burst != "" {
				os.Setenv("RATE_LIMIT_BURST", tt.burst)
				defer os.Unsetenv("RATE_LIMIT_BURST")
			}
			if tt.enabled != "" {
				os.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
				defer os.Unsetenv("RATE_LIMIT_ENABLED")
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}
