package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StorePostgres, cfg.RBACStore)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 10, cfg.LoginRateLimitPerMinute)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.False(t, cfg.MigrateOnStart)
	assert.False(t, cfg.UsesMemoryStore())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromDotEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RATE_LIMIT_PER_MINUTE=15\nSESSION_PRUNE_CRON=@every 5m\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("RATE_LIMIT_PER_MINUTE")
		_ = os.Unsetenv("SESSION_PRUNE_CRON")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.RateLimitPerMinute)
	assert.Equal(t, "@every 5m", cfg.SessionPruneCron)
}

func TestLoadConfigEnvironmentWinsOverDotEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("APP_ADDR", ":9999")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ADDR=:7000\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.AppAddr)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("RBAC_STORE", "sqlite")
		_, err := LoadConfig(missingEnvFile(t))
		assert.ErrorContains(t, err, "RBAC_STORE")
	})
	t.Run("memory store normalised", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("RBAC_STORE", " Memory ")
		cfg, err := LoadConfig(missingEnvFile(t))
		require.NoError(t, err)
		assert.True(t, cfg.UsesMemoryStore())
	})
	t.Run("rate limit", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
		_, err := LoadConfig(missingEnvFile(t))
		assert.Error(t, err)
	})
	t.Run("secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		_, err := LoadConfig(missingEnvFile(t))
		assert.Error(t, err)
	})
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
	var nilCfg *Config
	assert.Equal(t, slog.LevelInfo, nilCfg.SlogLevel())
}
