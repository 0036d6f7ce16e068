package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"DB_TYPE", "DB_DSN", "BADGER_PATH", "HTTP_ADDR", "LOG_LEVEL", "TELEGRAM_BOT_TOKEN",
		"ENABLE_SCHEDULER", "NOTIFICATION_START_HOUR", "NOTIFICATION_END_HOUR",
		"MAX_INTERVAL_DAYS", "PROFILE_CACHE_SIZE", "DUE_THRESHOLD",
	} {
		t.Setenv(name, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestDefaultConfigKeepsProfilesWithoutExpiry(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, cfg.Engine.ProfileCacheSize)
	assert.Zero(t, cfg.Engine.ProfileCacheTTL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: badger
  badger_path: /tmp/engine
engine:
  due_threshold: 0.8
  profile_cache_ttl: 10m
scheduler:
  enabled: true
  telegram_token: abc
  chat_ids:
    alice: 42
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Database.Driver)
	assert.Equal(t, "/tmp/engine", cfg.Database.BadgerPath)
	assert.Equal(t, 0.8, cfg.Engine.DueThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Engine.ProfileCacheTTL)
	assert.Equal(t, 365, cfg.Engine.MaxIntervalDays, "unset fields keep defaults")
	assert.Equal(t, int64(42), cfg.Scheduler.ChatIDs["alice"])
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/learn")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ENABLE_SCHEDULER", "true")
	t.Setenv("NOTIFICATION_START_HOUR", "8")
	t.Setenv("NOTIFICATION_END_HOUR", "20")
	t.Setenv("DUE_THRESHOLD", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/learn", cfg.Database.DSN)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "token", cfg.Scheduler.TelegramToken)
	assert.Equal(t, 8, cfg.Scheduler.StartHour)
	assert.Equal(t, 20, cfg.Scheduler.EndHour)
	assert.Equal(t, 0.5, cfg.Engine.DueThreshold)
}

func TestEnvOverrides_BadNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTIFICATION_START_HOUR", "nine")
	_, err := Load("")
	assert.ErrorContains(t, err, "NOTIFICATION_START_HOUR")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"sql without dsn", func(c *Config) { c.Database.DSN = "" }},
		{"badger without path", func(c *Config) { c.Database.Driver = "badger"; c.Database.BadgerPath = "" }},
		{"threshold above one", func(c *Config) { c.Engine.DueThreshold = 1.5 }},
		{"end before start", func(c *Config) { c.Scheduler.StartHour = 22; c.Scheduler.EndHour = 8 }},
		{"scheduler without token", func(c *Config) { c.Scheduler.Enabled = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.HTTP.Addr = ":9090"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", loaded.HTTP.Addr)
}
