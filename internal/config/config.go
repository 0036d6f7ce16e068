// Package config loads the engine configuration from defaults, an optional YAML
// file, an optional .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is sqlite3, postgres or badger.
	Driver string `yaml:"driver" validate:"oneof=sqlite3 postgres badger"`
	// DSN is the SQL data source name.
	DSN string `yaml:"dsn" validate:"required_unless=Driver badger"`
	// BadgerPath is the data directory of the embedded store.
	BadgerPath string `yaml:"badger_path" validate:"required_if=Driver badger"`
}

// EngineConfig tunes the scheduling and profile components.
type EngineConfig struct {
	DueThreshold    float64 `yaml:"due_threshold" validate:"gt=0,lte=1"`
	MaxIntervalDays int     `yaml:"max_interval_days" validate:"gte=1"`
	// ProfileCacheSize bounds the profile cache. Zero, the default, keeps every profile.
	ProfileCacheSize int `yaml:"profile_cache_size" validate:"gte=0"`
	// ProfileCacheTTL expires cached profiles. Zero, the default, disables expiry.
	ProfileCacheTTL    time.Duration `yaml:"profile_cache_ttl" validate:"gte=0"`
	RebuildConcurrency int           `yaml:"rebuild_concurrency" validate:"gte=1"`
}

// SchedulerConfig controls the due-review reminder sweep.
type SchedulerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes" validate:"gte=1"`
	// Reminders are only sent between StartHour and EndHour inclusive.
	StartHour int `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int `yaml:"end_hour" validate:"gte=0,lte=23,gtefield=StartHour"`
	// DueLimit caps the count announced in one reminder.
	DueLimit      int    `yaml:"due_limit" validate:"gte=1"`
	TelegramToken string `yaml:"telegram_token" validate:"required_if=Enabled true"`
	// ChatIDs maps user IDs to Telegram chat IDs. Numeric user IDs are used as is.
	ChatIDs map[string]int64 `yaml:"chat_ids"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     "sqlite3",
			DSN:        filepath.Join("data", "learnengine.db"),
			BadgerPath: filepath.Join("data", "badger"),
		},
		Engine: EngineConfig{
			DueThreshold:       0.7,
			MaxIntervalDays:    365,
			RebuildConcurrency: 4,
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 60,
			StartHour:       9,
			EndHour:         21,
			DueLimit:        20,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A missing YAML file or .env file is not an error;
// an empty path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("BADGER_PATH"); v != "" {
		c.Database.BadgerPath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Scheduler.TelegramToken = v
	}
	if v := os.Getenv("ENABLE_SCHEDULER"); v != "" {
		c.Scheduler.Enabled = v != "false"
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"NOTIFICATION_START_HOUR", &c.Scheduler.StartHour},
		{"NOTIFICATION_END_HOUR", &c.Scheduler.EndHour},
		{"MAX_INTERVAL_DAYS", &c.Engine.MaxIntervalDays},
		{"PROFILE_CACHE_SIZE", &c.Engine.ProfileCacheSize},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("DUE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DUE_THRESHOLD: %w", err)
		}
		c.Engine.DueThreshold = f
	}
	return nil
}
