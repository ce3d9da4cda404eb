// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Default data files per storage driver when no path is configured.
const (
	DefaultCSVPath    = "data/tasks.csv"
	DefaultSQLitePath = "data/tasks.db"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"TODO_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"TODO_SHUTDOWN_TIMEOUT" env-default:"5s"`
	// Empty disables CORS handling.
	CORSOrigins []string `yaml:"corsOrigins" env:"TODO_CORS_ORIGINS" env-separator:","`
}

// StorageConfig selects the snapshot backend. An empty path is filled with
// the driver's default file.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"TODO_STORAGE" env-default:"csv"`
	Path   string `yaml:"path" env:"TODO_DATA_PATH"`
}

// HistoryConfig bounds the access history.
type HistoryConfig struct {
	// Zero keeps the history unbounded.
	Limit int `yaml:"limit" env:"TODO_HISTORY_LIMIT" env-default:"0"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `yaml:"level" env:"TODO_LOG_LEVEL" env-default:"info"`
}

// Load reads path when set, then applies environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	return Normalize(cfg)
}

// Normalize fills derived defaults, such as the data path for the selected
// driver, and validates the result.
func Normalize(cfg Config) (Config, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "csv":
			c.Storage.Path = DefaultCSVPath
		case "sqlite":
			c.Storage.Path = DefaultSQLitePath
		}
	}
	var origins []string
	for _, o := range c.HTTP.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.CORSOrigins = origins
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http address is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.HTTP.ShutdownTimeout)
	}
	switch c.Storage.Driver {
	case "csv", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q (want csv, sqlite or memory)", c.Storage.Driver)
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history limit must not be negative, got %d", c.History.Limit)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level name (debug, info, warn, error).
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	return level, nil
}
