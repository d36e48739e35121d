// Package config handles TOML-based configuration loading with environment
// variable overrides. The config file is optional; every field has a
// default mirroring the service's original behavior.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "1h" parse directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config holds all service configuration.
type Config struct {
	ListenAddr      string   `toml:"listen_addr"`
	DownloadDir     string   `toml:"download_dir"`
	MaxParallel     int      `toml:"max_parallel_downloads"`
	RetentionWindow Duration `toml:"retention_window"`
	SweepInterval   Duration `toml:"sweep_interval"`
	ProbeTimeout    Duration `toml:"probe_timeout"`
	DownloadTimeout Duration `toml:"download_timeout"`
	RateLimit       float64  `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst       int      `toml:"rate_burst"`
	RedisAddr       string   `toml:"redis_addr"` // empty selects the in-memory store
	LogFormat       string   `toml:"log_format"` // "json" or "text"
	LogLevel        string   `toml:"log_level"`  // "debug", "info", "warn", "error"
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		DownloadDir:     "downloads",
		MaxParallel:     4,
		RetentionWindow: Duration{time.Hour},
		SweepInterval:   Duration{time.Hour},
		ProbeTimeout:    Duration{60 * time.Second},
		DownloadTimeout: Duration{30 * time.Minute},
		RateLimit:       50,
		RateBurst:       100,
		RedisAddr:       "",
		LogFormat:       "json",
		LogLevel:        "info",
	}
}

// Load reads the config file at path and merges it over the defaults, then
// applies environment overrides. A missing file is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides file values with environment variables when set.
func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("MAX_PARALLEL_DOWNLOADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxParallel = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.MaxParallel < 1 || c.MaxParallel > 64 {
		return fmt.Errorf("max_parallel_downloads %d out of range (valid: 1-64)", c.MaxParallel)
	}
	if c.RetentionWindow.Duration <= 0 {
		return fmt.Errorf("retention_window must be positive")
	}
	if c.SweepInterval.Duration <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("unsupported log_format %q (valid: json, text)", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log_level %q (valid: debug, info, warn, error)", s)
	}
}
