// Package config loads runtime settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Seed     int64  `yaml:"seed"` // 0 = unseeded
	LogLevel string `yaml:"log_level"`

	Oracle struct {
		APIKey       string        `yaml:"api_key"`
		Model        string        `yaml:"model"`
		Timeout      time.Duration `yaml:"timeout"`
		MinInterval  time.Duration `yaml:"min_interval"`
		MaxPerMinute int           `yaml:"max_per_minute"`
	} `yaml:"oracle"`

	Driver struct {
		Every     time.Duration `yaml:"every"`
		AutoStart bool          `yaml:"auto_start"`
	} `yaml:"driver"`

	HTTP struct {
		Port      int    `yaml:"port"`
		AdminKey  string `yaml:"admin_key"`
		AdminRate int    `yaml:"admin_rate"` // Admin requests per IP per minute
	} `yaml:"http"`

	History struct {
		SQLitePath string `yaml:"sqlite_path"` // Empty disables the SQLite sink
		ArchiveDir string `yaml:"archive_dir"` // Empty disables the zstd archive
	} `yaml:"history"`

	Entropy struct {
		RandomOrgKey string `yaml:"random_org_key"`
	} `yaml:"entropy"`
}

// DefaultPath is read when ECONSIM_CONFIG is unset. A missing file is not
// an error.
const DefaultPath = "econsim.yaml"

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. An empty path uses ECONSIM_CONFIG or DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ECONSIM_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("ECONSIM_ADMIN_KEY"); v != "" {
		cfg.HTTP.AdminKey = v
	}
	if v := os.Getenv("RANDOM_ORG_API_KEY"); v != "" {
		cfg.Entropy.RandomOrgKey = v
	}
	if v := os.Getenv("ECONSIM_SQLITE_PATH"); v != "" {
		cfg.History.SQLitePath = v
	}
	if v := os.Getenv("ECONSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ECONSIM_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}

	// Defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 60 * time.Second
	}
	if cfg.Oracle.MinInterval == 0 {
		cfg.Oracle.MinInterval = 3 * time.Second
	}
	if cfg.Oracle.MaxPerMinute == 0 {
		cfg.Oracle.MaxPerMinute = 20
	}
	if cfg.Driver.Every == 0 {
		cfg.Driver.Every = time.Minute
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.AdminRate == 0 {
		cfg.HTTP.AdminRate = 60
	}

	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Oracle.Timeout < 0 {
		return fmt.Errorf("oracle.timeout must not be negative")
	}
	if c.Oracle.MinInterval < 0 {
		return fmt.Errorf("oracle.min_interval must not be negative")
	}
	if c.Oracle.MaxPerMinute < 0 {
		return fmt.Errorf("oracle.max_per_minute must not be negative")
	}
	if c.Driver.Every < time.Second {
		return fmt.Errorf("driver.every must be at least 1s, got %s", c.Driver.Every)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.AdminRate < 0 {
		return fmt.Errorf("http.admin_rate must not be negative")
	}
	return nil
}

// ParseLevel maps a log_level value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}
