package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/credmock/internal/keychain"
)

// Sink names accepted in the sinks list.
const (
	SinkLog        = "log"
	SinkAudit      = "audit"
	SinkPrometheus = "prometheus"
	SinkCounter    = "counter"
)

// Config holds CLI configuration loaded from ~/.credmock/config.yaml.
type Config struct {
	// FindStatus is the initial find status of mocks created by the CLI.
	FindStatus keychain.Status `yaml:"find_status"`
	AuditLog   string          `yaml:"audit_log"`
	Sinks      []string        `yaml:"sinks"`
	LogLevel   string          `yaml:"log_level"`
}

// DefaultPath returns the default config file path: ~/.credmock/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".credmock", "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns an empty Config and no error. An empty or all-comment file
// also returns an empty Config with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that sink names and the log level are known.
func (c *Config) Validate() error {
	for _, s := range c.Sinks {
		switch s {
		case SinkLog, SinkPrometheus, SinkCounter:
			// ok
		case SinkAudit:
			if c.AuditLog == "" {
				return fmt.Errorf("sink %q requires audit_log", SinkAudit)
			}
		default:
			return fmt.Errorf("unknown sink %q: must be one of log, audit, prometheus, counter", s)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", c.LogLevel)
}

// HasSink reports whether name is listed in Sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
