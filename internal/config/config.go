package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DatabaseURL selects the store: sqlite://<file> or pebble://<dir>.
	DatabaseURL string `json:"database_url" yaml:"database_url"`

	// QueueSize is the capacity of the engine's request mailbox.
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// RequestTimeout bounds each front door call. Zero waits forever.
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	DumpDir    string `json:"dump_dir" yaml:"dump_dir"`
	DumpFormat string `json:"dump_format" yaml:"dump_format"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	// MetricsAddr is the listen address for /metrics. Empty disables it.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DatabaseURL: "sqlite://diary.db",
		QueueSize:   32,
		DumpDir:     "dumps",
		DumpFormat:  "json",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration written as a Go duration string ("5s") in
// config files.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
