package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays DIARY_* environment variables onto cfg. Values that do
// not parse are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DIARY_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DIARY_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueSize = n
		}
	}
	if v := os.Getenv("DIARY_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = Duration(d)
		}
	}
	if v := os.Getenv("DIARY_DUMP_DIR"); v != "" {
		cfg.DumpDir = v
	}
	if v := os.Getenv("DIARY_DUMP_FORMAT"); v != "" {
		cfg.DumpFormat = v
	}
	if v := os.Getenv("DIARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DIARY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("DIARY_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
}
