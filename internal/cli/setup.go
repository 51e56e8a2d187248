package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/diary/internal/command"
	"github.com/roach88/diary/internal/config"
	"github.com/roach88/diary/internal/engine"
	"github.com/roach88/diary/internal/metrics"
	"github.com/roach88/diary/internal/store"
)

// Error codes reported by CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeConfigLoad    = "E002" // Config file unreadable or unparsable
	ErrCodeConfigInvalid = "E003" // Config fails schema validation
	ErrCodeStoreOpen     = "E004" // Store could not be opened
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeNoResponse    = "E006" // Engine stopped before replying
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeRequestFailed = "E008" // Store rejected the request
	ErrCodeInvalidArgs   = "E009" // Bad command arguments
)

// loadConfig resolves, loads, overlays and validates the configuration.
// Failures are command errors (exit code 2).
func loadConfig(opts *RootOptions) (config.Config, error) {
	path := config.Resolve(opts.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfigLoad+": failed to load config", err)
	}
	config.FromEnv(&cfg)
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfigInvalid+": invalid config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger on w. --verbose forces debug level.
func newLogger(cfg config.Config, verbose bool, w io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler)
}

// runtime is a running engine plus the front door bound to it.
type runtime struct {
	engine   *engine.Engine
	service  *command.Service
	registry *prometheus.Registry
	logger   *slog.Logger
	runErr   chan error
}

// startRuntime opens the store and starts the engine loop. The engine stops
// on Shutdown, on a window close, or when ctx is cancelled.
func startRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	logger.Debug("opening database", "url", cfg.DatabaseURL)
	st, err := store.Open(ctx, cfg.DatabaseURL, store.Options{
		DumpDir:    cfg.DumpDir,
		DumpFormat: cfg.DumpFormat,
		Logger:     logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStoreOpen+": failed to open database", err)
	}

	reg := prometheus.NewRegistry()
	eng := engine.New(st,
		engine.WithQueueSize(cfg.QueueSize),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.NewEngineMetrics(reg)),
	)
	rt := &runtime{
		engine:   eng,
		service:  command.NewService(eng, command.WithTimeout(cfg.RequestTimeout.D()), command.WithLogger(logger)),
		registry: reg,
		logger:   logger,
		runErr:   make(chan error, 1),
	}
	go func() {
		rt.runErr <- eng.Run(ctx)
	}()
	return rt, nil
}

// wait blocks until the engine has stopped and the store is closed.
// A context-triggered stop is not an error.
func (rt *runtime) wait() error {
	err := <-rt.runErr
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return WrapExitError(ExitFailure, "engine error", err)
}

// stop shuts the engine down through its queue and waits for it.
func (rt *runtime) stop(ctx context.Context) error {
	if resp := rt.service.Shutdown(ctx); !resp.OK() {
		rt.logger.Warn("shutdown request failed", "error", resp.Err())
	}
	return rt.wait()
}

// responseCode maps a front door error message to a CLI error code.
func responseCode(msg string) string {
	if msg == engine.ErrNoResponse.Error() {
		return ErrCodeNoResponse
	}
	return ErrCodeRequestFailed
}
