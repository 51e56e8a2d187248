package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/diary/internal/host"
	"github.com/roach88/diary/internal/metrics"
)

// bridgeDrainTimeout bounds how long serve waits for the bridge to finish
// writing replies once the engine has stopped.
const bridgeDrainTimeout = time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and answer commands on stdin/stdout",
		Long: `Open the store, start the engine and serve newline-delimited JSON
commands from stdin. Each reply is one JSON line on stdout; logs go to stderr.

Commands look like:
  {"id":"1","cmd":"create_entry","args":{"content":"hello","pinned":true}}
  {"id":"2","cmd":"read_entries","args":{"page":1,"per_page":10,"sort":"DESC"}}
  {"id":"3","cmd":"shutdown"}

End of input, SIGINT and SIGTERM count as a window close: the engine is
signalled out of band and the process exits once the store is closed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	rt, err := startRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, rt, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	bridge := host.NewBridge(rt.engine, rt.service, cmd.OutOrStdout(), logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, closing window", "signal", sig)
			bridge.Lifecycle().CloseRequested()
		case <-rt.engine.Done():
		}
	}()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		if err := bridge.Serve(ctx, cmd.InOrStdin()); err != nil {
			logger.Error("bridge stopped", "error", err)
		}
	}()

	logger.Info("engine started", "db", cfg.DatabaseURL, "queue_size", cfg.QueueSize)

	runErr := rt.wait()

	select {
	case <-bridgeDone:
	case <-time.After(bridgeDrainTimeout):
		logger.Debug("bridge still reading input after engine stop")
	}
	return runErr
}

func serveMetrics(addr string, rt *runtime, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(rt.registry))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
