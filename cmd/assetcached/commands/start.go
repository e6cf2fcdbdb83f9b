package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cachegrid/assetcache/internal/config"
	"github.com/cachegrid/assetcache/internal/logger"
	"github.com/cachegrid/assetcache/pkg/api"
	"github.com/cachegrid/assetcache/pkg/engine"
	engfs "github.com/cachegrid/assetcache/pkg/engine/fs"
	"github.com/cachegrid/assetcache/pkg/engine/memory"
	"github.com/cachegrid/assetcache/pkg/metrics"
	"github.com/cachegrid/assetcache/pkg/persistence/badger"
	"github.com/cachegrid/assetcache/pkg/persistence/noop"
	"github.com/cachegrid/assetcache/pkg/persistence/s3"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the assetcached server",
	Long: `Start the assetcached server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/assetcache/config.yaml.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out, closeOut, err := openLogOutput(cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	defer closeOut()

	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New()

	eng, err := buildEngine(ctx, cfg, reg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		if err := eng.Shutdown(context.Background()); err != nil {
			logger.Error("engine shutdown error", "error", err)
		}
	}()

	logger.InfoCtx(ctx, "assetcached starting",
		"engine_backend", cfg.Engine.Backend,
		"reliability_enabled", cfg.Reliability.Enabled,
		"persistence_adapter", cfg.Persistence.Adapter,
	)

	apiServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.NewRouter(eng),
		ReadHeaderTimeout: cfg.API.ReadHeaderTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           reg.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	serverDone := make(chan error, 2)
	go func() { serverDone <- serveIgnoringClosed(apiServer) }()
	if metricsServer != nil {
		go func() { serverDone <- serveIgnoringClosed(metricsServer) }()
		logger.InfoCtx(ctx, "metrics server listening", "addr", cfg.Metrics.Addr)
	}
	logger.InfoCtx(ctx, "api server listening", "addr", cfg.API.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.InfoCtx(ctx, "shutdown signal received, initiating graceful shutdown")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = apiServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		cancel()
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

// openLogOutput resolves the configured log destination to a writer. The
// returned close func is a no-op for stdout/stderr, since those are not
// ours to close.
func openLogOutput(dest string) (io.Writer, func(), error) {
	switch dest {
	case "", "stdout":
		return os.Stdout, func() {}, nil
	case "stderr":
		return os.Stderr, func() {}, nil
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
}

func serveIgnoringClosed(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildEngine constructs the configured backend, wraps it with metrics
// instrumentation, then the reliability filter (if enabled), so the
// instrumentation observes what the reliability filter actually admits.
func buildEngine(ctx context.Context, cfg *config.Config, reg *metrics.Registry) (engine.Engine, error) {
	adapter, err := buildAdapter(cfg.Persistence)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		CachePath:          cfg.Engine.CachePath,
		PageSize:           cfg.Engine.PageSize,
		MinFreeBlockSize:   cfg.Engine.MinFreeBlockSize,
		PersistenceOptions: engine.PersistenceOptions{Adapter: adapter},
	}

	var eng engine.Engine
	switch cfg.Engine.Backend {
	case "fs":
		eng = engfs.New()
	default:
		eng = memory.New()
	}
	if err := eng.Init(ctx, opts); err != nil {
		return nil, err
	}

	eng = engine.WithMetrics(eng, reg)
	if cfg.Reliability.Enabled {
		eng = engine.WithReliability(eng, cfg.Reliability.Threshold, reg)
	}

	return eng, nil
}

func buildAdapter(cfg config.PersistenceConfig) (engine.Adapter, error) {
	switch cfg.Adapter {
	case "badger":
		return badger.Open(cfg.BadgerPath)
	case "s3":
		return s3.NewFromEnv(context.Background(), s3.Config{Bucket: cfg.S3Bucket, Key: cfg.S3Key})
	default:
		return noop.New(), nil
	}
}
