package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erauner12/tasksync/internal/app"
	"github.com/erauner12/tasksync/internal/config"
	"github.com/erauner12/tasksync/internal/httpapi"
	"github.com/erauner12/tasksync/internal/logging"
	"github.com/rs/zerolog/log"
)

const (
	version = "0.1.0"
)

var (
	configPath  = flag.String("config", os.Getenv("TASKSYNC_CONFIG"), "Path to configuration file (JSON or TOML)")
	showVersion = flag.Bool("version", false, "Show version information")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	listen      = flag.String("listen", "", "Control API listen address")
	noAutoSync  = flag.Bool("no-auto-sync", false, "Disable the periodic sync timer")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("tasksyncd version %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(cfg.Log, cfg.Debug, "tasksyncd")
	defer logCloser.Close()

	log.Info().
		Str("version", version).
		Str("apiBaseUrl", cfg.APIBaseURL).
		Str("store", cfg.Store.Driver).
		Str("credentials", cfg.Credentials.Source).
		Bool("autoSync", cfg.Sync.AutoSync).
		Msg("starting tasksync daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("daemon failed")
		os.Exit(1)
	}

	log.Info().Msg("daemon stopped")
}

// loadConfig loads the configuration from file and environment, then applies
// flag overrides before validating
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *debug {
		cfg.Debug = true
		if *logLevel == "" {
			cfg.Log.Level = "debug"
		}
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *noAutoSync {
		cfg.Sync.AutoSync = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing store")
		}
	}()

	// A previous process may have died mid-run.
	if _, err := a.Queue.RecoverStale(ctx); err != nil {
		return fmt.Errorf("recover sync queue: %w", err)
	}

	go a.Monitor.Run(ctx, cfg.Sync.ProbeInterval.Duration)

	if cfg.Sync.AutoSync {
		a.Scheduler.StartAutoSync(ctx, cfg.Sync.Interval.Duration)
	}

	srv := &httpapi.Server{
		Tracker:   a.Tracker,
		Engine:    a.Engine,
		Queue:     a.Queue,
		Scheduler: a.Scheduler,
	}
	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("starting control API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully...")
	case err := <-errCh:
		return fmt.Errorf("control API failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	return nil
}
