// Package main implements the tasksync admin CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/erauner12/tasksync/internal/app"
	"github.com/erauner12/tasksync/internal/config"
	"github.com/erauner12/tasksync/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	rootConfigPath string
	rootDebug      bool
	rootJSON       bool
)

var rootCmd = &cobra.Command{
	Use:           "tasksync",
	Short:         "Inspect and drive the offline task sync core",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", os.Getenv("TASKSYNC_CONFIG"), "Path to configuration file (JSON or TOML)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&rootJSON, "json", false, "Print JSON instead of tables")
}

// loadConfig reads configuration and sets up logging for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		return nil, err
	}
	if rootDebug {
		cfg.Debug = true
		cfg.Log.Level = "debug"
	} else if cfg.Log.Level == "info" {
		// Keep command output clean unless asked.
		cfg.Log.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	logging.Setup(cfg.Log, cfg.Debug, "tasksync")
	return cfg, nil
}

// openApp loads configuration and wires the sync core. The caller must Close it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
