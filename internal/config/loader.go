// Package config loads daemon and CLI settings from a JSON or TOML file with
// TASKSYNC_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from a file path and applies environment variable overrides
// Validation is deferred to allow CLI flag overrides to be applied first
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	// Call cfg.Validate() after applying CLI overrides in the caller
	return cfg, nil
}

// loadFromFile decodes path over cfg; keys absent from the file keep their defaults.
// Files ending in .toml are TOML, everything else JSON.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
		}
		return nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	return nil
}

// applyEnvironmentOverrides applies configuration from environment variables
func applyEnvironmentOverrides(cfg *Config) error {
	if v := os.Getenv("TASKSYNC_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("TASKSYNC_LISTEN"); v != "" {
		cfg.Listen = v
	}

	if v := os.Getenv("TASKSYNC_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TASKSYNC_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	if v := os.Getenv("TASKSYNC_CREDENTIAL_SOURCE"); v != "" {
		cfg.Credentials.Source = v
	}
	if v := os.Getenv("TASKSYNC_CREDENTIAL_FILE"); v != "" {
		cfg.Credentials.File = v
	}
	if v := os.Getenv("TASKSYNC_KEYRING_ACCOUNT"); v != "" {
		cfg.Credentials.Account = v
	}
	// A token in the environment wins over any stored credential.
	if v := os.Getenv("TASKSYNC_TOKEN"); v != "" {
		cfg.Credentials.Source = CredentialEnv
		cfg.Credentials.Token = v
	}

	if v := os.Getenv("TASKSYNC_AUTO_SYNC"); v != "" {
		cfg.Sync.AutoSync = v == "true" || v == "1"
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TASKSYNC_SYNC_INTERVAL", &cfg.Sync.Interval.Duration},
		{"TASKSYNC_REQUEST_TIMEOUT", &cfg.Sync.RequestTimeout.Duration},
		{"TASKSYNC_PROBE_INTERVAL", &cfg.Sync.ProbeInterval.Duration},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("TASKSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TASKSYNC_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("TASKSYNC_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	return nil
}
