package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/erauner12/tasksync/internal/kv"
)

// Config holds all configuration for the sync daemon and CLI
type Config struct {
	APIBaseURL  string            `json:"apiBaseUrl" toml:"api_base_url"`
	Listen      string            `json:"listen" toml:"listen"` // control API address
	Store       StoreConfig       `json:"store" toml:"store"`
	Credentials CredentialsConfig `json:"credentials" toml:"credentials"`
	Sync        SyncConfig        `json:"sync" toml:"sync"`
	Log         LogConfig         `json:"log" toml:"log"`
	Debug       bool              `json:"debug" toml:"debug"`
}

// StoreConfig selects the local key-value backend
type StoreConfig struct {
	Driver string `json:"driver" toml:"driver"` // memory, sqlite, postgres
	DSN    string `json:"dsn" toml:"dsn"`       // file path for sqlite, URL for postgres
}

// Credential sources
const (
	CredentialKeyring = "keyring"
	CredentialFile    = "file"
	CredentialEnv     = "env"
)

// CredentialsConfig locates the bearer token
type CredentialsConfig struct {
	Source         string `json:"source" toml:"source"`
	KeyringService string `json:"keyringService,omitempty" toml:"keyring_service"`
	Account        string `json:"account,omitempty" toml:"account"`
	File           string `json:"file,omitempty" toml:"file"`
	Token          string `json:"-" toml:"-"` // env source only, never read from files
}

// SyncConfig tunes the sync engine and scheduler
type SyncConfig struct {
	AutoSync       bool     `json:"autoSync" toml:"auto_sync"`
	Interval       Duration `json:"interval" toml:"interval"`
	RequestTimeout Duration `json:"requestTimeout" toml:"request_timeout"`
	ProbeInterval  Duration `json:"probeInterval" toml:"probe_interval"`
}

// LogConfig controls log level and the optional rotating log file
type LogConfig struct {
	Level      string `json:"level" toml:"level"`
	File       string `json:"file,omitempty" toml:"file"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty" toml:"max_size_mb"`
	MaxBackups int    `json:"maxBackups,omitempty" toml:"max_backups"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty" toml:"max_age_days"`
}

// Duration is a time.Duration written as "90s" or "5m" in config files
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}

	switch c.Store.Driver {
	case kv.DriverMemory, kv.DriverSQLite:
	case kv.DriverPostgres:
		if c.Store.DSN == "" {
			return ErrMissingStoreDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStoreDriver, c.Store.Driver)
	}

	switch c.Credentials.Source {
	case CredentialKeyring:
		if c.Credentials.Account == "" {
			return ErrMissingKeyringAccount
		}
	case CredentialFile:
		if c.Credentials.File == "" {
			return ErrMissingCredentialFile
		}
	case CredentialEnv:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCredentialSource, c.Credentials.Source)
	}

	if c.Sync.Interval.Duration <= 0 || c.Sync.RequestTimeout.Duration <= 0 || c.Sync.ProbeInterval.Duration <= 0 {
		return ErrInvalidInterval
	}

	return nil
}

// DataDir is where the local store and credential file live by default
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tasksync")
	}
	return ".tasksync"
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		APIBaseURL: "http://localhost:8081",
		Listen:     "127.0.0.1:7420",
		Store: StoreConfig{
			Driver: kv.DriverSQLite,
			DSN:    filepath.Join(dir, "tasksync.db"),
		},
		Credentials: CredentialsConfig{
			Source:  CredentialKeyring,
			Account: "default",
			File:    filepath.Join(dir, "credentials.json"),
		},
		Sync: SyncConfig{
			AutoSync:       true,
			Interval:       Duration{60 * time.Second},
			RequestTimeout: Duration{20 * time.Second},
			ProbeInterval:  Duration{15 * time.Second},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
