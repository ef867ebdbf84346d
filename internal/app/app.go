// Package app wires the sync components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/erauner12/tasksync/internal/config"
	"github.com/erauner12/tasksync/internal/connectivity"
	"github.com/erauner12/tasksync/internal/credentials"
	"github.com/erauner12/tasksync/internal/kv"
	"github.com/erauner12/tasksync/internal/queue"
	"github.com/erauner12/tasksync/internal/remote"
	"github.com/erauner12/tasksync/internal/scheduler"
	"github.com/erauner12/tasksync/internal/store"
	"github.com/erauner12/tasksync/internal/syncengine"
	"github.com/erauner12/tasksync/internal/tracker"
	"github.com/rs/zerolog/log"
)

// App is a fully wired sync core.
type App struct {
	KV          kv.Store
	Store       *store.Store
	Queue       *queue.Queue
	Credentials credentials.Source
	Monitor     *connectivity.Monitor
	Engine      *syncengine.Engine
	Scheduler   *scheduler.Scheduler
	Tracker     *tracker.Tracker
}

// New opens the configured store and builds every component on top of it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	backend, err := kv.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	creds := CredentialSource(cfg.Credentials)
	st := store.New(backend)
	q := queue.New(backend)
	monitor := connectivity.New(connectivity.NewHTTPProbe(cfg.APIBaseURL))
	api := remote.NewAPI(remote.NewHTTPClient(cfg.APIBaseURL, creds))
	engine := syncengine.New(st, q, api, monitor, creds,
		syncengine.WithRequestTimeout(cfg.Sync.RequestTimeout.Duration))
	sched := scheduler.New(engine, monitor)

	log.Debug().
		Str("driver", cfg.Store.Driver).
		Str("credentials", cfg.Credentials.Source).
		Str("apiBaseUrl", cfg.APIBaseURL).
		Msg("sync core wired")

	return &App{
		KV:          backend,
		Store:       st,
		Queue:       q,
		Credentials: creds,
		Monitor:     monitor,
		Engine:      engine,
		Scheduler:   sched,
		Tracker:     tracker.New(st, q, sched),
	}, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.Scheduler.Close()
	return a.KV.Close()
}

// CredentialSource builds the token source named by cfg.Source.
func CredentialSource(cfg config.CredentialsConfig) credentials.Source {
	switch cfg.Source {
	case config.CredentialFile:
		return credentials.NewFile(cfg.File)
	case config.CredentialEnv:
		return credentials.Static(cfg.Token)
	default:
		return credentials.NewKeyring(cfg.KeyringService, cfg.Account)
	}
}
