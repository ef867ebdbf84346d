// Package syncengine drains the operation queue against the remote API.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/queue"
	"github.com/erauner12/tasksync/internal/remote"
	"github.com/erauner12/tasksync/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultRequestTimeout bounds each remote call.
const DefaultRequestTimeout = 20 * time.Second

// Remote is the server API the engine pushes operations to.
type Remote interface {
	Create(ctx context.Context, kind model.Kind, payload model.Payload) (string, error)
	Update(ctx context.Context, kind model.Kind, serverID string, payload model.Payload) error
	Delete(ctx context.Context, kind model.Kind, serverID string) error
}

// Connectivity answers whether the remote is reachable right now.
type Connectivity interface {
	IsOnline(ctx context.Context) bool
}

// Credentials yields the bearer token; an error means none is usable.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// Result summarises one run. Total counts the operations attempted.
type Result struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// Status is a point-in-time view of sync state.
type Status struct {
	queue.Stats
	LastSyncTime int64 `json:"lastSyncTime"`
	Running      bool  `json:"running"`
}

// Engine runs sync passes. At most one pass is in flight; concurrent SyncAll
// callers share its Result.
type Engine struct {
	store   *store.Store
	queue   *queue.Queue
	remote  Remote
	online  Connectivity
	creds   Credentials
	timeout time.Duration
	now     func() time.Time

	group   singleflight.Group
	running atomic.Bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(st *store.Store, q *queue.Queue, r Remote, online Connectivity, creds Credentials, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		queue:   q,
		remote:  r,
		online:  online,
		creds:   creds,
		timeout: DefaultRequestTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAll pushes every eligible operation to the remote, oldest first. Offline
// or an empty queue yields a zero Result. Per-operation failures are recorded
// on the queue and counted, not returned; the error is reserved for aborted
// runs (ErrAuthMissing, storage failures). A run is shared by every caller
// that joins it and is not cancelled with any one caller's context.
func (e *Engine) SyncAll(ctx context.Context) (Result, error) {
	v, err, shared := e.group.Do("sync", func() (any, error) {
		// Callers joining the run must not lose it when the first one goes away.
		return e.run(context.WithoutCancel(ctx))
	})
	if shared {
		log.Debug().Msg("joined in-flight sync run")
	}
	res, _ := v.(Result)
	return res, err
}

// Running reports whether a pass is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Status reports queue counts, last sync time and whether a run is active.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	stats, err := e.queue.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	last, err := e.store.LastSyncTime(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Stats: stats, LastSyncTime: last, Running: e.Running()}, nil
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	e.running.Store(true)
	defer e.running.Store(false)

	var res Result

	if !e.online.IsOnline(ctx) {
		log.Info().Msg("offline, skipping sync")
		return res, nil
	}

	if _, err := e.creds.Token(ctx); err != nil {
		log.Warn().Err(err).Msg("no usable credentials, skipping sync")
		return res, fmt.Errorf("%w: %w", ErrAuthMissing, err)
	}

	ops, err := e.queue.Eligible(ctx)
	if err != nil {
		return res, err
	}
	if len(ops) == 0 {
		return res, nil
	}

	start := e.now()
	logger := log.With().Int("eligible", len(ops)).Logger()
	logger.Info().Msg("sync run started")

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Interface("result", res).Msg("sync run interrupted")
			return res, err
		}

		claimed, ok, err := e.queue.Claim(ctx, op.ID)
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		res.Total++

		opErr := e.apply(ctx, claimed)
		if opErr == nil {
			if err := e.queue.Remove(ctx, claimed.ID); err != nil {
				return res, err
			}
			res.Success++
			logger.Debug().
				Str("opId", claimed.ID).
				Str("entityId", claimed.EntityID).
				Str("operation", string(claimed.Operation)).
				Msg("sync operation applied")
			continue
		}

		failed, err := e.queue.Fail(ctx, claimed.ID, opErr.Error())
		if err != nil {
			return res, err
		}
		res.Failed++

		var storageErr *store.StorageError
		if errors.As(opErr, &storageErr) {
			logger.Error().Err(opErr).Str("opId", claimed.ID).Msg("local storage failed, aborting sync run")
			return res, opErr
		}
		logger.Warn().
			Err(opErr).
			Str("opId", claimed.ID).
			Str("entityId", claimed.EntityID).
			Str("operation", string(claimed.Operation)).
			Int("retryCount", failed.RetryCount).
			Bool("exhausted", failed.Exhausted()).
			Msg("sync operation failed")
	}

	if res.Success > 0 {
		if err := e.store.SetLastSyncTime(ctx, e.now().UnixMilli()); err != nil {
			return res, err
		}
	}

	logger.Info().
		Int("success", res.Success).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Dur("duration", e.now().Sub(start)).
		Msg("sync run finished")

	return res, nil
}

// apply performs one operation against the remote and records the outcome on
// the local record.
func (e *Engine) apply(ctx context.Context, op *model.Operation) error {
	rec, err := e.store.Get(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return err
	}
	if rec == nil {
		return &RemoteOperationError{Op: op.Operation, Kind: op.EntityType, EntityID: op.EntityID, Err: ErrRecordMissing}
	}

	switch op.Operation {
	case model.OpCreate:
		if rec.HasServerID() {
			// An earlier create already went through; send the snapshot as an update.
			return e.update(ctx, op, rec)
		}
		return e.create(ctx, op, rec)
	case model.OpUpdate:
		return e.update(ctx, op, rec)
	case model.OpDelete:
		return e.delete(ctx, op, rec)
	}
	return &PreconditionError{Op: op.Operation, EntityID: op.EntityID, Reason: "unknown operation"}
}

func (e *Engine) create(ctx context.Context, op *model.Operation, rec *model.Record) error {
	if rec.Deleted && op.ServerID == "" {
		// Deleted before the server ever saw it.
		if err := e.store.Purge(ctx, op.EntityType, op.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	}

	serverID := op.ServerID
	if serverID == "" {
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		id, err := e.remote.Create(reqCtx, op.EntityType, op.Data)
		if err != nil {
			return e.remoteErr(op, err)
		}
		serverID = id
	}

	marked, err := e.store.MarkSynced(ctx, op.EntityType, op.EntityID, &serverID, e.now().UnixMilli())
	if err != nil {
		if _, qErr := e.queue.Update(ctx, op.ID, queue.Patch{ServerID: &serverID}); qErr != nil {
			log.Error().Err(qErr).Str("opId", op.ID).Str("serverId", serverID).Msg("failed to keep server id of created record")
		}
		return err
	}

	if marked.Deleted {
		// Deleted locally while the create was in flight.
		_, err := e.queue.Enqueue(ctx, op.EntityType, op.EntityID, model.OpDelete, model.PayloadFor(marked))
		return err
	}
	if op.ServerID != "" {
		// The remote copy holds the snapshot of an earlier attempt.
		return e.update(ctx, op, marked)
	}
	return nil
}

func (e *Engine) update(ctx context.Context, op *model.Operation, rec *model.Record) error {
	if !rec.HasServerID() {
		return &PreconditionError{Op: op.Operation, EntityID: op.EntityID, Reason: "record has no server id"}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.remote.Update(reqCtx, op.EntityType, *rec.ServerID, op.Data); err != nil {
		switch remote.StatusCode(err) {
		case http.StatusNotFound, http.StatusConflict:
			if _, markErr := e.store.MarkConflict(ctx, op.EntityType, op.EntityID); markErr != nil {
				return markErr
			}
		}
		return e.remoteErr(op, err)
	}
	_, err := e.store.MarkSynced(ctx, op.EntityType, op.EntityID, nil, e.now().UnixMilli())
	return err
}

func (e *Engine) delete(ctx context.Context, op *model.Operation, rec *model.Record) error {
	if !rec.HasServerID() {
		return &PreconditionError{Op: op.Operation, EntityID: op.EntityID, Reason: "record has no server id"}
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.remote.Delete(reqCtx, op.EntityType, *rec.ServerID)
	if err != nil && !remote.IsGone(err) {
		return e.remoteErr(op, err)
	}
	return nil
}

func (e *Engine) remoteErr(op *model.Operation, err error) error {
	return &RemoteOperationError{Op: op.Operation, Kind: op.EntityType, EntityID: op.EntityID, Err: err}
}
