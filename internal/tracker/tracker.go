// Package tracker is the CRUD surface for tasks and events. Every write lands
// in the local store first, is queued for the remote, and then kicks off a
// background sync whose outcome the caller may ignore.
package tracker

import (
	"context"
	"errors"

	"github.com/erauner12/tasksync/internal/model"
	"github.com/erauner12/tasksync/internal/queue"
	"github.com/erauner12/tasksync/internal/scheduler"
	"github.com/erauner12/tasksync/internal/store"
	"github.com/rs/zerolog/log"
)

// Trigger starts a background sync pass.
type Trigger interface {
	Trigger(ctx context.Context) <-chan scheduler.Outcome
}

// Tracker combines the store, the queue and the scheduler.
type Tracker struct {
	store *store.Store
	queue *queue.Queue
	sync  Trigger
}

// New creates a Tracker. sync may be nil to disable automatic pushes.
func New(st *store.Store, q *queue.Queue, sync Trigger) *Tracker {
	return &Tracker{store: st, queue: q, sync: sync}
}

// List returns records of kind; soft-deleted ones only when includeDeleted.
func (t *Tracker) List(ctx context.Context, kind model.Kind, includeDeleted bool) ([]model.Record, error) {
	records, err := t.store.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	if includeDeleted {
		return records, nil
	}
	out := records[:0]
	for _, r := range records {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns one record, or store.ErrNotFound.
func (t *Tracker) Get(ctx context.Context, kind model.Kind, id string) (*model.Record, error) {
	rec, err := t.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// Create saves a new record and queues its creation.
func (t *Tracker) Create(ctx context.Context, kind model.Kind, fields model.Fields) (*model.Record, <-chan scheduler.Outcome, error) {
	rec, err := t.store.Save(ctx, kind, fields)
	if err != nil {
		return nil, nil, err
	}
	return t.push(ctx, rec, model.OpCreate)
}

// Update merges patch into a record and queues the change. A record that has
// not reached the server yet stays on the create path. Deleted records cannot
// be edited.
func (t *Tracker) Update(ctx context.Context, kind model.Kind, id string, patch model.Patch) (*model.Record, <-chan scheduler.Outcome, error) {
	if err := t.requireLive(ctx, kind, id); err != nil {
		return nil, nil, err
	}
	rec, err := t.store.Update(ctx, kind, id, patch)
	if err != nil {
		return nil, nil, err
	}
	return t.push(ctx, rec, upsertOp(rec))
}

// Complete marks a record completed and queues the change.
func (t *Tracker) Complete(ctx context.Context, kind model.Kind, id string) (*model.Record, <-chan scheduler.Outcome, error) {
	if err := t.requireLive(ctx, kind, id); err != nil {
		return nil, nil, err
	}
	rec, err := t.store.Complete(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}
	return t.push(ctx, rec, upsertOp(rec))
}

// Delete soft-deletes a record and queues its remote deletion. A record the
// server never saw is purged outright along with its queued operations, unless
// its create is in flight: then it is only soft-deleted and the sync engine
// queues the delete once the create lands.
func (t *Tracker) Delete(ctx context.Context, kind model.Kind, id string) (<-chan scheduler.Outcome, error) {
	rec, err := t.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}

	if !rec.HasServerID() {
		dropped, inFlight, err := t.queue.RemoveForEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if inFlight {
			if _, err := t.store.SoftDelete(ctx, kind, id); err != nil {
				return nil, err
			}
			log.Debug().
				Str("entityId", id).
				Int("droppedOps", dropped).
				Msg("create in flight, deferring remote delete")
			return nil, nil
		}
		if err := t.store.Purge(ctx, kind, id); err != nil {
			return nil, err
		}
		log.Debug().
			Str("entityId", id).
			Int("droppedOps", dropped).
			Msg("purged record that never reached the server")
		return nil, nil
	}

	rec, err = t.store.SoftDelete(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	_, done, err := t.push(ctx, rec, model.OpDelete)
	return done, err
}

// requireLive fails with store.ErrNotFound unless the record exists and is
// not soft-deleted.
func (t *Tracker) requireLive(ctx context.Context, kind model.Kind, id string) error {
	rec, err := t.store.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil || rec.Deleted {
		return store.ErrNotFound
	}
	return nil
}

func (t *Tracker) push(ctx context.Context, rec *model.Record, op model.OpType) (*model.Record, <-chan scheduler.Outcome, error) {
	if _, err := t.queue.Enqueue(ctx, rec.Kind, rec.ID, op, model.PayloadFor(rec)); err != nil {
		return nil, nil, err
	}
	if t.sync == nil {
		return rec, nil, nil
	}
	return rec, t.sync.Trigger(context.WithoutCancel(ctx)), nil
}

func upsertOp(rec *model.Record) model.OpType {
	if rec.HasServerID() {
		return model.OpUpdate
	}
	return model.OpCreate
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
