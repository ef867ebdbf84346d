// Package queue is the persistent log of operations waiting to reach the remote.
//
// While an entity has a pending operation, enqueuing another one for it replaces
// the pending entry in place (same id and position) with the newer operation and
// snapshot; only the latest state of an entity needs to reach the server.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erauner12/tasksync/internal/kv"
	"github.com/erauner12/tasksync/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Key is the kv key holding the queue.
const Key = "sync_queue"

// ErrNotFound is returned for an unknown operation id.
var ErrNotFound = errors.New("operation not found")

// StorageError reports a queue persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("sync queue %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Patch is a partial update of an operation.
type Patch struct {
	Status     *model.OpStatus
	RetryCount *int
	Error      *string
	ServerID   *string
}

// Stats counts operations by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Syncing   int `json:"syncing"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
	Success   int `json:"success"`
}

// Queue is the operation queue.
type Queue struct {
	kv    kv.Store
	now   func() time.Time
	newID func() string
}

// Option customises a Queue.
type Option func(*Queue)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator overrides operation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

// New creates a Queue over backend.
func New(backend kv.Store, opts ...Option) *Queue {
	q := &Queue{
		kv:    backend,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue records an operation for entityID. A pending operation for the same
// entity is overwritten in place; otherwise a new pending operation is appended.
// Failed operations of the entity are dropped: they carry an older snapshot and
// the new operation supersedes them.
func (q *Queue) Enqueue(ctx context.Context, kind model.Kind, entityID string, op model.OpType, data model.Payload) (*model.Operation, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if data.Kind != kind {
		return nil, fmt.Errorf("payload kind %q does not match entity kind %q", data.Kind, kind)
	}

	var out model.Operation
	replaced := false
	superseded := 0
	now := q.now().UnixMilli()

	err := q.mutate(ctx, "enqueue", func(ops []model.Operation) ([]model.Operation, error) {
		var dropped []model.Operation
		kept := ops[:0]
		for _, o := range ops {
			if o.EntityID == entityID && o.Status == model.OpStatusFailed {
				dropped = append(dropped, o)
				continue
			}
			kept = append(kept, o)
		}
		ops = kept
		superseded = len(dropped)

		target := -1
		for i := range ops {
			if ops[i].EntityID == entityID && ops[i].Status == model.OpStatusPending {
				target = i
				break
			}
		}
		if target < 0 {
			ops = append(ops, model.Operation{
				ID:       q.newID(),
				EntityID: entityID,
				Status:   model.OpStatusPending,
			})
			target = len(ops) - 1
		} else {
			replaced = true
		}

		cur := &ops[target]
		cur.EntityType = kind
		cur.Operation = op
		cur.Data = data
		cur.Timestamp = now
		for _, d := range dropped {
			cur.Inherit(d)
		}
		out = *cur
		return ops, nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("opId", out.ID).
		Str("entityId", entityID).
		Str("operation", string(out.Operation)).
		Bool("replaced", replaced).
		Int("superseded", superseded).
		Msg("sync operation enqueued")

	return &out, nil
}

// All returns the queue contents in order, any status.
func (q *Queue) All(ctx context.Context) ([]model.Operation, error) {
	raw, ok, err := q.kv.Get(ctx, Key)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	if !ok {
		return []model.Operation{}, nil
	}
	ops, err := decode(raw)
	if err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	return ops, nil
}

// Get returns one operation by id.
func (q *Queue) Get(ctx context.Context, id string) (*model.Operation, error) {
	ops, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range ops {
		if ops[i].ID == id {
			return &ops[i], nil
		}
	}
	return nil, ErrNotFound
}

// Eligible returns operations a sync run may attempt, in queue order.
func (q *Queue) Eligible(ctx context.Context) ([]model.Operation, error) {
	ops, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Eligible() {
			out = append(out, op)
		}
	}
	return out, nil
}

// Update applies a partial update to an operation.
func (q *Queue) Update(ctx context.Context, id string, patch Patch) (*model.Operation, error) {
	var out model.Operation
	err := q.mutate(ctx, "update", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].ID != id {
				continue
			}
			if patch.Status != nil {
				ops[i].Status = *patch.Status
			}
			if patch.RetryCount != nil {
				ops[i].RetryCount = *patch.RetryCount
			}
			if patch.Error != nil {
				ops[i].Error = *patch.Error
			}
			if patch.ServerID != nil {
				ops[i].ServerID = *patch.ServerID
			}
			out = ops[i]
			return ops, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim moves an eligible operation to syncing. It reports false when the
// operation is gone or another run already took it.
func (q *Queue) Claim(ctx context.Context, id string) (*model.Operation, bool, error) {
	var out model.Operation
	claimed := false
	err := q.mutate(ctx, "claim", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].ID == id && ops[i].Eligible() {
				ops[i].Status = model.OpStatusSyncing
				out = ops[i]
				claimed = true
				break
			}
		}
		return ops, nil
	})
	if err != nil || !claimed {
		return nil, false, err
	}
	return &out, true, nil
}

// Fail records a failed attempt: status failed, retryCount+1, error reason.
// When a newer pending operation for the same entity is already queued, the
// failed one is folded into it and removed instead of waiting for a retry.
func (q *Queue) Fail(ctx context.Context, id string, reason string) (*model.Operation, error) {
	var out model.Operation
	superseded := false
	err := q.mutate(ctx, "fail", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].ID != id {
				continue
			}
			ops[i].Status = model.OpStatusFailed
			ops[i].RetryCount++
			ops[i].Error = reason
			out = ops[i]

			for j := i + 1; j < len(ops); j++ {
				if ops[j].EntityID == out.EntityID && ops[j].Status == model.OpStatusPending {
					ops[j].Inherit(out)
					superseded = true
					return append(ops[:i], ops[i+1:]...), nil
				}
			}
			return ops, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	if superseded {
		log.Debug().
			Str("opId", out.ID).
			Str("entityId", out.EntityID).
			Msg("failed sync operation superseded by a newer one")
	}
	return &out, nil
}

// Remove deletes an operation.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.mutate(ctx, "remove", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].ID == id {
				return append(ops[:i], ops[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// RemoveForEntity drops the operations of an entity that are not currently
// syncing. It returns how many were removed and whether one is still in flight.
func (q *Queue) RemoveForEntity(ctx context.Context, entityID string) (int, bool, error) {
	removed := 0
	inFlight := false
	err := q.mutate(ctx, "remove", func(ops []model.Operation) ([]model.Operation, error) {
		kept := ops[:0]
		for _, op := range ops {
			if op.EntityID != entityID {
				kept = append(kept, op)
				continue
			}
			if op.Status == model.OpStatusSyncing {
				inFlight = true
				kept = append(kept, op)
				continue
			}
			removed++
		}
		return kept, nil
	})
	return removed, inFlight, err
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.kv.Put(ctx, Key, []byte("[]")); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	log.Info().Msg("sync queue cleared")
	return nil
}

// RetryExhausted resets operations that used up their retries to pending with a
// zero retry count, returning how many were reset.
func (q *Queue) RetryExhausted(ctx context.Context) (int, error) {
	count := 0
	err := q.mutate(ctx, "retry", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].Exhausted() {
				ops[i].Status = model.OpStatusPending
				ops[i].RetryCount = 0
				ops[i].Error = ""
				count++
			}
		}
		return ops, nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("reset exhausted sync operations for retry")
	}
	return count, nil
}

// RecoverStale returns operations stuck in syncing (left by an interrupted run)
// to failed without consuming a retry.
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	count := 0
	err := q.mutate(ctx, "recover", func(ops []model.Operation) ([]model.Operation, error) {
		for i := range ops {
			if ops[i].Status == model.OpStatusSyncing {
				ops[i].Status = model.OpStatusFailed
				ops[i].Error = "interrupted during sync"
				count++
			}
		}
		return ops, nil
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Warn().Int("count", count).Msg("recovered sync operations left in syncing state")
	}
	return count, nil
}

// Stats counts operations by status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	ops, err := q.All(ctx)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, op := range ops {
		s.Total++
		switch op.Status {
		case model.OpStatusPending:
			s.Pending++
		case model.OpStatusSyncing:
			s.Syncing++
		case model.OpStatusFailed:
			if op.Exhausted() {
				s.Exhausted++
			} else {
				s.Failed++
			}
		case model.OpStatusSuccess:
			s.Success++
		}
	}
	return s, nil
}

func (q *Queue) mutate(ctx context.Context, op string, fn func([]model.Operation) ([]model.Operation, error)) error {
	var fnErr error

	err := q.kv.Update(ctx, Key, func(cur []byte, ok bool) ([]byte, error) {
		ops := []model.Operation{}
		if ok {
			var err error
			if ops, err = decode(cur); err != nil {
				return nil, &StorageError{Op: "decode", Err: err}
			}
		}

		next, err := fn(ops)
		if err != nil {
			fnErr = err
			return nil, err
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return nil, &StorageError{Op: "encode", Err: err}
		}
		return raw, nil
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}

	var qErr *StorageError
	if errors.As(err, &qErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func decode(raw []byte) ([]model.Operation, error) {
	var ops []model.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("corrupt sync queue: %w", err)
	}
	if ops == nil {
		ops = []model.Operation{}
	}
	return ops, nil
}
