// Package store is the on-device record store: one JSON collection per entity
// kind plus the last-sync timestamp, all held in a kv.Store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/erauner12/tasksync/internal/kv"
	"github.com/erauner12/tasksync/internal/model"
	"github.com/google/uuid"
)

// KeyLastSyncTime holds the epoch-ms of the last run that pushed anything.
const KeyLastSyncTime = "last_sync_time"

// CollectionKey returns the kv key of a kind's record collection.
func CollectionKey(kind model.Kind) string {
	return kind.Plural()
}

// Store persists Records. Every mutation is a single atomic read-modify-write of
// its collection key.
type Store struct {
	kv    kv.Store
	now   func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides local id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store over backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:    backend,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) nowMs() int64 {
	return s.now().UnixMilli()
}

// All returns every record of kind, soft-deleted ones included, ordered by
// (createdAt, id).
func (s *Store) All(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	key := CollectionKey(kind)
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}
	if !ok {
		return []model.Record{}, nil
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, &StorageError{Op: "decode", Key: key, Err: err}
	}
	sortRecords(records)
	return records, nil
}

// Get looks a record up by local id. An absent record is (nil, nil).
func (s *Store) Get(ctx context.Context, kind model.Kind, id string) (*model.Record, error) {
	records, err := s.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Save stores a new record built from fields, with a fresh id and pending status.
func (s *Store) Save(ctx context.Context, kind model.Kind, fields model.Fields) (*model.Record, error) {
	if err := fields.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if fields.Priority == "" {
		fields.Priority = model.PriorityMedium
	}

	now := s.nowMs()
	rec := model.Record{
		ID:         s.newID(),
		Kind:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.SyncStatusPending,
		Fields:     fields,
	}
	if rec.Completed && rec.CompletedAt == nil {
		rec.CompletedAt = &now
	}

	err := s.mutate(ctx, kind, func(records []model.Record) ([]model.Record, error) {
		return append(records, rec), nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update merges patch into the record and refreshes updatedAt.
func (s *Store) Update(ctx context.Context, kind model.Kind, id string, patch model.Patch) (*model.Record, error) {
	return s.modify(ctx, kind, id, func(r *model.Record, now int64) error {
		next := r.Fields
		patch.Apply(&next, now)
		if err := next.Validate(); err != nil {
			return &ValidationError{Err: err}
		}
		r.Fields = next
		r.UpdatedAt = now
		r.SyncStatus = model.SyncStatusPending
		return nil
	})
}

// SoftDelete flags the record deleted without removing it, so a queued delete
// can still reach its server copy.
func (s *Store) SoftDelete(ctx context.Context, kind model.Kind, id string) (*model.Record, error) {
	return s.modify(ctx, kind, id, func(r *model.Record, now int64) error {
		r.Deleted = true
		r.DeletedAt = &now
		r.UpdatedAt = now
		r.SyncStatus = model.SyncStatusPending
		return nil
	})
}

// Complete marks the record completed.
func (s *Store) Complete(ctx context.Context, kind model.Kind, id string) (*model.Record, error) {
	return s.modify(ctx, kind, id, func(r *model.Record, now int64) error {
		r.Completed = true
		r.CompletedAt = &now
		r.UpdatedAt = now
		r.SyncStatus = model.SyncStatusPending
		return nil
	})
}

// MarkSynced records a successful push. A non-nil serverID is stored (create);
// nil keeps the existing one (update).
func (s *Store) MarkSynced(ctx context.Context, kind model.Kind, id string, serverID *string, at int64) (*model.Record, error) {
	return s.modify(ctx, kind, id, func(r *model.Record, _ int64) error {
		if serverID != nil {
			sid := *serverID
			r.ServerID = &sid
		}
		r.SyncStatus = model.SyncStatusSynced
		r.LastSyncedAt = &at
		return nil
	})
}

// MarkConflict flags a record whose remote counterpart rejected local state.
func (s *Store) MarkConflict(ctx context.Context, kind model.Kind, id string) (*model.Record, error) {
	return s.modify(ctx, kind, id, func(r *model.Record, _ int64) error {
		r.SyncStatus = model.SyncStatusConflict
		return nil
	})
}

// Purge physically removes a record. Used for records deleted before they ever
// reached the server, which have nothing left to sync.
func (s *Store) Purge(ctx context.Context, kind model.Kind, id string) error {
	return s.mutate(ctx, kind, func(records []model.Record) ([]model.Record, error) {
		for i := range records {
			if records[i].ID == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

// LastSyncTime returns the epoch-ms of the last successful push, 0 if none.
func (s *Store) LastSyncTime(ctx context.Context) (int64, error) {
	raw, ok, err := s.kv.Get(ctx, KeyLastSyncTime)
	if err != nil {
		return 0, &StorageError{Op: "read", Key: KeyLastSyncTime, Err: err}
	}
	if !ok {
		return 0, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, &StorageError{Op: "decode", Key: KeyLastSyncTime, Err: err}
	}
	return ms, nil
}

// SetLastSyncTime stores the last-sync timestamp.
func (s *Store) SetLastSyncTime(ctx context.Context, ms int64) error {
	if err := s.kv.Put(ctx, KeyLastSyncTime, []byte(strconv.FormatInt(ms, 10))); err != nil {
		return &StorageError{Op: "write", Key: KeyLastSyncTime, Err: err}
	}
	return nil
}

// modify applies fn to the record with id inside one atomic update.
func (s *Store) modify(ctx context.Context, kind model.Kind, id string, fn func(r *model.Record, now int64) error) (*model.Record, error) {
	var out model.Record
	now := s.nowMs()

	err := s.mutate(ctx, kind, func(records []model.Record) ([]model.Record, error) {
		for i := range records {
			if records[i].ID != id {
				continue
			}
			if err := fn(&records[i], now); err != nil {
				return nil, err
			}
			out = records[i]
			return records, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// mutate runs fn over the decoded collection and writes the result back.
// Errors returned by fn pass through unwrapped and abort the write.
func (s *Store) mutate(ctx context.Context, kind model.Kind, fn func([]model.Record) ([]model.Record, error)) error {
	key := CollectionKey(kind)
	var fnErr error

	err := s.kv.Update(ctx, key, func(cur []byte, ok bool) ([]byte, error) {
		records := []model.Record{}
		if ok {
			var err error
			if records, err = decodeRecords(cur); err != nil {
				return nil, &StorageError{Op: "decode", Key: key, Err: err}
			}
		}

		next, err := fn(records)
		if err != nil {
			fnErr = err
			return nil, err
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return nil, &StorageError{Op: "encode", Key: key, Err: err}
		}
		return raw, nil
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: "write", Key: key, Err: err}
}

func decodeRecords(raw []byte) ([]model.Record, error) {
	var records []model.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("corrupt record collection: %w", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

func sortRecords(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}
