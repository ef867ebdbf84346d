// Package kv provides the key-value backends behind the local store.
//
// Each key holds one JSON document (a record collection, the operation queue, or a
// scalar). Update gives callers an atomic read-modify-write of a single key; there
// is no cross-key transaction.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UpdateFunc receives the current value (ok=false when the key is absent) and
// returns the value to store. Returning an error aborts the write.
// An UpdateFunc must not call back into the same Store.
type UpdateFunc func(cur []byte, ok bool) ([]byte, error)

// Store is a durable key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown kv driver")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("kv store closed")
)

// Error reports a backend failure for a key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Open creates a store for the given driver.
// dsn is a file path for sqlite and a connection URL for postgres; memory ignores it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres, "pg":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
