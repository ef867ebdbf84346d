package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record id is absent from its collection.
var ErrNotFound = errors.New("record not found")

// StorageError reports a persistence failure (backend unavailable, corrupt or
// unserialisable data). Prior state is left untouched.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError reports rejected field values.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid record: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
