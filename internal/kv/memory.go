package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Values do not survive a restart.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, &Error{Op: "get", Key: key, Err: ErrClosed}
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &Error{Op: "put", Key: key, Err: ErrClosed}
	}
	m.data[key] = clone(value)
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &Error{Op: "update", Key: key, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: "update", Key: key, Err: err}
	}

	cur, ok := m.data[key]
	next, err := fn(clone(cur), ok)
	if err != nil {
		return err
	}
	m.data[key] = clone(next)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &Error{Op: "delete", Key: key, Err: ErrClosed}
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
