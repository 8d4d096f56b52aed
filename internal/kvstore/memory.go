package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/starford/synka/internal/apperr"
)

// Memory is an in-process store. Contents are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	data    map[string][]byte
	updated time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.updated = time.Now()
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Status reports the number of keys held.
func (m *Memory) Status(context.Context) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Backend:       string(MemoryBackend),
		Connected:     true,
		TotalEntries:  len(m.data),
		LastEntryTime: m.updated,
	}, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// None discards every write and never finds anything. It disables caching.
// It is always reachable.
type None struct{}

var _ Store = None{}

func (None) Get(context.Context, string) ([]byte, error) { return nil, apperr.ErrNotFound }
func (None) Set(context.Context, string, []byte) error { return nil }
func (None) Delete(context.Context, string) error { return nil }
func (None) Status(context.Context) (Status, error) {
	return Status{Backend: string(NoneBackend), Connected: true}, nil
}
func (None) Close() error { return nil }
