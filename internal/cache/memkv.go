package cache

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KeyValue for local runs without a cache file and
// for tests that want a fresh persisted tier per case.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty in-memory key-value store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// GetValue returns the stored value, or "" when absent.
func (m *MemoryKV) GetValue(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// SetValue writes a key unconditionally.
func (m *MemoryKV) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// DeleteValue removes a key if present.
func (m *MemoryKV) DeleteValue(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
