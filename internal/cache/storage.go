package cache

import (
	"context"
	"sync"
)

// MemoryStorage keeps snapshots in process memory. Useful for tests and for
// running without durable persistence while still exercising the snapshot path.
type MemoryStorage struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Load returns a copy of the snapshot saved under namespace.
func (m *MemoryStorage) Load(_ context.Context, namespace string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[namespace]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Save stores a copy of data under namespace.
func (m *MemoryStorage) Save(_ context.Context, namespace string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[namespace] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
