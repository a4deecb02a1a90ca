package store

import (
	"context"
	"sync"

	"modq/internal/modq"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Nothing survives a restart, making it useful for tests and dry runs.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	tables map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]byte)}
}

// Load returns a copy of the stored blob, or nil if the table was never saved.
func (m *MemoryStore) Load(_ context.Context, table string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data, replacing any previous blob.
func (m *MemoryStore) Save(_ context.Context, table string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tables[table] = append([]byte{}, data...)
	return nil
}

// Tables returns the names of all saved tables.
func (m *MemoryStore) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	return names
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// Compile-time check that MemoryStore implements modq.Store interface
var _ modq.Store = (*MemoryStore)(nil)
