package kvstore

import (
	"context"
	"sync"

	"github.com/wnt/lbscout/internal/metrics"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, ok := m.data[key]
	metrics.RecordCacheOperation("memory", "get", "success")
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data[key] = value
	metrics.RecordCacheOperation("memory", "set", "success")
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, key)
	metrics.RecordCacheOperation("memory", "remove", "success")
	return nil
}

// Len returns the number of stored keys
func (m *MemoryStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.data)
}
