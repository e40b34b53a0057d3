package vectorstore

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Record)}
}

func (m *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection]), nil
}

func (m *MemoryStore) Add(_ context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Collection = collection
		r.Embedding = append([]float32(nil), r.Embedding...)
		m.collections[collection] = append(m.collections[collection], r)
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	m.mu.RLock()
	records := append([]Record(nil), m.collections[collection]...)
	m.mu.RUnlock()
	return rank(records, vector, limit), nil
}

func (m *MemoryStore) Close() error { return nil }
