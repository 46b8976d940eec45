package store

import (
	"context"
	"sync"

	"netsentinel/pkg/model"
)

// MemoryStore is a simple in-memory implementation, intended for dev/tests.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []model.Sample
	nextID  uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) Append(_ context.Context, s *model.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	m.nextID++
	m.samples = append(m.samples, *s)
	return nil
}

func (m *MemoryStore) QueryRecent(_ context.Context, limit int) ([]model.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []model.Sample{}, nil
	}
	if limit > len(m.samples) {
		limit = len(m.samples)
	}
	out := make([]model.Sample, 0, limit)
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.samples[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
