package storage

import (
	"context"
	"sync"
)

// MemoryProvider keeps snapshots in memory for tests.
type MemoryProvider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

// Save stores a copy of the snapshot.
func (s *MemoryProvider) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Get returns a stored snapshot and whether it exists.
func (s *MemoryProvider) Get(objectName string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[objectName]
	return b, ok
}

// Len reports how many snapshots are stored.
func (s *MemoryProvider) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
