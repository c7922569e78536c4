package memory

import (
	"context"
	"sync"
)

// SnapshotStore keeps the attempt snapshot in process memory. It survives a
// store rebuild within one process, which is what reload tests need.
type SnapshotStore struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// NewSnapshotStoreWith seeds the store with a raw payload.
func NewSnapshotStoreWith(data []byte) *SnapshotStore {
	return &SnapshotStore{data: append([]byte(nil), data...)}
}

func (s *SnapshotStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...), nil
}

func (s *SnapshotStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data[:0:0], data...)
	s.saves++
	return nil
}

// Saves reports how many times the snapshot was written.
func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
