package store

import (
	"context"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

// MemoryStore keeps encoded blobs in a map. Useful for tests and one-shot runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[int64][]byte
}

var _ port.IndexStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[int64][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, projectID int64) (*vectorindex.Index, error) {
	s.mu.RLock()
	data, ok := s.blobs[projectID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrIndexNotFound
	}

	ix, err := vectorindex.Decode(data)
	if err != nil {
		return nil, storageErr("load", projectID, err)
	}
	return ix, nil
}

func (s *MemoryStore) Save(ctx context.Context, projectID int64, ix *vectorindex.Index) error {
	data, err := encode(ix)
	if err != nil {
		return storageErr("save", projectID, err)
	}

	s.mu.Lock()
	s.blobs[projectID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, projectID int64) error {
	s.mu.Lock()
	delete(s.blobs, projectID)
	s.mu.Unlock()
	return nil
}

// Corrupt overwrites a project's blob with raw bytes.
func (s *MemoryStore) Corrupt(projectID int64, data []byte) {
	s.mu.Lock()
	s.blobs[projectID] = data
	s.mu.Unlock()
}

func (s *MemoryStore) Close() error {
	return nil
}
