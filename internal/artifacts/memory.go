package artifacts

import (
	"context"
	"sync"

	"custodian/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// InMemoryStore holds artifacts in memory for tests and ephemeral deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemory constructs an empty in-memory artifact store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Write(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locator := "mem://" + uuid.New().String()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[locator] = stored
	return locator, nil
}

func (s *InMemoryStore) Read(_ context.Context, locator string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[locator]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[locator]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.blobs, locator)
	return nil
}

// Len reports the number of stored artifacts. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
