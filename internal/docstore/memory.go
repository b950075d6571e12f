package docstore

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// MemoryStore is an in-memory ObjectStore for tests and embedded setups.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memKey(bucket, key string) string {
	return bucket + "/" + key
}

// Get returns a copy of the stored object.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%w: object %s/%s", apperrors.ErrNotFound, bucket, key)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Put stores a copy of value.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, value []byte) error {
	copied := make([]byte, len(value))
	copy(copied, value)
	m.mu.Lock()
	m.objects[memKey(bucket, key)] = copied
	m.mu.Unlock()
	return nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	delete(m.objects, memKey(bucket, key))
	m.mu.Unlock()
	return nil
}
