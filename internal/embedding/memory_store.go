package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-process cache.
const DefaultMemoryEntries = 10000

// MemoryStore is a thread-safe in-process LRU Store.
type MemoryStore struct {
	cache *lru.Cache[string, []byte]
}

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		cache, _ = lru.New[string, []byte](DefaultMemoryEntries)
	}
	return &MemoryStore{cache: cache}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.cache.Add(key, value)
	return nil
}

// Len returns the number of cached vectors.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
