package persistence

import (
	"context"
	"fmt"

	cmap "github.com/orcaman/concurrent-map"
)

// MemoryStore is an in-process KeyValueStore: useful for tests, local
// development, and the "memory" persistence.kind config option. Not
// durable across restarts.
type MemoryStore struct {
	data cmap.ConcurrentMap
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: cmap.New()}
}

func memKey(kind string, id uint64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

func (m *MemoryStore) Get(_ context.Context, kind string, id uint64) ([]byte, error) {
	v, ok := m.data.Get(memKey(kind, id))
	if !ok {
		return nil, ErrNotFound
	}
	blob, _ := v.([]byte)
	// Defensive copy: callers may mutate the returned slice.
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, kind string, id uint64, blob []byte) error {
	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.data.Set(memKey(kind, id), stored)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
