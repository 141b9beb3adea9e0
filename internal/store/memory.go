package store

import (
	"context"
	"sync"
)

// MemoryGateway is a map-backed Gateway. Good enough for tests and for
// running without a database file; contents vanish on restart, which the
// contract explicitly permits.
type MemoryGateway struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ Gateway = (*MemoryGateway)(nil)

func NewMemory() *MemoryGateway {
	return &MemoryGateway{
		data: make(map[string]map[string][]byte),
	}
}

func (g *MemoryGateway) Get(_ context.Context, namespace, key string) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ns, ok := g.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := ns[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (g *MemoryGateway) Set(_ context.Context, namespace, key string, value []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ns, ok := g.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		g.data[namespace] = ns
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	ns[key] = stored
	return nil
}

func (g *MemoryGateway) List(_ context.Context, namespace string) (map[string][]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]byte, len(g.data[namespace]))
	for key, value := range g.data[namespace] {
		copied := make([]byte, len(value))
		copy(copied, value)
		out[key] = copied
	}
	return out, nil
}
