package registry

import (
	"context"
	"sync"
)

// MemoryRegistry implements ParameterRegistry using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type MemoryRegistry struct {
	mu     sync.RWMutex
	params map[string]string
}

// NewMemoryRegistry creates a new in-memory parameter registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{params: make(map[string]string)}
}

func (r *MemoryRegistry) Get(ctx context.Context, name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, exists := r.params[name]
	if !exists {
		return "", ErrParameterNotFound
	}
	return value, nil
}

func (r *MemoryRegistry) Put(ctx context.Context, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.params[name] = value
	return nil
}

func (r *MemoryRegistry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.params, name)
	return nil
}
