package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// BackendFactory builds a chat+embeddings backend. model overrides the
// configured default when non-empty.
type BackendFactory func(ctx context.Context, model string) (Backend, error)

// Registry routes backend selection by name, so the binaries pick Ollama
// or OpenAI from configuration alone.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]BackendFactory)}
}

func (r *Registry) Register(name string, f BackendFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name, model string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai backend: %s", name)
	}
	return f(ctx, model)
}
