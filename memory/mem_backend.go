package memory

import (
	"context"
	"sync"
)

// MemBackend is an in-process Backend. Contents are lost when the process exits.
type MemBackend struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemBackend() *MemBackend {
	return &MemBackend{m: make(map[string]string)}
}

func (b *MemBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok, nil
}

func (b *MemBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
	return nil
}

func (b *MemBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
	return nil
}

func (b *MemBackend) Close() error { return nil }
