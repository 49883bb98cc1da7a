package repository

import (
	"context"
	"sync"

	"seedbazaar/internal/domain/repository"
)

type memoryStateRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStateRepository() repository.StateRepository {
	return &memoryStateRepository{
		values: make(map[string]string),
	}
}

func (r *memoryStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *memoryStateRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *memoryStateRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func (r *memoryStateRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = make(map[string]string)
	return nil
}
