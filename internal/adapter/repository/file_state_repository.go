package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
)

// fileStateRepository keeps all keys in one JSON object on disk. Writes go
// to a temp file that is renamed over the original.
type fileStateRepository struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	loaded bool
}

func NewFileStateRepository(path string) repository.StateRepository {
	return &fileStateRepository{
		path:   path,
		values: make(map[string]string),
	}
}

func (r *fileStateRepository) load() error {
	if r.loaded {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.loaded = true
			return nil
		}
		return errors.Internal("Failed to read state file", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.values); err != nil {
			return errors.Internal("Failed to parse state file", err)
		}
	}
	r.loaded = true
	return nil
}

func (r *fileStateRepository) flush() error {
	data, err := json.MarshalIndent(r.values, "", "  ")
	if err != nil {
		return errors.Internal("Failed to encode state", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Internal("Failed to create state directory", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Internal("Failed to write state file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return errors.Internal("Failed to replace state file", err)
	}
	return nil
}

func (r *fileStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return "", false, err
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *fileStateRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	r.values[key] = value
	return r.flush()
}

func (r *fileStateRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.load(); err != nil {
		return err
	}
	if _, ok := r.values[key]; !ok {
		return nil
	}
	delete(r.values, key)
	return r.flush()
}

func (r *fileStateRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values = make(map[string]string)
	r.loaded = true
	return r.flush()
}
