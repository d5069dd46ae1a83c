// Package storage defines the durable key-value store that holds client
// snapshots such as the offline operation queue and the last sync time.
//
// Backends live in subpackages:
//   - memory: process-local, for tests and ephemeral runs
//   - sqlite: local file (default)
//   - postgres: shared database
//   - redis: shared cache
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when the key has never been saved.
var ErrNotFound = errors.New("key not found")

// Store persists opaque snapshots by key. Save replaces the previous value
// atomically.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// LoadJSON decodes the value under key into v. It returns false, nil when
// the key does not exist.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and saves it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
