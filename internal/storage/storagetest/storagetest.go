// Package storagetest provides a conformance suite run against every
// storage.Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/uday68/commandgrid-sub003/internal/storage"
)

// Run exercises s through the storage.Store contract. s must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		if _, err := s.Load(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Load() error = %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		if err := s.Save(ctx, "k1", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Load(ctx, "k1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if string(got) != `{"a":1}` {
			t.Errorf("Load() = %s, want %s", got, `{"a":1}`)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		s.Save(ctx, "k2", []byte("first"))
		if err := s.Save(ctx, "k2", []byte("second")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, _ := s.Load(ctx, "k2")
		if string(got) != "second" {
			t.Errorf("Load() = %s, want %s", got, "second")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s.Save(ctx, "k3", []byte("x"))
		if err := s.Delete(ctx, "k3"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Load(ctx, "k3"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Load() after Delete error = %v, want %v", err, storage.ErrNotFound)
		}
		if err := s.Delete(ctx, "never-saved"); err != nil {
			t.Errorf("Delete() of missing key error = %v, want nil", err)
		}
	})

	t.Run("json helpers", func(t *testing.T) {
		type snapshot struct {
			IDs []string `json:"ids"`
		}
		var empty snapshot
		found, err := storage.LoadJSON(ctx, s, "json", &empty)
		if err != nil || found {
			t.Fatalf("LoadJSON() on missing key = %v, %v, want false, nil", found, err)
		}

		if err := storage.SaveJSON(ctx, s, "json", snapshot{IDs: []string{"a", "b"}}); err != nil {
			t.Fatalf("SaveJSON() error = %v", err)
		}
		var got snapshot
		found, err = storage.LoadJSON(ctx, s, "json", &got)
		if err != nil || !found {
			t.Fatalf("LoadJSON() = %v, %v, want true, nil", found, err)
		}
		if len(got.IDs) != 2 || got.IDs[0] != "a" || got.IDs[1] != "b" {
			t.Errorf("LoadJSON() = %+v, want [a b]", got)
		}
	})
}
