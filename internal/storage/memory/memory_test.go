package memory

import (
	"context"
	"testing"

	"github.com/uday68/commandgrid-sub003/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, New())
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Save(ctx, "k", []byte("abc"))

	got, _ := s.Load(ctx, "k")
	got[0] = 'x'

	again, _ := s.Load(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Load() = %s, want %s", again, "abc")
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, "k", nil); err == nil {
		t.Error("Save() with cancelled context error = nil")
	}
}
