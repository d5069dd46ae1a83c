package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/uday68/commandgrid-sub003/internal/model"
)

// Storage keys.
const (
	KeyOfflineQueue = "_offline_queue"
	KeyLastSync     = "_last_sync"
)

var (
	// ErrSyncPartialFailure means at least one operation failed to replay and
	// was kept for the next pass.
	ErrSyncPartialFailure = errors.New("offline sync partially failed")

	// ErrMissingType is returned when an operation has no type.
	ErrMissingType = errors.New("offline operation type is required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("realtime manager closed")
)

// Replayer submits one deferred operation to the backend.
type Replayer interface {
	Replay(ctx context.Context, op model.OfflineOperation) error
}

// ReplayerFunc adapts a function to Replayer.
type ReplayerFunc func(ctx context.Context, op model.OfflineOperation) error

// Replay calls f.
func (f ReplayerFunc) Replay(ctx context.Context, op model.OfflineOperation) error {
	return f(ctx, op)
}

// StatusSource reports environment-level connectivity.
type StatusSource interface {
	Online() bool
	AddListener(fn func(online bool)) (unsubscribe func())
}

// SyncResult summarizes one replay pass.
type SyncResult struct {
	Replayed int           // removed from the queue
	Failed   int           // kept with Attempts incremented
	Skipped  int           // not attempted because the context ended
	Duration time.Duration
}

// Stats is a point-in-time view for status reporting.
type Stats struct {
	Status   model.ConnectionState `json:"status"`
	Pending  int                   `json:"pending"`
	Syncing  bool                  `json:"syncing"`
	Passes   int64                 `json:"passes"`
	LastSync time.Time             `json:"last_sync,omitzero"`
}

// lastSyncRecord is the persisted form of the last successful sync.
type lastSyncRecord struct {
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}
