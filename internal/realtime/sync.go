package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/storage"
)

const syncKey = "offline-sync"

// SyncOfflineData replays the queue once. Calls made while a pass is running
// wait for that pass and receive its result.
func (m *Manager) SyncOfflineData(ctx context.Context) (SyncResult, error) {
	v, err, shared := m.group.Do(syncKey, func() (any, error) {
		return m.syncPass(ctx)
	})
	if shared {
		m.logger.Debug("joined in-flight sync")
	}
	res, _ := v.(SyncResult)
	return res, err
}

func (m *Manager) syncInBackground() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		res, err := m.SyncOfflineData(m.ctx)
		if err != nil {
			// Failed entries stay queued for the next reconnect.
			m.logger.Warn("offline sync incomplete",
				"replayed", res.Replayed,
				"failed", res.Failed,
				"skipped", res.Skipped,
				"error", err,
			)
		}
	}()
}

// syncPass replays a snapshot of the queue in order. Operations appended
// while the pass runs are not part of the snapshot and stay queued.
func (m *Manager) syncPass(ctx context.Context) (SyncResult, error) {
	m.syncing.Store(true)
	defer m.syncing.Store(false)
	m.passes.Add(1)

	m.persistMu.Lock()
	err := m.restoreLocked(ctx)
	m.persistMu.Unlock()
	if err != nil {
		return SyncResult{}, err
	}

	start := m.now()
	snapshot := m.Pending()
	if len(snapshot) == 0 {
		return SyncResult{}, nil
	}
	m.logger.Info("syncing offline operations", "pending", len(snapshot))

	var res SyncResult
	done := make(map[uuid.UUID]bool, len(snapshot))
	failed := make(map[uuid.UUID]bool)

	for _, op := range snapshot {
		if ctx.Err() != nil {
			res.Skipped++
			continue
		}
		if err := m.replayer.Replay(ctx, op); err != nil {
			res.Failed++
			failed[op.ID] = true
			m.logger.Warn("offline operation replay failed",
				"id", op.ID,
				"type", op.Type,
				"attempts", op.Attempts+1,
				"error", err,
			)
			continue
		}
		res.Replayed++
		done[op.ID] = true
	}
	res.Duration = m.now().Sub(start)

	if err := m.commit(ctx, done, failed); err != nil {
		return res, err
	}

	if res.Failed > 0 || res.Skipped > 0 {
		return res, fmt.Errorf("%w: %d of %d operations not replayed",
			ErrSyncPartialFailure, res.Failed+res.Skipped, len(snapshot))
	}

	at := m.now().UTC()
	m.mu.Lock()
	m.lastSync = at
	m.mu.Unlock()
	if err := storage.SaveJSON(ctx, m.store, KeyLastSync, lastSyncRecord{Timestamp: at.UnixMilli()}); err != nil {
		return res, fmt.Errorf("persist last sync: %w", err)
	}

	m.logger.Info("offline sync complete", "replayed", res.Replayed, "duration", res.Duration)
	return res, nil
}

// commit removes replayed operations, bumps the attempt counter of failed
// ones and persists the result.
func (m *Manager) commit(ctx context.Context, done, failed map[uuid.UUID]bool) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	kept := m.queue[:0:0]
	for _, op := range m.queue {
		if done[op.ID] {
			continue
		}
		if failed[op.ID] {
			op.Attempts++
		}
		kept = append(kept, op)
	}
	m.queue = kept
	snapshot := append([]model.OfflineOperation(nil), kept...)
	m.mu.Unlock()

	// Persist with a fresh context so a cancelled pass still records
	// what it replayed.
	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := storage.SaveJSON(saveCtx, m.store, KeyOfflineQueue, snapshot); err != nil {
		return fmt.Errorf("persist offline queue: %w", err)
	}
	return nil
}
