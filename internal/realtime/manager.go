package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/storage"
)

// Manager owns the connection status and the offline operation queue.
type Manager struct {
	store    storage.Store
	replayer Replayer
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	group   singleflight.Group
	syncing atomic.Bool
	passes  atomic.Int64

	// obsMu serializes status transitions with listener delivery.
	obsMu     sync.Mutex
	persistMu sync.Mutex

	mu        sync.Mutex
	status    model.ConnectionState
	listeners []statusListener
	nextID    uint64
	queue     []model.OfflineOperation
	restored  bool
	lastSync  time.Time
	closed    bool
}

type statusListener struct {
	id uint64
	fn func(model.ConnectionState)
}

// NewManager creates a Manager in the Unknown state.
func NewManager(store storage.Store, replayer Replayer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		replayer: replayer,
		logger:   logger.With("component", "realtime"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start loads the persisted queue and last sync time. Operations queued
// before Start are kept after the loaded ones.
func (m *Manager) Start(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	return m.restoreLocked(ctx)
}

// restoreLocked merges the stored queue in front of the in-memory one the
// first time it runs. Must be called with persistMu held.
func (m *Manager) restoreLocked(ctx context.Context) error {
	m.mu.Lock()
	restored := m.restored
	m.mu.Unlock()
	if restored {
		return nil
	}

	var loaded []model.OfflineOperation
	if _, err := storage.LoadJSON(ctx, m.store, KeyOfflineQueue, &loaded); err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}
	var rec lastSyncRecord
	found, err := storage.LoadJSON(ctx, m.store, KeyLastSync, &rec)
	if err != nil {
		return fmt.Errorf("load last sync: %w", err)
	}

	m.mu.Lock()
	m.queue = mergeQueues(loaded, m.queue)
	if found && rec.Timestamp > 0 {
		m.lastSync = time.UnixMilli(rec.Timestamp).UTC()
	}
	m.restored = true
	pending := len(m.queue)
	m.mu.Unlock()

	m.logger.Info("offline queue loaded", "pending", pending, "last_sync", rec.Timestamp)
	return nil
}

// mergeQueues appends later to stored, skipping IDs already present.
func mergeQueues(stored, later []model.OfflineOperation) []model.OfflineOperation {
	out := make([]model.OfflineOperation, 0, len(stored)+len(later))
	seen := make(map[uuid.UUID]bool, len(stored)+len(later))
	for _, ops := range [][]model.OfflineOperation{stored, later} {
		for _, op := range ops {
			if seen[op.ID] {
				continue
			}
			seen[op.ID] = true
			out = append(out, op)
		}
	}
	return out
}

// Close stops background syncs and waits for them to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Status returns the current connection status.
func (m *Manager) Status() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe calls fn with the current status, then with every transition.
// fn must not call Observe or Subscribe.
func (m *Manager) Subscribe(fn func(model.ConnectionState)) (unsubscribe func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, statusListener{id: id, fn: fn})
	current := m.status
	m.mu.Unlock()

	m.call(fn, current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Observe records an online/offline observation. Listeners run only when
// the status changes. Moving from Disconnected to Connected starts a
// background sync.
func (m *Manager) Observe(online bool) {
	next := model.StateDisconnected
	if online {
		next = model.StateConnected
	}

	m.obsMu.Lock()
	m.mu.Lock()
	prev := m.status
	if prev == next {
		m.mu.Unlock()
		m.obsMu.Unlock()
		return
	}
	m.status = next
	listeners := append([]statusListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		m.call(l.fn, next)
	}
	m.obsMu.Unlock()

	m.logger.Info("status changed", "from", prev.String(), "to", next.String())
	if prev == model.StateDisconnected && next == model.StateConnected {
		m.syncInBackground()
	}
}

// Watch feeds src's current value and every later change into Observe.
func (m *Manager) Watch(src StatusSource) (unsubscribe func()) {
	unsubscribe = src.AddListener(m.Observe)
	m.Observe(src.Online())
	return unsubscribe
}

func (m *Manager) call(fn func(model.ConnectionState), s model.ConnectionState) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("status listener panicked", "state", s.String(), "panic", p)
		}
	}()
	fn(s)
}

// QueueOfflineOperation stamps op with an ID (when missing) and the current
// time, appends it to the queue and persists the queue.
// The operation stays queued even if persisting fails.
func (m *Manager) QueueOfflineOperation(ctx context.Context, op model.OfflineOperation) (model.OfflineOperation, error) {
	if op.Type == "" {
		return op, ErrMissingType
	}
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	op.Timestamp = m.now().UTC()
	op.Attempts = 0

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if m.isClosed() {
		return op, ErrClosed
	}
	// The stored queue has to be merged first or the save below would
	// overwrite it.
	if err := m.restoreLocked(ctx); err != nil {
		return op, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return op, ErrClosed
	}
	m.queue = append(m.queue, op)
	snapshot := append([]model.OfflineOperation(nil), m.queue...)
	m.mu.Unlock()

	m.logger.Debug("offline operation queued", "id", op.ID, "type", op.Type, "pending", len(snapshot))

	if err := storage.SaveJSON(ctx, m.store, KeyOfflineQueue, snapshot); err != nil {
		return op, fmt.Errorf("persist offline queue: %w", err)
	}
	return op, nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Pending returns a copy of the queued operations in replay order.
func (m *Manager) Pending() []model.OfflineOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OfflineOperation(nil), m.queue...)
}

// LastSync returns when the queue was last fully replayed, or the zero time.
func (m *Manager) LastSync() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Status:   m.status,
		Pending:  len(m.queue),
		Syncing:  m.syncing.Load(),
		Passes:   m.passes.Load(),
		LastSync: m.lastSync,
	}
}
