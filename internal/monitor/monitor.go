package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober checks whether the backend is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// ProberFunc is a function adapter for Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Config holds monitor configuration.
type Config struct {
	ProbeInterval time.Duration // Probe period; 0 disables the probe loop
	ProbeTimeout  time.Duration // Per-probe timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 15 * time.Second,
		ProbeTimeout:  5 * time.Second,
	}
}

type listener struct {
	id uint64
	fn func(online bool)
}

// Monitor tracks environment-level connectivity.
type Monitor struct {
	cfg    Config
	prober Prober
	logger *slog.Logger

	mu        sync.Mutex
	online    bool
	listeners []listener
	nextID    uint64

	// Serialises notification passes so listeners observe transitions in order.
	notifyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor. The initial state is online. prober may be nil when
// connectivity is only driven through Set.
func New(cfg Config, prober Prober, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Monitor{
		cfg:    cfg,
		prober: prober,
		logger: logger,
		online: true,
	}
}

// AddListener registers fn for online/offline transitions and returns a
// function that removes it. Calling the returned function more than once is
// a no-op. Listeners must not call Set synchronously.
func (m *Monitor) AddListener(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

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

// Online returns the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the current connectivity. Listeners are invoked once, in
// registration order, only when the value changes.
func (m *Monitor) Set(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)

	for _, l := range listeners {
		m.notify(l, online)
	}
}

func (m *Monitor) notify(l listener, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connectivity listener panicked",
				"listener", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(online)
}

// Check probes the backend once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.prober.Ping(ctx)
	if err != nil {
		m.logger.Debug("connectivity probe failed", "error", err)
	}

	online := err == nil
	m.Set(online)
	return online
}

// Start begins the probe loop. It is a no-op without a prober or interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if m.prober == nil || m.cfg.ProbeInterval <= 0 {
		return nil
	}

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection monitor started",
		"interval", m.cfg.ProbeInterval,
		"timeout", m.cfg.ProbeTimeout,
	)

	return nil
}

// Stop shuts down the probe loop.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the probe loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	// Probe immediately on start.
	m.Check(m.ctx)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Check(m.ctx)
		}
	}
}
