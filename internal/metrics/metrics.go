package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uday68/commandgrid-sub003/internal/connection"
	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/realtime"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "realtime"

// ConnectionSource is the part of connection.Manager that metrics reads.
type ConnectionSource interface {
	Stats() connection.ManagerStats
	On(kind event.Kind, h event.Handler) event.Subscription
	Off(sub event.Subscription)
}

// OfflineSource is the part of realtime.Manager that metrics reads.
type OfflineSource interface {
	Stats() realtime.Stats
}

// NetworkSource reports environment connectivity.
type NetworkSource interface {
	Online() bool
}

// Metrics owns a private Prometheus registry for one client process.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	connects      prometheus.Counter
	disconnects   *prometheus.CounterVec
	connectErrors prometheus.Counter
	inbound       *prometheus.CounterVec
	historyItems  prometheus.Counter

	mu   sync.Mutex
	subs []func()
}

// New creates Metrics with Go runtime and process collectors registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful websocket connections, including reconnects",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connection drops by reason",
		}, []string{"reason"}),
		connectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_errors_total",
			Help:      "Failed connection attempts",
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Decoded server events by kind",
		}, []string{"kind"}),
		historyItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_messages_total",
			Help:      "Messages delivered through messageHistory events",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connects,
		m.disconnects,
		m.connectErrors,
		m.inbound,
		m.historyItems,
	)

	for _, r := range []transport.DisconnectReason{transport.ReasonNetwork, transport.ReasonServer, transport.ReasonClient} {
		m.disconnects.WithLabelValues(r.String())
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WatchConnection counts lifecycle and inbound events from src and exports
// its queue and room gauges.
func (m *Metrics) WatchConnection(src ConnectionSource) {
	gauge := func(name, help string, fn func(connection.ManagerStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(src.Stats()) })
	}

	m.registry.MustRegister(
		gauge("connection_state", "0 unknown, 1 disconnected, 2 connecting, 3 connected",
			func(s connection.ManagerStats) float64 { return float64(s.State) }),
		gauge("rooms", "Tracked rooms",
			func(s connection.ManagerStats) float64 { return float64(s.Rooms) }),
		gauge("pending_messages", "Outgoing messages waiting for a connection",
			func(s connection.ManagerStats) float64 { return float64(s.Pending) }),
		gauge("reconnect_attempts", "Failed attempts in the current retry cycle",
			func(s connection.ManagerStats) float64 { return float64(s.Attempts) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "pending_dropped_total",
			Help:      "Pending messages dropped on overflow, expiry or disconnect",
		}, func() float64 { return float64(src.Stats().Queue.TotalDropped) }),
	)

	subs := []event.Subscription{
		src.On(event.KindConnect, func(event.Event) { m.connects.Inc() }),
		src.On(event.KindConnectError, func(event.Event) { m.connectErrors.Inc() }),
		src.On(event.KindDisconnect, func(ev event.Event) {
			if d, ok := ev.(event.Disconnected); ok {
				m.disconnects.WithLabelValues(d.Reason.String()).Inc()
			}
		}),
		src.On(event.KindMessageHistory, func(ev event.Event) {
			if h, ok := ev.(event.MessageHistory); ok {
				m.historyItems.Add(float64(len(h.Messages)))
			}
		}),
	}
	for _, kind := range []event.Kind{
		event.KindNewMessage,
		event.KindMessageHistory,
		event.KindActiveUsers,
		event.KindTyping,
		event.KindError,
	} {
		counter := m.inbound.WithLabelValues(kind.String())
		subs = append(subs, src.On(kind, func(event.Event) { counter.Inc() }))
	}

	m.mu.Lock()
	m.subs = append(m.subs, func() {
		for _, sub := range subs {
			src.Off(sub)
		}
	})
	m.mu.Unlock()
}

// WatchOffline exports the offline operation queue.
func (m *Metrics) WatchOffline(src OfflineSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "offline_operations",
			Help:      "Offline operations waiting to be replayed",
		}, func() float64 { return float64(src.Stats().Pending) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "offline_sync_passes_total",
			Help:      "Offline sync passes run",
		}, func() float64 { return float64(src.Stats().Passes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "offline_last_sync_timestamp_seconds",
			Help:      "Unix time of the last fully successful sync, 0 if never",
		}, func() float64 {
			last := src.Stats().LastSync
			if last.IsZero() {
				return 0
			}
			return float64(last.UnixMilli()) / 1000
		}),
	)
}

// WatchNetwork exports environment connectivity.
func (m *Metrics) WatchNetwork(src NetworkSource) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "network_online",
		Help:      "1 when the connectivity probe last succeeded",
	}, func() float64 {
		if src.Online() {
			return 1
		}
		return 0
	}))
}

// Close removes the event handlers added by WatchConnection.
func (m *Metrics) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, unsubscribe := range subs {
		unsubscribe()
	}
}
