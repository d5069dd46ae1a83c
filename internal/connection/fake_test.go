package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/uday68/commandgrid-sub003/internal/auth"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

var errDialRefused = errors.New("dial refused")

// emitted is one frame written through a fake client.
type emitted struct {
	client int
	event  string
	data   map[string]any
}

func (e emitted) room() string {
	s, _ := e.data["room_id"].(string)
	return s
}

func (e emitted) content() string {
	s, _ := e.data["content"].(string)
	return s
}

// fakeNet records every client the manager creates and every frame it emits.
type fakeNet struct {
	mu      sync.Mutex
	clients []*fakeClient
	log     []emitted

	// dialErr decides the outcome of the n-th dial (1-based). nil succeeds.
	dialErr func(n int) error
	// block makes Connect wait for ctx instead of returning.
	block   bool
	blocked int
	// emitErr decides whether an emit fails; nil always succeeds.
	emitErr func(event string, data map[string]any) error
}

func (n *fakeNet) factory(cfg transport.ClientConfig, _ *slog.Logger) transport.Client {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := &fakeClient{
		net:    n,
		id:     len(n.clients) + 1,
		cfg:    cfg,
		frames: make(chan transport.Frame, 64),
		errs:   make(chan error, 1),
	}
	n.clients = append(n.clients, c)
	return c
}

func (n *fakeNet) dials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (n *fakeNet) blockedDials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blocked
}

func (n *fakeNet) client(i int) *fakeClient {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clients[i]
}

func (n *fakeNet) last() *fakeClient {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clients[len(n.clients)-1]
}

func (n *fakeNet) emits() []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]emitted(nil), n.log...)
}

func (n *fakeNet) emitsOf(event string) []emitted {
	var out []emitted
	for _, e := range n.emits() {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeClient struct {
	net    *fakeNet
	id     int
	cfg    transport.ClientConfig
	frames chan transport.Frame
	errs   chan error

	mu        sync.Mutex
	connected bool
	closed    bool
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.net.mu.Lock()
	dialErr, block := c.net.dialErr, c.net.block
	if block {
		c.net.blocked++
	}
	c.net.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if dialErr != nil {
		if err := dialErr(c.id); err != nil {
			return &transport.ConnectError{URL: c.cfg.URL, Err: err}
		}
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closed = true
	return nil
}

func (c *fakeClient) Emit(event string, data any) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return transport.ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var decoded map[string]any
	json.Unmarshal(raw, &decoded)

	c.net.mu.Lock()
	defer c.net.mu.Unlock()
	if c.net.emitErr != nil {
		if err := c.net.emitErr(event, decoded); err != nil {
			return err
		}
	}
	c.net.log = append(c.net.log, emitted{client: c.id, event: event, data: decoded})
	return nil
}

func (c *fakeClient) Frames() <-chan transport.Frame { return c.frames }
func (c *fakeClient) Errors() <-chan error           { return c.errs }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// push delivers an inbound frame.
func (c *fakeClient) push(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	c.frames <- transport.Frame{Event: event, Data: raw, ReceivedAt: time.Now()}
}

// drop simulates the connection ending.
func (c *fakeClient) drop(reason transport.DisconnectReason) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.errs <- &transport.DisconnectError{Reason: reason, Err: fmt.Errorf("simulated %s drop", reason)}
}

// notes records notifications.
type notes struct {
	mu  sync.Mutex
	all []Notification
}

func (n *notes) Notify(x Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, x)
}

func (n *notes) count(msg string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.all {
		if x.Message == msg {
			c++
		}
	}
	return c
}

func testManagerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.URL = "ws://test.invalid/ws"
	cfg.ReconnectAttempts = 3
	cfg.ReconnectDelay = time.Millisecond
	cfg.ServerReconnectDelay = 5 * time.Millisecond
	cfg.BackgroundRetryInterval = 5 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, cfg ManagerConfig, opts ...Option) (*Manager, *fakeNet, *notes) {
	t.Helper()
	net := &fakeNet{}
	n := &notes{}
	opts = append([]Option{WithClientFactory(net.factory), WithNotifier(n)}, opts...)
	m := NewManager(cfg, nil, opts...)
	t.Cleanup(m.Disconnect)
	return m, net, n
}

var testCreds = auth.Credentials{Token: "test-token"}

func connect(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx, testCreds); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
