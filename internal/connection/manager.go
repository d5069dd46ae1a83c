package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/commandgrid-sub003/internal/auth"
	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/queue"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the transport constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// WithNotifier sets the user notification sink.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithHistory sets the REST source used by RoomSession.History.
func WithHistory(h HistoryFetcher) Option {
	return func(m *Manager) {
		m.history = h
	}
}

type stateListener struct {
	id uint64
	fn func(model.ConnectionState)
}

// Manager maintains the shared realtime connection.
type Manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	newClient ClientFactory
	notifier  Notifier
	history   HistoryFetcher
	registry  *event.Registry
	pending   *queue.Queue[model.PendingMessage]

	// wake interrupts a retry wait when the network comes back.
	wake chan struct{}

	// sendMu serialises every emit so a flush cannot be overtaken.
	// Lock order: sendMu, then mu.
	sendMu sync.Mutex

	mu        sync.Mutex
	state     model.ConnectionState
	gen       uint64
	cancel    context.CancelFunc
	creds     auth.Credentials
	hasCreds  bool
	client    transport.Client // live client; nil unless connected
	rooms     map[string]*RoomSession
	roomSeq   uint64
	attempts  int
	connects  int64
	listeners []stateListener
	nextID    uint64

	// Ordered delivery of state changes.
	stateQueue []model.ConnectionState
	delivering bool
}

// NewManager creates a new Connection Manager in the Disconnected state.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = def.ReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.ServerReconnectDelay <= 0 {
		cfg.ServerReconnectDelay = def.ServerReconnectDelay
	}
	if cfg.BackgroundRetryInterval < 0 {
		cfg.BackgroundRetryInterval = 0
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}
	if cfg.TypingThrottle <= 0 {
		cfg.TypingThrottle = def.TypingThrottle
	}
	if cfg.TypingExpiry <= 0 {
		cfg.TypingExpiry = def.TypingExpiry
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		newClient: transport.NewClient,
		registry:  event.NewRegistry(logger),
		pending:   queue.New[model.PendingMessage](16, cfg.MaxPending),
		wake:      make(chan struct{}, 1),
		state:     model.StateDisconnected,
		rooms:     make(map[string]*RoomSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = logNotifier{logger: logger}
	}
	return m
}

// Connect starts a new connection generation with creds, superseding any
// attempt in flight. It blocks until the first successful connect, until the
// retry budget is spent, or until ctx is done. Giving up on ctx only stops
// the wait; retries continue until Disconnect.
func (m *Manager) Connect(ctx context.Context, creds auth.Credentials) error {
	if err := creds.Validate(time.Now()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	m.mu.Lock()
	prevCancel, prevClient := m.cancel, m.client
	m.gen++
	gen := m.gen
	supCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.creds = creds
	m.hasCreds = true
	m.client = nil
	m.attempts = 0
	m.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevClient != nil {
		prevClient.Close()
	}

	m.setState(gen, model.StateConnecting)

	ready := make(chan error, 1)
	go m.supervise(supCtx, gen, ready)

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect ends the connection on the caller's behalf. Rooms and pending
// messages are discarded and no reconnection is attempted.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, client := m.cancel, m.client
	m.gen++
	gen := m.gen
	m.cancel = nil
	m.client = nil
	m.hasCreds = false
	m.creds = auth.Credentials{}
	m.attempts = 0
	rooms := m.rooms
	m.rooms = make(map[string]*RoomSession)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}
	for _, s := range rooms {
		s.detach()
	}
	if n := m.pending.Clear(); n > 0 {
		m.logger.Info("discarded pending messages", "count", n)
	}

	wasActive := m.setState(gen, model.StateDisconnected)
	if wasActive {
		m.registry.Dispatch(event.Disconnected{Reason: transport.ReasonClient})
	}
	m.logger.Info("disconnected by client")
}

// JoinRoom tracks roomID and registers handlers for it. Joining a room that
// is already tracked adds the handlers to the existing session. joinRoom is
// emitted now if connected, otherwise on the next connect.
func (m *Manager) JoinRoom(roomID string, h RoomHandlers) (*RoomSession, error) {
	if roomID == "" {
		return nil, ErrEmptyRoom
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	s, exists := m.rooms[roomID]
	if !exists {
		m.roomSeq++
		s = newRoomSession(m, roomID, m.roomSeq)
		m.rooms[roomID] = s
	}
	client := m.client
	m.mu.Unlock()

	s.addHandlers(h)

	if exists {
		return s, nil
	}
	if client != nil {
		if err := client.Emit(event.EmitJoinRoom, event.RoomRef{RoomID: roomID}); err != nil {
			// The room stays tracked and is joined on reconnect.
			m.logger.Warn("join emit failed", "room", roomID, "error", err)
		}
	}
	m.logger.Debug("room joined", "room", roomID, "connected", client != nil)
	return s, nil
}

// LeaveRoom stops tracking roomID and removes its handlers. Messages already
// queued for the room are still sent.
func (m *Manager) LeaveRoom(roomID string) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	s, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	client := m.client
	m.mu.Unlock()

	if !ok {
		return
	}
	s.detach()

	if client != nil {
		if err := client.Emit(event.EmitLeaveRoom, event.RoomRef{RoomID: roomID}); err != nil {
			m.logger.Warn("leave emit failed", "room", roomID, "error", err)
		}
	}
	m.logger.Debug("room left", "room", roomID)
}

// Rooms returns the tracked room ids in join order.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomIDsLocked()
}

// SendMessage emits msg if connected. Otherwise msg is queued and the user is
// told it will be sent on reconnect; queueing is not an error.
func (m *Manager) SendMessage(msg model.OutgoingMessage) (SendResult, error) {
	if msg.RoomID == "" {
		return SendResult{}, ErrEmptyRoom
	}
	if msg.ClientID == uuid.Nil {
		msg.ClientID = uuid.New()
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client != nil {
		if err := client.Emit(event.EmitSendMessage, msg); err != nil {
			return SendResult{ClientID: msg.ClientID}, fmt.Errorf("send message: %w", err)
		}
		return SendResult{Status: Sent, ClientID: msg.ClientID}, nil
	}

	if !m.pending.Push(model.PendingMessage{Payload: msg, EnqueuedAt: time.Now()}) {
		m.logger.Warn("pending queue full", "room", msg.RoomID, "limit", m.cfg.MaxPending)
		return SendResult{ClientID: msg.ClientID}, ErrPendingQueueFull
	}
	m.notifier.Notify(Notification{Severity: SeverityInfo, Message: MsgQueued})
	return SendResult{Status: Queued, ClientID: msg.ClientID}, nil
}

// EmitTyping sends a typing indicator for roomID and reports whether it was
// written. Typing is never queued: while disconnected it does nothing.
func (m *Manager) EmitTyping(roomID string) (bool, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		m.logger.Debug("typing skipped while disconnected", "room", roomID)
		return false, nil
	}
	if err := client.Emit(event.EmitTyping, event.TypingSignal{RoomID: roomID, IsTyping: true}); err != nil {
		return false, err
	}
	return true, nil
}

// On registers a handler for kind.
func (m *Manager) On(kind event.Kind, h event.Handler) event.Subscription {
	return m.registry.On(kind, h)
}

// Off removes a handler registered with On.
func (m *Manager) Off(sub event.Subscription) {
	m.registry.Off(sub)
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers fn for every state transition. Transitions are
// delivered in order, never concurrently.
func (m *Manager) OnStateChange(fn func(model.ConnectionState)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, stateListener{id: id, fn: fn})
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

// WatchNetwork wakes the retry loop whenever src reports the network is back.
func (m *Manager) WatchNetwork(src OnlineSource) (unsubscribe func()) {
	return src.AddListener(func(online bool) {
		if !online {
			m.logger.Info("network offline")
			return
		}
		m.mu.Lock()
		idle := m.hasCreds && m.client == nil
		m.mu.Unlock()
		if idle {
			m.logger.Info("network online, retrying connection")
			m.Wake()
		}
	})
}

// Wake interrupts the current retry wait, if any.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		State:      m.state,
		Rooms:      len(m.rooms),
		Pending:    m.pending.Len(),
		Attempts:   m.attempts,
		Connects:   m.connects,
		Generation: m.gen,
		Queue:      m.pending.Stats(),
	}
}

// PendingMessages returns a copy of the pending queue, oldest first.
func (m *Manager) PendingMessages() []model.PendingMessage {
	return m.pending.Snapshot()
}

// roomIDsLocked must be called with mu held.
func (m *Manager) roomIDsLocked() []string {
	sessions := make([]*RoomSession, 0, len(m.rooms))
	for _, s := range m.rooms {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.id
	}
	return ids
}

// setState records a transition for generation gen and delivers it to
// listeners in order. Returns false if gen is stale or the state is unchanged.
func (m *Manager) setState(gen uint64, s model.ConnectionState) bool {
	m.mu.Lock()
	if gen != m.gen || m.state == s {
		m.mu.Unlock()
		return false
	}
	prev := m.state
	m.state = s
	m.stateQueue = append(m.stateQueue, s)
	if m.delivering {
		m.mu.Unlock()
		return true
	}
	m.delivering = true
	for len(m.stateQueue) > 0 {
		next := m.stateQueue[0]
		m.stateQueue = m.stateQueue[1:]
		listeners := append([]stateListener(nil), m.listeners...)
		m.mu.Unlock()

		for _, l := range listeners {
			m.callListener(l, next)
		}

		m.mu.Lock()
	}
	m.delivering = false
	m.mu.Unlock()

	m.logger.Debug("state changed", "from", prev.String(), "to", s.String())
	return true
}

func (m *Manager) callListener(l stateListener, s model.ConnectionState) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("state listener panicked", "state", s.String(), "panic", p)
		}
	}()
	l.fn(s)
}
