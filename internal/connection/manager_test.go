package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/commandgrid-sub003/internal/auth"
	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/monitor"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

func TestManager_ConnectSetsHeaderAndURL(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	connect(t, m)

	c := net.client(0)
	if c.cfg.URL != "ws://test.invalid/ws" {
		t.Errorf("URL = %q, want %q", c.cfg.URL, "ws://test.invalid/ws")
	}
	if got := c.cfg.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
	}
	if m.State() != model.StateConnected {
		t.Errorf("State() = %v, want %v", m.State(), model.StateConnected)
	}
}

func TestManager_ConnectRejectsBadCredentials(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	err := m.Connect(context.Background(), auth.Credentials{})
	if !errors.Is(err, auth.ErrMissingToken) {
		t.Errorf("Connect() error = %v, want %v", err, auth.ErrMissingToken)
	}

	expired := auth.Credentials{Token: "x", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := m.Connect(context.Background(), expired); !errors.Is(err, auth.ErrTokenExpired) {
		t.Errorf("Connect() error = %v, want %v", err, auth.ErrTokenExpired)
	}
	if net.dials() != 0 {
		t.Errorf("dials = %d, want 0", net.dials())
	}
}

func TestManager_RejoinsEachRoomOncePerConnect(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	for _, id := range []string{"r1", "r2"} {
		if _, err := m.JoinRoom(id, RoomHandlers{}); err != nil {
			t.Fatalf("JoinRoom(%s) error = %v", id, err)
		}
	}
	if n := len(net.emitsOf(event.EmitJoinRoom)); n != 0 {
		t.Fatalf("joinRoom emitted %d times while disconnected", n)
	}

	connect(t, m)
	assertJoins(t, net, 1, []string{"r1", "r2"})

	net.client(0).drop(transport.ReasonNetwork)
	waitFor(t, "reconnect", func() bool {
		return net.dials() == 2 && m.State() == model.StateConnected
	})
	assertJoins(t, net, 2, []string{"r1", "r2"})

	if got := len(net.emitsOf(event.EmitJoinRoom)); got != 4 {
		t.Errorf("total joinRoom emits = %d, want 4", got)
	}
}

func assertJoins(t *testing.T, net *fakeNet, client int, want []string) {
	t.Helper()
	var got []string
	for _, e := range net.emitsOf(event.EmitJoinRoom) {
		if e.client == client {
			got = append(got, e.room())
		}
	}
	if len(got) != len(want) {
		t.Fatalf("client %d joins = %v, want %v", client, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("client %d joins = %v, want %v", client, got, want)
			return
		}
	}
}

func TestManager_QueuedMessageSentOnceAfterJoin(t *testing.T) {
	m, net, notes := newTestManager(t, testManagerConfig())

	room, err := m.JoinRoom("r1", RoomHandlers{})
	if err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}

	res, err := room.Send("hi")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Status != Queued {
		t.Errorf("Status = %v, want %v", res.Status, Queued)
	}
	if res.ClientID == uuid.Nil {
		t.Error("ClientID not assigned")
	}
	if notes.count(MsgQueued) != 1 {
		t.Errorf("queued notifications = %d, want 1", notes.count(MsgQueued))
	}

	connect(t, m)

	emits := net.emits()
	if len(emits) != 2 {
		t.Fatalf("emits = %+v, want joinRoom then sendMessage", emits)
	}
	if emits[0].event != event.EmitJoinRoom || emits[0].room() != "r1" {
		t.Errorf("emits[0] = %+v, want joinRoom r1", emits[0])
	}
	if emits[1].event != event.EmitSendMessage || emits[1].content() != "hi" {
		t.Errorf("emits[1] = %+v, want sendMessage hi", emits[1])
	}
	if emits[1].data["client_id"] != res.ClientID.String() {
		t.Errorf("client_id = %v, want %s", emits[1].data["client_id"], res.ClientID)
	}
	if m.Stats().Pending != 0 {
		t.Errorf("Pending = %d, want 0", m.Stats().Pending)
	}
}

func TestManager_FlushPreservesEnqueueOrder(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	for _, c := range []string{"a", "b", "c"} {
		if _, err := m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: c}); err != nil {
			t.Fatalf("SendMessage(%s) error = %v", c, err)
		}
	}
	connect(t, m)

	sends := net.emitsOf(event.EmitSendMessage)
	if len(sends) != 3 {
		t.Fatalf("sendMessage emits = %d, want 3", len(sends))
	}
	for i, want := range []string{"a", "b", "c"} {
		if sends[i].content() != want {
			t.Errorf("sends[%d] = %q, want %q", i, sends[i].content(), want)
		}
	}
}

func TestManager_FlushFailureKeepsRemainderQueued(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	net.emitErr = func(ev string, data map[string]any) error {
		if ev == event.EmitSendMessage && data["content"] == "b" {
			return errors.New("write failed")
		}
		return nil
	}

	for _, c := range []string{"a", "b", "c"} {
		m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: c})
	}
	connect(t, m)

	pending := m.PendingMessages()
	if len(pending) != 2 || pending[0].Payload.Content != "b" || pending[1].Payload.Content != "c" {
		t.Fatalf("pending = %+v, want [b c]", pending)
	}

	net.mu.Lock()
	net.emitErr = nil
	net.mu.Unlock()

	net.client(0).drop(transport.ReasonNetwork)
	waitFor(t, "flush after reconnect", func() bool { return m.Stats().Pending == 0 })

	var got []string
	for _, e := range net.emitsOf(event.EmitSendMessage) {
		got = append(got, e.content())
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("sent = %v, want [a b c]", got)
	}
}

func TestManager_LeaveRoomRemovesFromRejoin(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	m.JoinRoom("r1", RoomHandlers{})
	m.JoinRoom("r2", RoomHandlers{})
	m.LeaveRoom("r1")

	connect(t, m)
	assertJoins(t, net, 1, []string{"r2"})
	if n := len(net.emitsOf(event.EmitLeaveRoom)); n != 0 {
		t.Errorf("leaveRoom emits while disconnected = %d, want 0", n)
	}

	m.LeaveRoom("r2")
	leaves := net.emitsOf(event.EmitLeaveRoom)
	if len(leaves) != 1 || leaves[0].room() != "r2" {
		t.Errorf("leaveRoom emits = %+v, want [r2]", leaves)
	}
	if rooms := m.Rooms(); len(rooms) != 0 {
		t.Errorf("Rooms() = %v, want empty", rooms)
	}

	// Unknown rooms are ignored.
	m.LeaveRoom("nope")
}

func TestManager_RetryBudgetNotifiesOnce(t *testing.T) {
	m, net, notes := newTestManager(t, testManagerConfig())
	net.dialErr = func(int) error { return errDialRefused }

	var mu sync.Mutex
	var states []model.ConnectionState
	m.OnStateChange(func(s model.ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	failures := 0
	m.On(event.KindConnectError, func(event.Event) {
		mu.Lock()
		failures++
		mu.Unlock()
	})

	err := m.Connect(context.Background(), testCreds)
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("Connect() error = %v, want %v", err, ErrConnectionLost)
	}
	if !errors.Is(err, errDialRefused) {
		t.Errorf("Connect() error = %v, want it to wrap %v", err, errDialRefused)
	}
	var cerr *transport.ConnectError
	if !errors.As(err, &cerr) {
		t.Errorf("Connect() error = %v, want *transport.ConnectError in chain", err)
	}

	// Background retries keep going quietly.
	waitFor(t, "background retries", func() bool { return net.dials() >= 6 })

	if got := notes.count(MsgConnectionLost); got != 1 {
		t.Errorf("connection lost notifications = %d, want 1", got)
	}
	if m.State() != model.StateDisconnected {
		t.Errorf("State() = %v, want %v", m.State(), model.StateDisconnected)
	}

	mu.Lock()
	defer mu.Unlock()
	if failures < 6 {
		t.Errorf("connect_error events = %d, want >= 6", failures)
	}
	want := []model.ConnectionState{model.StateConnecting, model.StateDisconnected}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestManager_BackgroundRetryRecovers(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	net.dialErr = func(n int) error {
		if n <= 4 {
			return errDialRefused
		}
		return nil
	}

	if err := m.Connect(context.Background(), testCreds); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("Connect() error = %v, want %v", err, ErrConnectionLost)
	}
	waitFor(t, "background reconnect", func() bool { return m.State() == model.StateConnected })

	if net.dials() != 5 {
		t.Errorf("dials = %d, want 5", net.dials())
	}
	if m.Stats().Attempts != 0 {
		t.Errorf("Attempts = %d, want 0 after connect", m.Stats().Attempts)
	}
}

func TestManager_NetworkOnlineWakesRetry(t *testing.T) {
	cfg := testManagerConfig()
	cfg.BackgroundRetryInterval = 0
	m, net, _ := newTestManager(t, cfg)
	net.dialErr = func(n int) error {
		if n <= 3 {
			return errDialRefused
		}
		return nil
	}

	mon := monitor.New(monitor.Config{}, nil, nil)
	unsubscribe := m.WatchNetwork(mon)
	defer unsubscribe()

	if err := m.Connect(context.Background(), testCreds); !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("Connect() error = %v, want %v", err, ErrConnectionLost)
	}

	time.Sleep(30 * time.Millisecond)
	if net.dials() != 3 {
		t.Fatalf("dials = %d, want 3 while waiting for the network", net.dials())
	}

	mon.Set(false)
	mon.Set(true)

	waitFor(t, "reconnect on network online", func() bool { return m.State() == model.StateConnected })
	if net.dials() != 4 {
		t.Errorf("dials = %d, want 4", net.dials())
	}
}

func TestManager_ServerDisconnectReconnects(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	reasons := make(chan transport.DisconnectReason, 4)
	event.OnType(m.registry, event.KindDisconnect, func(ev event.Disconnected) {
		reasons <- ev.Reason
	})

	connect(t, m)
	net.client(0).drop(transport.ReasonServer)

	select {
	case r := <-reasons:
		if r != transport.ReasonServer {
			t.Errorf("Reason = %v, want %v", r, transport.ReasonServer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}

	waitFor(t, "manual reconnect", func() bool {
		return net.dials() == 2 && m.State() == model.StateConnected
	})
	if !net.client(0).isClosed() {
		t.Error("old client not closed")
	}
}

func TestManager_DisconnectIsTerminal(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	reasons := make(chan transport.DisconnectReason, 4)
	event.OnType(m.registry, event.KindDisconnect, func(ev event.Disconnected) {
		reasons <- ev.Reason
	})

	room, _ := m.JoinRoom("r1", RoomHandlers{})
	connect(t, m)

	m.Disconnect()

	if m.State() != model.StateDisconnected {
		t.Errorf("State() = %v, want %v", m.State(), model.StateDisconnected)
	}
	if !net.client(0).isClosed() {
		t.Error("client not closed")
	}
	if rooms := m.Rooms(); len(rooms) != 0 {
		t.Errorf("Rooms() = %v, want empty", rooms)
	}
	if _, err := room.Send("late"); !errors.Is(err, ErrRoomLeft) {
		t.Errorf("Send() after Disconnect = %v, want %v", err, ErrRoomLeft)
	}
	select {
	case r := <-reasons:
		if r != transport.ReasonClient {
			t.Errorf("Reason = %v, want %v", r, transport.ReasonClient)
		}
	default:
		t.Error("no disconnect event")
	}

	time.Sleep(30 * time.Millisecond)
	if net.dials() != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect after Disconnect)", net.dials())
	}
}

func TestManager_DisconnectClearsPending(t *testing.T) {
	m, _, _ := newTestManager(t, testManagerConfig())

	m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "a"})
	m.Disconnect()

	if m.Stats().Pending != 0 {
		t.Errorf("Pending = %d, want 0", m.Stats().Pending)
	}
}

func TestManager_ConnectSupersedesInFlight(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	net.block = true

	first := make(chan error, 1)
	go func() { first <- m.Connect(context.Background(), testCreds) }()
	waitFor(t, "first dial", func() bool { return net.blockedDials() == 1 })

	net.mu.Lock()
	net.block = false
	net.mu.Unlock()

	connect(t, m)

	select {
	case err := <-first:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("first Connect() = %v, want %v", err, ErrSuperseded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Connect did not return")
	}
	if !net.client(0).isClosed() {
		t.Error("superseded client not closed")
	}
	if m.State() != model.StateConnected {
		t.Errorf("State() = %v, want %v", m.State(), model.StateConnected)
	}
}

func TestManager_ConnectContextOnlyBoundsWait(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	net.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Connect(ctx, testCreds); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if m.State() != model.StateConnecting {
		t.Errorf("State() = %v, want %v", m.State(), model.StateConnecting)
	}
}

func TestManager_DisconnectDuringRejoinSkipsConnectEvent(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	m.JoinRoom("r1", RoomHandlers{})

	var mu sync.Mutex
	var kinds []event.Kind
	record := func(ev event.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind())
	}
	m.On(event.KindConnect, record)
	m.On(event.KindDisconnect, record)

	var once sync.Once
	net.mu.Lock()
	net.emitErr = func(ev string, _ map[string]any) error {
		if ev == event.EmitJoinRoom {
			once.Do(m.Disconnect)
		}
		return nil
	}
	net.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx, testCreds); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Connect() error = %v, want %v", err, ErrSuperseded)
	}

	if got := m.State(); got != model.StateDisconnected {
		t.Errorf("State() = %v, want %v", got, model.StateDisconnected)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, k := range kinds {
		if k == event.KindConnect {
			t.Errorf("events = %v, want no connect after Disconnect", kinds)
			break
		}
	}
}

func TestManager_SendWhenConnected(t *testing.T) {
	m, net, notes := newTestManager(t, testManagerConfig())
	connect(t, m)

	id := uuid.New()
	res, err := m.SendMessage(model.OutgoingMessage{ClientID: id, RoomID: "r1", Content: "live"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if res.Status != Sent || res.ClientID != id {
		t.Errorf("SendMessage() = %+v, want Sent with client id %s", res, id)
	}
	if notes.count(MsgQueued) != 0 {
		t.Error("queued notification for a live send")
	}
	if sends := net.emitsOf(event.EmitSendMessage); len(sends) != 1 || sends[0].content() != "live" {
		t.Errorf("sendMessage emits = %+v, want [live]", sends)
	}

	net.mu.Lock()
	net.emitErr = func(string, map[string]any) error { return errors.New("broken pipe") }
	net.mu.Unlock()
	if _, err := m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "x"}); err == nil {
		t.Error("SendMessage() error = nil on emit failure")
	}
}

func TestManager_SendValidation(t *testing.T) {
	m, _, _ := newTestManager(t, testManagerConfig())
	if _, err := m.SendMessage(model.OutgoingMessage{Content: "x"}); !errors.Is(err, ErrEmptyRoom) {
		t.Errorf("SendMessage() error = %v, want %v", err, ErrEmptyRoom)
	}
	if _, err := m.JoinRoom("", RoomHandlers{}); !errors.Is(err, ErrEmptyRoom) {
		t.Errorf("JoinRoom() error = %v, want %v", err, ErrEmptyRoom)
	}
}

func TestManager_PendingQueueFull(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MaxPending = 2
	m, _, _ := newTestManager(t, cfg)

	for i := 0; i < 2; i++ {
		if _, err := m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "x"}); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}
	if _, err := m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "x"}); !errors.Is(err, ErrPendingQueueFull) {
		t.Errorf("SendMessage() error = %v, want %v", err, ErrPendingQueueFull)
	}
}

func TestManager_PendingTTLDropsExpired(t *testing.T) {
	cfg := testManagerConfig()
	cfg.PendingTTL = 10 * time.Millisecond
	m, net, notes := newTestManager(t, cfg)

	m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "old"})
	time.Sleep(20 * time.Millisecond)
	m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "fresh"})

	connect(t, m)

	sends := net.emitsOf(event.EmitSendMessage)
	if len(sends) != 1 || sends[0].content() != "fresh" {
		t.Errorf("sendMessage emits = %+v, want [fresh]", sends)
	}
	if notes.count(MsgPendingExpired) != 1 {
		t.Errorf("expired notifications = %d, want 1", notes.count(MsgPendingExpired))
	}
}

func TestManager_EmitTypingSkippedWhileDisconnected(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())
	sent, err := m.EmitTyping("r1")
	if err != nil || sent {
		t.Errorf("EmitTyping() offline = %v, %v, want false, nil", sent, err)
	}
	if n := len(net.emitsOf(event.EmitTyping)); n != 0 {
		t.Errorf("typing emits while offline = %d, want 0", n)
	}
	if n := m.Stats().Pending; n != 0 {
		t.Errorf("Pending = %d, want 0", n)
	}

	connect(t, m)
	sent, err = m.EmitTyping("r1")
	if err != nil || !sent {
		t.Fatalf("EmitTyping() = %v, %v, want true, nil", sent, err)
	}
	typing := net.emitsOf(event.EmitTyping)
	if len(typing) != 1 || typing[0].room() != "r1" || typing[0].data["is_typing"] != true {
		t.Errorf("typing emits = %+v, want one for r1", typing)
	}
}

func TestManager_HandlersRunInOrderAndPanicsAreIsolated(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	var mu sync.Mutex
	var calls []string
	m.On(event.KindNewMessage, func(event.Event) {
		mu.Lock()
		calls = append(calls, "A")
		mu.Unlock()
		panic("handler A failed")
	})
	sub := m.On(event.KindNewMessage, func(ev event.Event) {
		mu.Lock()
		calls = append(calls, "B:"+ev.(event.NewMessage).Message.Content)
		mu.Unlock()
	})

	connect(t, m)
	net.client(0).push(t, "newMessage", model.Message{MessageID: "m1", RoomID: "r1", Content: "hello"})

	waitFor(t, "handler B", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 2
	})
	mu.Lock()
	if calls[0] != "A" || calls[1] != "B:hello" {
		t.Errorf("calls = %v, want [A B:hello]", calls)
	}
	mu.Unlock()

	m.Off(sub)
	if m.registry.Count(event.KindNewMessage) != 1 {
		t.Errorf("handlers after Off = %d, want 1", m.registry.Count(event.KindNewMessage))
	}
}

func TestManager_StateListenersSeeOrderedTransitions(t *testing.T) {
	m, net, _ := newTestManager(t, testManagerConfig())

	var mu sync.Mutex
	var states []model.ConnectionState
	unsubscribe := m.OnStateChange(func(s model.ConnectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	connect(t, m)
	net.client(0).drop(transport.ReasonNetwork)
	waitFor(t, "reconnect", func() bool { return net.dials() == 2 && m.State() == model.StateConnected })

	unsubscribe()
	m.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	want := []model.ConnectionState{
		model.StateConnecting, model.StateConnected,
		model.StateConnecting, model.StateConnected,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v, want %v", states, want)
			break
		}
	}
}

func TestManager_Stats(t *testing.T) {
	m, _, _ := newTestManager(t, testManagerConfig())
	m.JoinRoom("r1", RoomHandlers{})
	m.SendMessage(model.OutgoingMessage{RoomID: "r1", Content: "x"})

	stats := m.Stats()
	if stats.State != model.StateDisconnected {
		t.Errorf("State = %v, want %v", stats.State, model.StateDisconnected)
	}
	if stats.Rooms != 1 {
		t.Errorf("Rooms = %d, want 1", stats.Rooms)
	}
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stats.Pending)
	}

	connect(t, m)
	stats = m.Stats()
	if stats.Connects != 1 || stats.Pending != 0 {
		t.Errorf("Stats() = %+v, want 1 connect and nothing pending", stats)
	}
}
