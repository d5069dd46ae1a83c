package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/transport"
	"github.com/uday68/commandgrid-sub003/internal/version"
)

// supervise owns one connection generation: it dials, pumps inbound frames
// and reconnects until ctx is cancelled. The outcome of the first retry
// cycle is reported on ready.
func (m *Manager) supervise(ctx context.Context, gen uint64, ready chan<- error) {
	logger := m.logger.With("gen", gen)
	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			ready <- err
		}
	}
	defer report(ErrSuperseded)

	attempt := 0
	exhausted := false

	for {
		client, err := m.dial(ctx, gen)
		if ctx.Err() != nil {
			if client != nil {
				client.Close()
			}
			return
		}

		if err != nil {
			attempt++
			m.mu.Lock()
			m.attempts = attempt
			m.mu.Unlock()

			m.registry.Dispatch(event.ConnectFailed{Attempt: attempt, Err: err})

			if exhausted {
				logger.Debug("background reconnect failed", "attempt", attempt, "error", err)
			} else {
				logger.Warn("connect attempt failed",
					"attempt", attempt,
					"budget", m.cfg.ReconnectAttempts,
					"error", err,
				)
			}

			if !exhausted && attempt >= m.cfg.ReconnectAttempts {
				exhausted = true
				m.setState(gen, model.StateDisconnected)
				m.notifier.Notify(Notification{Severity: SeverityError, Message: MsgConnectionLost})
				report(fmt.Errorf("%w after %d attempts: %w", ErrConnectionLost, attempt, err))
			}

			delay := m.cfg.ReconnectDelay
			if exhausted {
				delay = m.cfg.BackgroundRetryInterval
			}
			if !m.sleep(ctx, delay) {
				return
			}
			continue
		}

		if !m.attach(gen, client, attempt+1) {
			client.Close()
			return
		}
		attempt = 0
		exhausted = false
		report(nil)

		reason, err := m.pump(ctx, client)
		if ctx.Err() != nil {
			return
		}
		m.detach(gen, client, reason, err)

		delay := m.cfg.ReconnectDelay
		if reason == transport.ReasonServer {
			// The server will not bring us back on its own.
			logger.Info("server closed connection, reconnecting manually", "delay", m.cfg.ServerReconnectDelay)
			delay = m.cfg.ServerReconnectDelay
		} else {
			logger.Warn("connection dropped, reconnecting", "reason", reason.String(), "error", err)
		}
		if !m.sleep(ctx, delay) {
			return
		}
	}
}

// dial builds a fresh transport client for generation gen and connects it.
func (m *Manager) dial(ctx context.Context, gen uint64) (transport.Client, error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil, ErrSuperseded
	}
	creds := m.creds
	m.mu.Unlock()

	cfg := m.cfg.Transport
	cfg.URL = m.cfg.URL
	cfg.Header = creds.Header()
	cfg.Header.Set("User-Agent", version.UserAgent())

	client := m.newClient(cfg, m.logger.With("gen", gen))
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// attach installs client as the live connection, rejoins every tracked room
// and flushes the pending queue before any other emit can run.
func (m *Manager) attach(gen uint64, client transport.Client, attempt int) bool {
	m.sendMu.Lock()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.sendMu.Unlock()
		return false
	}
	m.client = client
	m.attempts = 0
	m.connects++
	select {
	case <-m.wake:
	default:
	}
	rooms := m.roomIDsLocked()
	m.mu.Unlock()

	for _, id := range rooms {
		if err := client.Emit(event.EmitJoinRoom, event.RoomRef{RoomID: id}); err != nil {
			m.logger.Warn("rejoin failed", "room", id, "error", err)
		}
	}
	sent, err := m.flushLocked(client)
	m.sendMu.Unlock()

	if err != nil {
		m.logger.Warn("pending flush interrupted", "sent", sent, "remaining", m.pending.Len(), "error", err)
	}
	m.logger.Info("connected", "rooms", len(rooms), "flushed", sent)

	// A Disconnect or newer Connect during rejoin retires this generation.
	if !m.setState(gen, model.StateConnected) {
		return false
	}
	m.registry.Dispatch(event.Connected{At: time.Now(), Attempt: attempt})
	return true
}

// flushLocked drains the pending queue in order. A message leaves the queue
// only once its emit succeeds. Must be called with sendMu held.
func (m *Manager) flushLocked(client transport.Client) (int, error) {
	sent, expired := 0, 0
	for {
		pm, ok := m.pending.Peek()
		if !ok {
			break
		}
		if m.cfg.PendingTTL > 0 && time.Since(pm.EnqueuedAt) > m.cfg.PendingTTL {
			m.pending.Drop()
			expired++
			m.logger.Warn("dropping expired pending message",
				"room", pm.Payload.RoomID,
				"client_id", pm.Payload.ClientID,
				"age", time.Since(pm.EnqueuedAt),
			)
			continue
		}
		if err := client.Emit(event.EmitSendMessage, pm.Payload); err != nil {
			return sent, err
		}
		m.pending.Pop()
		sent++
	}
	if expired > 0 {
		m.notifier.Notify(Notification{Severity: SeverityWarning, Message: MsgPendingExpired})
	}
	return sent, nil
}

// pump delivers inbound frames until the connection ends or ctx is done.
func (m *Manager) pump(ctx context.Context, client transport.Client) (transport.DisconnectReason, error) {
	for {
		select {
		case <-ctx.Done():
			return transport.ReasonClient, ctx.Err()
		case frame := <-client.Frames():
			m.handleFrame(frame)
		case err := <-client.Errors():
			// Deliver whatever was read before the failure.
		drain:
			for {
				select {
				case frame := <-client.Frames():
					m.handleFrame(frame)
				default:
					break drain
				}
			}
			var derr *transport.DisconnectError
			if errors.As(err, &derr) {
				return derr.Reason, err
			}
			return transport.ReasonNetwork, err
		}
	}
}

func (m *Manager) handleFrame(frame transport.Frame) {
	ev, err := event.Decode(frame)
	if err != nil {
		m.logger.Warn("dropping inbound frame", "event", frame.Event, "error", err)
		return
	}
	if se, ok := ev.(event.ServerError); ok {
		m.logger.Warn("server error", "message", se.Message, "room", se.RoomID)
	}
	m.registry.Dispatch(ev)
}

// detach clears the live client after a drop and moves back to Connecting.
func (m *Manager) detach(gen uint64, client transport.Client, reason transport.DisconnectReason, err error) {
	m.sendMu.Lock()
	m.mu.Lock()
	if m.client == client {
		m.client = nil
	}
	m.mu.Unlock()
	m.sendMu.Unlock()

	client.Close()

	m.setState(gen, model.StateConnecting)
	m.registry.Dispatch(event.Disconnected{Reason: reason, Err: err})
}

// sleep waits for d, a network wake-up, or ctx. A zero d waits only for the
// latter two. Returns false if ctx is done.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	var timer <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ctx.Done():
		return false
	case <-timer:
		return true
	case <-m.wake:
		return true
	}
}
