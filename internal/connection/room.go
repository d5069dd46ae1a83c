package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/model"
)

// RoomHandlers receive one room's events. Nil handlers are skipped.
type RoomHandlers struct {
	// OnMessage is called once per live message and once per history entry,
	// in order. history is true for entries from messageHistory.
	OnMessage func(msg model.Message, history bool)

	// OnPresence receives the room's active users.
	OnPresence func(p model.Presence)

	// OnTyping receives the users currently typing. It is called with an
	// empty slice when the indicators expire.
	OnTyping func(users []model.Typing)
}

// RoomSession is a handle scoped to one joined room.
type RoomSession struct {
	id     string
	seq    uint64
	m      *Manager
	logger *slog.Logger

	mu         sync.Mutex
	left       bool
	subs       []event.Subscription
	onTyping   []func([]model.Typing)
	lastTyping time.Time

	typing      []model.Typing // current typers, first-seen order
	typingTimer *time.Timer
}

func newRoomSession(m *Manager, roomID string, seq uint64) *RoomSession {
	s := &RoomSession{
		id:     roomID,
		seq:    seq,
		m:      m,
		logger: m.logger.With("room", roomID),
	}
	// Registered before any caller handler so the typing list is current
	// when OnTyping runs.
	s.subs = append(s.subs, event.OnType(m.registry, event.KindTyping, func(ev event.Typing) {
		if ev.RoomID == s.id {
			s.trackTyping(ev.Typing)
		}
	}))
	return s
}

// ID returns the room id.
func (s *RoomSession) ID() string {
	return s.id
}

// Send sends content to the room, or queues it while disconnected.
func (s *RoomSession) Send(content string) (SendResult, error) {
	if s.isLeft() {
		return SendResult{}, ErrRoomLeft
	}
	return s.m.SendMessage(model.OutgoingMessage{RoomID: s.id, Content: content})
}

// Typing signals that the local user is typing. Calls within the throttle
// window of the last emitted signal, or made while disconnected, are
// absorbed and return false.
func (s *RoomSession) Typing() (bool, error) {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return false, ErrRoomLeft
	}
	now := time.Now()
	if !s.lastTyping.IsZero() && now.Sub(s.lastTyping) < s.m.cfg.TypingThrottle {
		s.mu.Unlock()
		return false, nil
	}
	prev := s.lastTyping
	s.lastTyping = now
	s.mu.Unlock()

	sent, err := s.m.EmitTyping(s.id)
	if !sent {
		s.mu.Lock()
		if s.lastTyping.Equal(now) {
			s.lastTyping = prev
		}
		s.mu.Unlock()
		return false, err
	}
	return true, nil
}

// TypingUsers returns the users currently typing in the room.
func (s *RoomSession) TypingUsers() []model.Typing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Typing(nil), s.typing...)
}

// History fetches the room's backlog over REST.
func (s *RoomSession) History(ctx context.Context) ([]model.Message, error) {
	if s.m.history == nil {
		return nil, ErrNoHistorySource
	}
	msgs, err := s.m.history.FetchMessages(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("room %s history: %w", s.id, err)
	}
	return msgs, nil
}

// Leave leaves the room.
func (s *RoomSession) Leave() {
	s.m.LeaveRoom(s.id)
}

func (s *RoomSession) isLeft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left
}

// addHandlers registers one set of handlers with the manager's registry.
func (s *RoomSession) addHandlers(h RoomHandlers) {
	reg := s.m.registry
	var subs []event.Subscription

	if h.OnMessage != nil {
		subs = append(subs,
			event.OnType(reg, event.KindNewMessage, func(ev event.NewMessage) {
				if ev.Message.RoomID == s.id {
					h.OnMessage(ev.Message, false)
				}
			}),
			event.OnType(reg, event.KindMessageHistory, func(ev event.MessageHistory) {
				if ev.RoomID != s.id {
					return
				}
				for _, msg := range ev.Messages {
					h.OnMessage(msg, true)
				}
			}),
		)
	}
	if h.OnPresence != nil {
		subs = append(subs, event.OnType(reg, event.KindActiveUsers, func(ev event.ActiveUsers) {
			if ev.RoomID == s.id {
				h.OnPresence(ev.Presence)
			}
		}))
	}
	if h.OnTyping != nil {
		subs = append(subs, event.OnType(reg, event.KindTyping, func(ev event.Typing) {
			if ev.RoomID == s.id {
				h.OnTyping(s.TypingUsers())
			}
		}))
	}

	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	if h.OnTyping != nil {
		s.onTyping = append(s.onTyping, h.OnTyping)
	}
	s.mu.Unlock()
}

// trackTyping applies one indicator update and restarts the expiry timer.
func (s *RoomSession) trackTyping(t model.Typing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, u := range s.typing {
		if u.UserID == t.UserID {
			idx = i
			break
		}
	}
	switch {
	case t.IsTyping && idx < 0:
		s.typing = append(s.typing, t)
	case t.IsTyping:
		s.typing[idx] = t
	case idx >= 0:
		s.typing = append(s.typing[:idx:idx], s.typing[idx+1:]...)
	}

	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	if len(s.typing) > 0 && !s.left {
		s.typingTimer = time.AfterFunc(s.m.cfg.TypingExpiry, s.expireTyping)
	}
}

// expireTyping clears the typing list after a quiet period.
func (s *RoomSession) expireTyping() {
	s.mu.Lock()
	if s.left || len(s.typing) == 0 {
		s.mu.Unlock()
		return
	}
	s.typing = nil
	handlers := append([]func([]model.Typing)(nil), s.onTyping...)
	s.mu.Unlock()

	s.logger.Debug("typing indicators expired")
	for _, fn := range handlers {
		s.callTyping(fn)
	}
}

func (s *RoomSession) callTyping(fn func([]model.Typing)) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("typing handler panicked", "panic", p)
		}
	}()
	fn([]model.Typing{})
}

// detach unregisters every handler and stops timers.
func (s *RoomSession) detach() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.onTyping = nil
	s.left = true
	s.typing = nil
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.m.registry.Off(sub)
	}
}
