package devserver

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/commandgrid-sub003/internal/event"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// delivery is a frame bound for one connection, sent after s.mu is released.
type delivery struct {
	to    *conn
	event string
	data  any
}

func (s *Server) dispatch(c *conn, frame transport.Frame) {
	var out []delivery

	switch frame.Event {
	case event.EmitJoinRoom:
		var ref event.RoomRef
		if !decodeInto(c, frame, &ref) || ref.RoomID == "" {
			c.emitError("", "room_id is required")
			return
		}
		out = s.join(c, ref.RoomID)

	case event.EmitLeaveRoom:
		var ref event.RoomRef
		if !decodeInto(c, frame, &ref) {
			return
		}
		out = s.leave(c, ref.RoomID)

	case event.EmitSendMessage:
		var msg model.OutgoingMessage
		if !decodeInto(c, frame, &msg) {
			return
		}
		if strings.TrimSpace(msg.Content) == "" {
			c.emitError(msg.RoomID, "message content is required")
			return
		}
		out = s.post(c, msg)

	case event.EmitTyping:
		var sig event.TypingSignal
		if !decodeInto(c, frame, &sig) {
			return
		}
		out = s.typing(c, sig)

	default:
		c.emitError("", "unknown event "+frame.Event)
		return
	}

	for _, d := range out {
		d.to.emit(d.event, d.data)
	}
}

func decodeInto(c *conn, frame transport.Frame, v any) bool {
	if err := json.Unmarshal(frame.Data, v); err != nil {
		c.emitError("", "malformed "+frame.Event+" payload")
		return false
	}
	return true
}

// join adds c to the room, sends it the backlog and broadcasts presence.
func (s *Server) join(c *conn, roomID string) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.roomLocked(roomID)
	rm.members[c] = struct{}{}
	c.rooms[roomID] = true
	c.logger.Debug("joined room", "room", roomID, "members", len(rm.members))

	out := []delivery{{
		to:    c,
		event: "messageHistory",
		data: event.MessageHistory{
			RoomID:   roomID,
			Messages: append([]model.Message{}, rm.history...),
		},
	}}
	return append(out, broadcastLocked(rm, "activeUsers", presenceOf(roomID, rm), nil)...)
}

func (s *Server) leave(c *conn, roomID string) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok || !c.rooms[roomID] {
		return nil
	}
	delete(rm.members, c)
	delete(c.rooms, roomID)
	return broadcastLocked(rm, "activeUsers", presenceOf(roomID, rm), nil)
}

// post stores and broadcasts a message. A repeated client id is a replay:
// it is acknowledged to the sender only.
func (s *Server) post(c *conn, out model.OutgoingMessage) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[out.RoomID]
	if !ok || !c.rooms[out.RoomID] {
		return []delivery{{
			to:    c,
			event: "error",
			data:  map[string]string{"message": "not a member of room", "room_id": out.RoomID},
		}}
	}

	if out.ClientID != uuid.Nil {
		if id, dup := rm.seen[out.ClientID]; dup {
			c.logger.Debug("duplicate message", "room", out.RoomID, "client_id", out.ClientID)
			for _, m := range rm.history {
				if m.MessageID == id {
					return []delivery{{to: c, event: "newMessage", data: m}}
				}
			}
			return nil
		}
	}

	msg := model.Message{
		MessageID:  uuid.NewString(),
		RoomID:     out.RoomID,
		UserID:     c.user.UserID,
		SenderName: c.user.Name,
		Content:    out.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if out.ClientID != uuid.Nil {
		msg.ClientID = out.ClientID.String()
		rm.seen[out.ClientID] = msg.MessageID
	}

	rm.history = append(rm.history, msg)
	if over := len(rm.history) - s.cfg.HistoryLimit; over > 0 {
		rm.history = append(rm.history[:0:0], rm.history[over:]...)
	}

	return broadcastLocked(rm, "newMessage", msg, nil)
}

func (s *Server) typing(c *conn, sig event.TypingSignal) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[sig.RoomID]
	if !ok || !c.rooms[sig.RoomID] {
		return nil
	}
	update := model.Typing{
		RoomID:   sig.RoomID,
		UserID:   c.user.UserID,
		UserName: c.user.Name,
		IsTyping: sig.IsTyping,
	}
	return broadcastLocked(rm, "typing", update, c)
}

// unregister removes c from every room and tells the remaining members.
func (s *Server) unregister(c *conn) {
	var out []delivery

	s.mu.Lock()
	delete(s.conns, c)
	for roomID := range c.rooms {
		rm := s.rooms[roomID]
		delete(rm.members, c)
		out = append(out, broadcastLocked(rm, "activeUsers", presenceOf(roomID, rm), nil)...)
	}
	c.rooms = make(map[string]bool)
	s.mu.Unlock()

	c.logger.Info("client disconnected")
	for _, d := range out {
		d.to.emit(d.event, d.data)
	}
}

func (s *Server) roomLocked(roomID string) *room {
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{
			members: make(map[*conn]struct{}),
			seen:    make(map[uuid.UUID]string),
		}
		s.rooms[roomID] = rm
	}
	return rm
}

func broadcastLocked(rm *room, ev string, data any, except *conn) []delivery {
	out := make([]delivery, 0, len(rm.members))
	for m := range rm.members {
		if m != except {
			out = append(out, delivery{to: m, event: ev, data: data})
		}
	}
	return out
}

type presence model.Presence

func (p presence) userIDs() []string {
	ids := make([]string, len(p.Users))
	for i, u := range p.Users {
		ids[i] = u.UserID
	}
	return ids
}

// presenceOf lists a room's distinct users.
func presenceOf(roomID string, rm *room) presence {
	p := presence{RoomID: roomID, Users: []model.Participant{}}
	seen := make(map[string]bool)
	for m := range rm.members {
		if seen[m.user.UserID] {
			continue
		}
		seen[m.user.UserID] = true
		p.Users = append(p.Users, model.Participant{UserID: m.user.UserID, Name: m.user.Name})
	}
	return p
}
