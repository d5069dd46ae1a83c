package event

import (
	"time"

	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// Event is implemented by every typed event.
type Event interface {
	Kind() Kind
}

// Connected is raised after every successful (re)connect.
type Connected struct {
	At      time.Time
	Attempt int // 1 for the first attempt of a retry cycle
}

// Disconnected is raised when an established connection ends.
type Disconnected struct {
	Reason transport.DisconnectReason
	Err    error
}

// ConnectFailed is raised for every failed connection attempt.
type ConnectFailed struct {
	Attempt int
	Err     error
}

// NewMessage carries one live chat message.
type NewMessage struct {
	Message    model.Message
	ReceivedAt time.Time
}

// MessageHistory carries a room's backlog, oldest first.
type MessageHistory struct {
	RoomID   string          `json:"room_id"`
	Messages []model.Message `json:"messages"`
}

// ActiveUsers carries a room's presence list.
type ActiveUsers struct {
	model.Presence
}

// Typing carries one typing indicator update.
type Typing struct {
	model.Typing
}

// ServerError is an error reported by the server, e.g. a rejected join.
type ServerError struct {
	Message string `json:"message"`
	RoomID  string `json:"room_id,omitempty"`
}

func (Connected) Kind() Kind      { return KindConnect }
func (Disconnected) Kind() Kind   { return KindDisconnect }
func (ConnectFailed) Kind() Kind  { return KindConnectError }
func (NewMessage) Kind() Kind     { return KindNewMessage }
func (MessageHistory) Kind() Kind { return KindMessageHistory }
func (ActiveUsers) Kind() Kind    { return KindActiveUsers }
func (Typing) Kind() Kind         { return KindTyping }
func (ServerError) Kind() Kind    { return KindError }

// RoomOf returns the room an inbound event is scoped to, or "" if it is
// connection-wide.
func RoomOf(ev Event) string {
	switch e := ev.(type) {
	case NewMessage:
		return e.Message.RoomID
	case MessageHistory:
		return e.RoomID
	case ActiveUsers:
		return e.RoomID
	case Typing:
		return e.RoomID
	case ServerError:
		return e.RoomID
	default:
		return ""
	}
}

// Outbound payloads.

// RoomRef is the payload of joinRoom and leaveRoom.
type RoomRef struct {
	RoomID string `json:"room_id"`
}

// TypingSignal is the payload of an outbound typing event.
type TypingSignal struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}
