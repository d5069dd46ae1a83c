package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnectionState is the observable state of a realtime connection.
type ConnectionState int

const (
	// StateUnknown is the RealtimeManager's state before its first observation.
	StateUnknown ConnectionState = iota
	StateDisconnected
	StateConnecting
	StateConnected
)

// String returns the lower-case name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// -----------------------------------------------------------------------------
// Rooms and Messages
// -----------------------------------------------------------------------------

// Room is a logical channel multiplexed over the shared connection.
type Room struct {
	RoomID   string
	JoinedAt time.Time
}

// Message is a chat message delivered by the server.
type Message struct {
	MessageID    string    `json:"message_id"`
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	SenderName   string    `json:"sender_name,omitempty"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Content      string    `json:"message"`
	IsBot        bool      `json:"is_bot,omitempty"`
	ClientID     string    `json:"client_id,omitempty"` // Echo of OutgoingMessage.ClientID
	CreatedAt    time.Time `json:"created_at"`
}

// OutgoingMessage is a message submitted by this client.
type OutgoingMessage struct {
	ClientID uuid.UUID      `json:"client_id"`
	RoomID   string         `json:"room_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PendingMessage is an outgoing message buffered while disconnected.
type PendingMessage struct {
	Payload    OutgoingMessage
	EnqueuedAt time.Time
}

// Participant is a user present in a room.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// Presence is the set of participants currently joined to a room.
type Presence struct {
	RoomID string        `json:"room_id"`
	Users  []Participant `json:"users"`
}

// Typing is a typing indicator update for one user in one room.
type Typing struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

// -----------------------------------------------------------------------------
// Offline Operations
// -----------------------------------------------------------------------------

// Offline operation types understood by the replay endpoint.
const (
	OpUpload = "upload"
	OpData   = "data"
)

// OfflineOperation is a generic application write deferred while offline.
type OfflineOperation struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"` // Failed replay attempts so far
}
