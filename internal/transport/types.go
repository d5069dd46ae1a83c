package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Frame is a single event envelope read from or written to the wire.
type Frame struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"-"` // Local timestamp when the frame was read
}

// DisconnectReason classifies why an established connection ended.
type DisconnectReason int

const (
	// ReasonNetwork covers read errors, abnormal closure and stale pings.
	ReasonNetwork DisconnectReason = iota
	// ReasonServer means the server closed the connection deliberately.
	ReasonServer
	// ReasonClient means Close was called locally.
	ReasonClient
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonServer:
		return "server"
	case ReasonClient:
		return "client"
	default:
		return "network"
	}
}

// DisconnectError reports the end of an established connection.
type DisconnectError struct {
	Reason DisconnectReason
	Err    error
}

func (e *DisconnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("disconnected (%s)", e.Reason)
	}
	return fmt.Sprintf("disconnected (%s): %v", e.Reason, e.Err)
}

func (e *DisconnectError) Unwrap() error {
	return e.Err
}

// ConnectError reports a failed connection attempt.
type ConnectError struct {
	URL        string
	StatusCode int // HTTP status of a rejected handshake, 0 if none
	Err        error
}

func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connect %s: handshake status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the server rejected the credentials.
func (e *ConnectError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://app.example.com/ws)
	Header           http.Header   // Handshake headers (Authorization)
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // Keepalive ping period
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}
