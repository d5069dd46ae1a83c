package connection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/queue"
	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// Errors
var (
	ErrConnectionLost   = errors.New("connection lost")
	ErrPendingQueueFull = errors.New("pending message queue full")
	ErrSuperseded       = errors.New("connection attempt superseded")
	ErrEmptyRoom        = errors.New("room id is required")
	ErrRoomLeft         = errors.New("room already left")
	ErrNoHistorySource  = errors.New("no message history source configured")
)

// ManagerConfig holds configuration for the Connection Manager.
type ManagerConfig struct {
	URL string // WebSocket URL

	ReconnectAttempts       int           // Attempts per retry cycle before "connection lost" (default: 5)
	ReconnectDelay          time.Duration // Fixed delay between attempts (default: 1s)
	ServerReconnectDelay    time.Duration // Delay before reconnecting after a server-initiated close (default: 1s)
	BackgroundRetryInterval time.Duration // Quiet retry period after the budget is spent; 0 waits for a network signal

	MaxPending int           // Pending queue limit (default: 500)
	PendingTTL time.Duration // Drop pending messages older than this at flush; 0 keeps them

	TypingThrottle time.Duration // Minimum gap between outbound typing events (default: 2s)
	TypingExpiry   time.Duration // Clear received typing indicators after this long (default: 3s)

	Transport transport.ClientConfig
}

// DefaultManagerConfig returns default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectAttempts:       5,
		ReconnectDelay:          time.Second,
		ServerReconnectDelay:    time.Second,
		BackgroundRetryInterval: 30 * time.Second,
		MaxPending:              500,
		TypingThrottle:          2 * time.Second,
		TypingExpiry:            3 * time.Second,
		Transport:               transport.DefaultClientConfig(),
	}
}

// ClientFactory builds a transport client for one connection attempt.
type ClientFactory func(cfg transport.ClientConfig, logger *slog.Logger) transport.Client

// HistoryFetcher loads a room's message backlog over REST.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, roomID string) ([]model.Message, error)
}

// OnlineSource reports environment-level connectivity changes.
type OnlineSource interface {
	AddListener(fn func(online bool)) (unsubscribe func())
}

// SendStatus tells the caller what happened to a message.
type SendStatus int

const (
	// Sent means the message was written to the live connection.
	Sent SendStatus = iota + 1
	// Queued means the message is buffered until the next connect.
	Queued
)

func (s SendStatus) String() string {
	switch s {
	case Sent:
		return "sent"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// SendResult is returned by SendMessage.
type SendResult struct {
	Status   SendStatus
	ClientID uuid.UUID
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State      model.ConnectionState
	Rooms      int
	Pending    int
	Attempts   int // Failed attempts in the current retry cycle
	Connects   int64
	Generation uint64
	Queue      queue.Stats
}
