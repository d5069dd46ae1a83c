package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/uday68/commandgrid-sub003/internal/model"
)

// Config holds dev server settings.
type Config struct {
	// Secret verifies HS256 bearer tokens. Empty accepts any token.
	Secret []byte

	HistoryLimit int           // messages kept per room
	WriteTimeout time.Duration // per frame
	SendBuffer   int           // outbound frames queued per connection
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 50,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   256,
	}
}

// Server is the in-memory chat backend.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu    sync.Mutex
	conns map[*conn]struct{}
	rooms map[string]*room
	ops   []model.OfflineOperation
	opIDs map[string]bool

	offline bool // ping answers 503 while set
}

// room is one chat room's membership and backlog.
type room struct {
	members map[*conn]struct{}
	history []model.Message
	seen    map[uuid.UUID]string // client id -> message id
}

// New creates a Server.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
		rooms: make(map[string]*room),
		opIDs: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("HEAD /api/ping", s.handlePing)
	mux.HandleFunc("GET /api/ping", s.handlePing)
	mux.HandleFunc("GET /api/chat/rooms/{room}/messages", s.handleMessages)
	mux.HandleFunc("POST /api/offline/operations", s.handleReplay)
	s.mux = mux

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Connections returns the number of open websocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Members returns the user ids joined to roomID.
func (s *Server) Members(roomID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return presenceOf(roomID, rm).userIDs()
}

// History returns a copy of a room's backlog.
func (s *Server) History(roomID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]model.Message(nil), rm.history...)
}

// Operations returns the offline operations received, deduplicated by id.
func (s *Server) Operations() []model.OfflineOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OfflineOperation(nil), s.ops...)
}

// SetOffline makes the ping endpoint fail, simulating a dead backend.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Kick closes every connection with a normal close frame, as a server
// initiated disconnect.
func (s *Server) Kick() {
	for _, c := range s.snapshotConns() {
		c.closeWith(websocket.CloseNormalClosure, "server disconnect")
	}
}

// Drop severs every connection without a close frame.
func (s *Server) Drop() {
	for _, c := range s.snapshotConns() {
		c.ws.UnderlyingConn().Close()
	}
}

// Close drops every connection.
func (s *Server) Close() {
	for _, c := range s.snapshotConns() {
		c.close()
	}
}

func (s *Server) snapshotConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
