package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// conn is one authenticated websocket client.
type conn struct {
	s      *Server
	ws     *websocket.Conn
	user   identity
	logger *slog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once

	rooms map[string]bool // guarded by s.mu
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("rejecting websocket", "remote", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := &conn{
		s:      s,
		ws:     ws,
		user:   user,
		logger: s.logger.With("user", user.UserID),
		send:   make(chan []byte, s.cfg.SendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[string]bool),
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	c.logger.Info("client connected", "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.s.unregister(c)
		c.close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		var frame transport.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.emitError("", "malformed frame")
			continue
		}
		c.s.dispatch(c, frame)
	}
}

func (c *conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.s.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.close()
				return
			}
		}
	}
}

// emit queues an envelope. A client that cannot keep up is disconnected.
func (c *conn) emit(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("encode frame", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(transport.Frame{Event: event, Data: raw})
	if err != nil {
		c.logger.Error("encode envelope", "event", event, "error", err)
		return
	}

	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.logger.Warn("send buffer full, dropping client")
		c.close()
	}
}

func (c *conn) emitError(roomID, msg string) {
	c.emit("error", map[string]string{"message": msg, "room_id": roomID})
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *conn) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.s.cfg.WriteTimeout))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("close frame failed", "error", err)
	}
	c.close()
}
