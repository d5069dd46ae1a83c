package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/uday68/commandgrid-sub003/internal/connection"
	"github.com/uday68/commandgrid-sub003/internal/model"
	"github.com/uday68/commandgrid-sub003/internal/realtime"
)

const consoleHelp = `commands:
  <text>              send to the current room
  /join <room>        join a room and make it current
  /leave              leave the current room
  /room <room>        switch the current room
  /typing             send a typing indicator
  /history            fetch the current room's history
  /op <type> <json>   queue an offline operation
  /sync               replay queued offline operations now
  /status             show connection status`

// console drives the client from line-oriented input.
type console struct {
	conn *connection.Manager
	rt   *realtime.Manager

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	sessions map[string]*connection.RoomSession
	current  string
}

func newConsole(conn *connection.Manager, rt *realtime.Manager, out io.Writer) *console {
	return &console{
		conn:     conn,
		rt:       rt,
		out:      out,
		sessions: make(map[string]*connection.RoomSession),
	}
}

func (c *console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) join(roomID string) error {
	session, err := c.conn.JoinRoom(roomID, connection.RoomHandlers{
		OnMessage: func(m model.Message, history bool) {
			prefix := ""
			if history {
				prefix = "(history) "
			}
			c.printf("[%s] %s%s: %s", m.RoomID, prefix, senderOf(m), m.Content)
		},
		OnPresence: func(p model.Presence) {
			c.printf("[%s] %d online", p.RoomID, len(p.Users))
		},
		OnTyping: func(users []model.Typing) {
			if len(users) == 0 {
				return
			}
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.UserName
				if names[i] == "" {
					names[i] = u.UserID
				}
			}
			c.printf("[%s] %s typing...", roomID, strings.Join(names, ", "))
		},
	})
	if err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	c.mu.Lock()
	c.sessions[roomID] = session
	c.current = roomID
	c.mu.Unlock()
	return nil
}

func senderOf(m model.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.UserID
}

func (c *console) session() (*connection.RoomSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[c.current]
	return s, ok
}

// run reads commands until in is exhausted or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep running until signalled.
				<-ctx.Done()
				return nil
			}
			if err := c.handle(ctx, strings.TrimSpace(line)); err != nil {
				c.printf("error: %v", err)
			}
		}
	}
}

func (c *console) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		s, ok := c.session()
		if !ok {
			return fmt.Errorf("no current room, use /join <room>")
		}
		res, err := s.Send(line)
		if err != nil {
			return err
		}
		if res.Status == connection.Queued {
			c.printf("(queued %s)", res.ClientID)
		}
		return nil
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "help":
		c.printf("%s", consoleHelp)

	case "join":
		if arg == "" {
			return fmt.Errorf("usage: /join <room>")
		}
		return c.join(arg)

	case "leave":
		s, ok := c.session()
		if !ok {
			return fmt.Errorf("no current room")
		}
		s.Leave()
		c.mu.Lock()
		delete(c.sessions, s.ID())
		c.current = ""
		c.mu.Unlock()

	case "room":
		c.mu.Lock()
		_, ok := c.sessions[arg]
		if ok {
			c.current = arg
		}
		c.mu.Unlock()
		if !ok {
			return fmt.Errorf("not joined to %q", arg)
		}

	case "typing":
		s, ok := c.session()
		if !ok {
			return fmt.Errorf("no current room")
		}
		_, err := s.Typing()
		return err

	case "history":
		s, ok := c.session()
		if !ok {
			return fmt.Errorf("no current room")
		}
		msgs, err := s.History(ctx)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			c.printf("[%s] %s: %s", m.RoomID, senderOf(m), m.Content)
		}

	case "op":
		typ, payload, _ := strings.Cut(arg, " ")
		op := model.OfflineOperation{Type: typ}
		if payload = strings.TrimSpace(payload); payload != "" {
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload is not valid JSON")
			}
			op.Payload = json.RawMessage(payload)
		}
		queued, err := c.rt.QueueOfflineOperation(ctx, op)
		if err != nil {
			return err
		}
		c.printf("(queued operation %s)", queued.ID)

	case "sync":
		res, err := c.rt.SyncOfflineData(ctx)
		c.printf("replayed %d, failed %d", res.Replayed, res.Failed)
		return err

	case "status":
		cs := c.conn.Stats()
		c.printf("connection %s, rooms %d, pending messages %d, queued operations %d",
			cs.State, cs.Rooms, cs.Pending, len(c.rt.Pending()))

	default:
		return fmt.Errorf("unknown command %q, try /help", cmd)
	}
	return nil
}
