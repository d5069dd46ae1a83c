package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uday68/commandgrid-sub003/internal/transport"
)

// Errors
var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrNotInbound   = errors.New("event is not accepted from the server")
)

// Decode converts an inbound frame into a typed event.
func Decode(frame transport.Frame) (Event, error) {
	kind, ok := ParseKind(frame.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
	if !kind.Inbound() {
		return nil, fmt.Errorf("%w: %q", ErrNotInbound, frame.Event)
	}

	switch kind {
	case KindNewMessage:
		ev := NewMessage{ReceivedAt: frame.ReceivedAt}
		if err := unmarshal(frame, &ev.Message); err != nil {
			return nil, err
		}
		return ev, nil

	case KindMessageHistory:
		var ev MessageHistory
		if err := unmarshal(frame, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case KindActiveUsers:
		var ev ActiveUsers
		if err := unmarshal(frame, &ev.Presence); err != nil {
			return nil, err
		}
		return ev, nil

	case KindTyping:
		var ev Typing
		if err := unmarshal(frame, &ev.Typing); err != nil {
			return nil, err
		}
		return ev, nil

	default: // KindError
		return decodeServerError(frame)
	}
}

// decodeServerError accepts either {"message": "..."} or a bare string.
func decodeServerError(frame transport.Frame) (Event, error) {
	var text string
	if err := json.Unmarshal(frame.Data, &text); err == nil {
		return ServerError{Message: text}, nil
	}
	var ev ServerError
	if err := unmarshal(frame, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func unmarshal(frame transport.Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("decode %s: empty payload", frame.Event)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", frame.Event, err)
	}
	return nil
}
