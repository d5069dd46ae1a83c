package event

import (
	"log/slog"
	"sync"
)

// Handler receives one event.
type Handler func(Event)

// Subscription identifies one registered handler slot.
type Subscription struct {
	kind Kind
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() Kind {
	return s.kind
}

type slot struct {
	id      uint64
	handler Handler
}

// Registry maps event kinds to ordered handler lists.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind][]slot
	panics   int64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		handlers: make(map[Kind][]slot),
	}
}

// On appends a handler for kind. Registering the same function again adds a
// second slot.
func (r *Registry) On(kind Kind, h Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.handlers[kind] = append(r.handlers[kind], slot{id: r.nextID, handler: h})
	return Subscription{kind: kind, id: r.nextID}
}

// Off removes exactly the slot identified by sub. Returns false if it was
// already removed.
func (r *Registry) Off(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.handlers[sub.kind]
	for i, s := range slots {
		if s.id == sub.id {
			r.handlers[sub.kind] = append(slots[:i:i], slots[i+1:]...)
			if len(r.handlers[sub.kind]) == 0 {
				delete(r.handlers, sub.kind)
			}
			return true
		}
	}
	return false
}

// Dispatch invokes every handler registered for ev's kind, in registration
// order, and returns how many ran. A handler registered or removed during
// dispatch takes effect from the next event.
func (r *Registry) Dispatch(ev Event) int {
	r.mu.RLock()
	slots := r.handlers[ev.Kind()]
	r.mu.RUnlock()

	for _, s := range slots {
		r.invoke(ev, s.handler)
	}
	return len(slots)
}

// Count returns the number of handlers registered for kind.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Panics returns how many handler panics have been recovered.
func (r *Registry) Panics() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.panics
}

func (r *Registry) invoke(ev Event, h Handler) {
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.panics++
			r.mu.Unlock()
			r.logger.Error("event handler panicked",
				"event", ev.Kind().String(),
				"panic", p,
			)
		}
	}()
	h(ev)
}

// OnType registers a handler that only sees events of concrete type T.
func OnType[T Event](r *Registry, kind Kind, fn func(T)) Subscription {
	return r.On(kind, func(ev Event) {
		if typed, ok := ev.(T); ok {
			fn(typed)
		}
	})
}
