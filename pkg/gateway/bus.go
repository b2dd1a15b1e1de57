package gateway

import (
	"log/slog"
	"sync"
)

// Handler receives one published event payload.
type Handler func(payload any)

// Bus is a synchronous in-process event bus. Publish delivers to handlers
// in registration order on the caller's goroutine; a panicking handler is
// recovered and logged, the remaining handlers still run, and the
// subscription stays live for later publishes.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string][]subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for an event name and returns a token for
// Unsubscribe.
func (b *Bus) Subscribe(event string, fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[event] = append(b.subs[event], subscription{id: b.next, fn: fn})
	return b.next
}

// Unsubscribe removes a handler by its token. Unknown tokens are ignored.
func (b *Bus) Unsubscribe(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[event]
	for i, s := range list {
		if s.id == id {
			b.subs[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every handler subscribed to event, in
// registration order.
func (b *Bus) Publish(event string, payload any) {
	b.mu.Lock()
	list := b.subs[event]
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, s := range snapshot {
		b.deliver(event, s, payload)
	}
}

func (b *Bus) deliver(event string, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	s.fn(payload)
}
