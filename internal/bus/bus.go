// Package bus is the in-process event bus connecting agents, the registry
// and the gateway. Dispatch is synchronous: handlers run on the publisher's
// goroutine in subscription order, so observers see events in the order they
// were produced.
package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AndrewDell/3AI/internal/domain"
	"github.com/AndrewDell/3AI/internal/logging"
)

// Handler receives every event published after it subscribes.
type Handler func(evt domain.Event)

// Subscription identifies one registered handler.
type Subscription struct {
	id string
}

// Bus fans events out to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
	closed   bool
	log      *logging.Logger
}

// New creates an empty bus.
func New(log *logging.Logger) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		log:      log.Sub("bus"),
	}
}

// Subscribe registers a handler. Subscribing to a closed bus returns a dead
// subscription that will never fire.
func (b *Bus) Subscribe(h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || h == nil {
		return &Subscription{}
	}
	id := uuid.NewString()
	b.handlers[id] = h
	b.order = append(b.order, id)
	return &Subscription{id: id}
}

// Unsubscribe removes a handler. Unknown or already removed subscriptions
// are no-ops, so callers may unsubscribe unconditionally.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || sub.id == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[sub.id]; !ok {
		return
	}
	delete(b.handlers, sub.id)
	for i, id := range b.order {
		if id == sub.id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers evt to every handler subscribed at call time. Handlers
// added or removed during dispatch take effect from the next publish.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.dispatch(h, evt)
	}
}

// dispatch isolates handler panics so one bad observer cannot take down the
// publisher.
func (b *Bus) dispatch(h Handler, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(evt.Type)).
				Str("agent", evt.AgentID).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()
	h(evt)
}

// Close drops all subscriptions. Later publishes and subscribes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]Handler)
	b.order = nil
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
