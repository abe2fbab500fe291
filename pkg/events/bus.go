// Package events carries notifications from the voice core to the
// presentation layer. The core never calls the UI directly; everything it
// wants shown goes through a Publisher.
package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives published events. Handlers must not retain the event
// pointer past the call if they mutate it.
type Handler func(*Event)

// Publisher is what the voice core publishes to.
type Publisher interface {
	Publish(*Event)
}

// Subscription identifies a registered handler.
type Subscription struct {
	id   string
	name Name // empty for wildcard subscriptions
}

type subscriber struct {
	id      string
	handler Handler
}

// Bus is a synchronous in-process event bus. Handlers run on the publisher's
// goroutine in subscription order; a panicking handler is logged and does not
// stop delivery to the others.
type Bus struct {
	mu       sync.RWMutex
	byName   map[Name][]subscriber
	wildcard []subscriber
	logger   *slog.Logger
}

// NewBus creates an empty bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byName: make(map[Name][]subscriber),
		logger: logger,
	}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name Name, h Handler) Subscription {
	sub := subscriber{id: uuid.NewString(), handler: h}
	b.mu.Lock()
	b.byName[name] = append(b.byName[name], sub)
	b.mu.Unlock()
	return Subscription{id: sub.id, name: name}
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	sub := subscriber{id: uuid.NewString(), handler: h}
	b.mu.Lock()
	b.wildcard = append(b.wildcard, sub)
	b.mu.Unlock()
	return Subscription{id: sub.id}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.name == "" {
		b.wildcard = without(b.wildcard, s.id)
		return
	}
	b.byName[s.name] = without(b.byName[s.name], s.id)
	if len(b.byName[s.name]) == 0 {
		delete(b.byName, s.name)
	}
}

// Publish delivers ev to the handlers subscribed to its name, then to the
// wildcard handlers.
func (b *Bus) Publish(ev *Event) {
	if ev == nil {
		return
	}

	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.byName[ev.Name])+len(b.wildcard))
	targets = append(targets, b.byName[ev.Name]...)
	targets = append(targets, b.wildcard...)
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub subscriber, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("event", string(ev.Name)),
				slog.String("subscription", sub.id),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	sub.handler(ev)
}

func without(subs []subscriber, id string) []subscriber {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
