// Package events carries the in-process publish/subscribe plumbing that
// stands in for the managed datastore's document triggers. Delivery is
// at-least-once: a handler may see the same event more than one time and has
// to tolerate it.
package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// EventInteractionCreated fires after a brand-new interaction record is
// durably written. It does not fire for updates to an existing record.
const EventInteractionCreated = "interaction.created"

// Event is a single published occurrence.
type Event struct {
	ID      string
	Type    string
	Payload map[string]interface{}
}

// Handler consumes one event. Handlers must be idempotent-enough for
// duplicate delivery and must not panic the publisher.
type Handler func(evt Event)

// Bus is the publish/subscribe contract.
type Bus interface {
	Publish(evt Event)
	Subscribe(eventType string, h Handler)
}

// InMemoryBus dispatches events to subscribers in goroutines. A synchronous
// mode exists for tests so assertions can run right after Publish returns.
type InMemoryBus struct {
	mu          sync.RWMutex
	handlers    map[string][]Handler
	synchronous bool
	wg          sync.WaitGroup
}

// NewBus returns an asynchronous bus.
func NewBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]Handler)}
}

// NewSyncBus returns a bus that delivers inline on Publish.
func NewSyncBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]Handler), synchronous: true}
}

// Subscribe registers a handler for an event type.
func (b *InMemoryBus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish delivers the event to every subscriber of its type. An empty event
// ID is filled in with a fresh uuid.
func (b *InMemoryBus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if b.synchronous {
			b.deliver(h, evt)
			continue
		}
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.deliver(h, evt)
		}(h)
	}
}

func (b *InMemoryBus) deliver(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic on %s (%s): %v", evt.Type, evt.ID, r)
		}
	}()
	h(evt)
}

// Drain blocks until all in-flight asynchronous deliveries finish.
func (b *InMemoryBus) Drain() {
	b.wg.Wait()
}
