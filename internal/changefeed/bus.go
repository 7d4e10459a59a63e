package changefeed

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/registry-portal/internal/subscription"
)

// Bus connects the windows of a single process. Each window takes its own
// Endpoint.
type Bus struct {
	mu        sync.Mutex
	endpoints []*Endpoint
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Endpoint attaches a new participant to the bus.
func (b *Bus) Endpoint() *Endpoint {
	e := &Endpoint{bus: b, origin: uuid.NewString()}

	b.mu.Lock()
	b.endpoints = append(b.endpoints, e)
	b.mu.Unlock()

	return e
}

func (b *Bus) broadcast(ev Event) {
	b.mu.Lock()
	targets := make([]*Endpoint, len(b.endpoints))
	copy(targets, b.endpoints)
	b.mu.Unlock()

	for _, e := range targets {
		if e.origin == ev.Origin {
			continue
		}
		e.subs.Publish(ev)
	}
}

func (b *Bus) detach(target *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.endpoints {
		if e == target {
			b.endpoints = append(b.endpoints[:i:i], b.endpoints[i+1:]...)
			return
		}
	}
}

// Endpoint is a Feed attached to a Bus.
type Endpoint struct {
	bus    *Bus
	origin string
	subs   subscription.Registry[Event]
}

var _ Feed = (*Endpoint)(nil)

// Origin returns the endpoint's unique identifier.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Publish delivers synchronously to every other endpoint of the bus.
func (e *Endpoint) Publish(_ context.Context, key string) error {
	e.bus.broadcast(Event{Origin: e.origin, Key: key})
	return nil
}

func (e *Endpoint) Subscribe(fn func(Event)) *subscription.Subscription {
	return e.subs.Subscribe(fn)
}

// Close detaches the endpoint from the bus.
func (e *Endpoint) Close() {
	e.bus.detach(e)
}
