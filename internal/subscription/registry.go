// Package subscription implements the callback registration contract shared
// by every component that pushes state to views: callbacks run in
// subscription order and each handle is revocable exactly once.
package subscription

import (
	"sync"
	"sync/atomic"
)

// Subscription is the handle returned by every Subscribe operation.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// New wraps cancel so that it runs at most once.
func New(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe releases the subscription. Calls after the first are no-ops.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type entry[T any] struct {
	id   uint64
	fn   func(T)
	live *atomic.Bool
}

// Registry holds ordered callbacks for values of type T. The zero value is
// ready to use.
type Registry[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[T]
}

// Subscribe appends fn to the registry.
func (r *Registry[T]) Subscribe(fn func(T)) *Subscription {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	e := entry[T]{id: id, fn: fn, live: new(atomic.Bool)}
	e.live.Store(true)
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	return New(func() { r.remove(id) })
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			e.live.Store(false)
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// Publish invokes every callback with v in subscription order. A callback
// subscribed during Publish first runs on the next Publish. A callback
// unsubscribed during Publish, from any goroutine, is skipped if it has not
// run yet.
func (r *Registry[T]) Publish(v T) {
	r.mu.Lock()
	snapshot := make([]entry[T], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		if !e.live.Load() {
			continue
		}
		e.fn(v)
	}
}

// Len returns the number of live subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
