package session

import (
	"context"
	"sync"

	"github.com/nhle/registry-portal/internal/changefeed"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/subscription"
)

// Synchronizer fans identity changes out to the views of one client
// instance. It re-reads the Store whenever this window raises a session
// signal or another instance publishes on the change feed, and delivers only
// when the identity content changed.
//
// Callbacks run synchronously in subscription order. They may write or clear
// the Store and call Refresh: the refresh runs once the current delivery is
// over. They must not call Subscribe, Current or Close on the same
// Synchronizer.
type Synchronizer struct {
	store *Store

	// pendingMu guards delivering and pending. delivering is set while a
	// goroutine holds deliverMu; Refresh calls made meanwhile set pending and
	// are run by that goroutine before it releases deliverMu.
	pendingMu  sync.Mutex
	delivering bool
	pending    bool

	deliverMu sync.Mutex
	loaded    bool
	closed    bool
	last      *model.Identity

	subs    subscription.Registry[*model.Identity]
	sources []*subscription.Subscription
}

// NewSynchronizer attaches to the store's signal and, when feed is non-nil,
// to the cross-instance change feed.
func NewSynchronizer(s *Store, feed changefeed.Feed) *Synchronizer {
	sy := &Synchronizer{store: s}

	sy.sources = append(sy.sources,
		s.Signal().Subscribe(func(SignalKind) { sy.Refresh() }),
	)
	if feed != nil {
		sy.sources = append(sy.sources,
			feed.Subscribe(func(changefeed.Event) { sy.Refresh() }),
		)
	}
	return sy
}

// Subscribe delivers the current identity (nil when logged out) to fn right
// away, then again after every change.
func (s *Synchronizer) Subscribe(fn func(*model.Identity)) *subscription.Subscription {
	var sub *subscription.Subscription
	s.deliver(func() {
		s.refreshLocked()
		sub = s.subs.Subscribe(fn)
		fn(s.last)
	})
	return sub
}

// Current returns the last delivered identity.
func (s *Synchronizer) Current() *model.Identity {
	var current *model.Identity
	s.deliver(func() {
		if !s.loaded {
			s.refreshLocked()
		}
		current = s.last
	})
	return current
}

// Refresh re-reads the store and notifies subscribers when the identity
// changed. While a delivery is in progress the refresh is queued behind it.
func (s *Synchronizer) Refresh() {
	s.pendingMu.Lock()
	if s.delivering {
		s.pending = true
		s.pendingMu.Unlock()
		return
	}
	s.pendingMu.Unlock()

	s.deliver(s.refreshLocked)
}

// deliver runs fn under deliverMu, then every refresh queued while it ran.
func (s *Synchronizer) deliver(fn func()) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.pendingMu.Lock()
	s.delivering = true
	s.pendingMu.Unlock()

	fn()

	for {
		s.pendingMu.Lock()
		if !s.pending {
			s.delivering = false
			s.pendingMu.Unlock()
			return
		}
		s.pending = false
		s.pendingMu.Unlock()

		s.refreshLocked()
	}
}

func (s *Synchronizer) refreshLocked() {
	if s.closed {
		return
	}

	current, _ := s.store.Read(context.Background())
	if s.loaded && model.SameIdentity(current, s.last) {
		return
	}

	s.loaded = true
	s.last = current
	s.subs.Publish(current)
}

// Close detaches from the signal and the change feed. Existing
// subscriptions stop receiving updates.
func (s *Synchronizer) Close() {
	s.deliverMu.Lock()
	s.closed = true
	sources := s.sources
	s.sources = nil
	s.deliverMu.Unlock()

	for _, sub := range sources {
		sub.Unsubscribe()
	}
}
