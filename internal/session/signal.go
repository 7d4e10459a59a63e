package session

import "github.com/nhle/registry-portal/internal/subscription"

// SignalKind names a same-window session event.
type SignalKind string

const (
	// SignalUserUpdated is raised after every successful Store.Write.
	SignalUserUpdated SignalKind = "userUpdated"

	// SignalSessionEnded is raised by Store.Clear before the hard redirect.
	SignalSessionEnded SignalKind = "sessionEnded"
)

// Signal is the same-window session event channel. The cross-instance change
// feed never delivers to the instance that wrote, so writers notify their own
// window through a Signal.
type Signal struct {
	subs subscription.Registry[SignalKind]
}

// NewSignal returns a Signal with no subscribers.
func NewSignal() *Signal {
	return &Signal{}
}

// Raise notifies every subscriber synchronously, in subscription order.
func (s *Signal) Raise(kind SignalKind) {
	s.subs.Publish(kind)
}

// Subscribe registers fn for every raised signal.
func (s *Signal) Subscribe(fn func(SignalKind)) *subscription.Subscription {
	return s.subs.Subscribe(fn)
}
