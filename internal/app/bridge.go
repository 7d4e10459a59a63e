package app

import (
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/registry-portal/internal/subscription"
	appsync "github.com/nhle/registry-portal/internal/sync"
)

const eventBuffer = 64

// Bridge carries callbacks from the core components into the Bubble Tea
// update loop. It outlives every root model: a hard redirect rebuilds the
// model but keeps the bridge.
type Bridge struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
	gen    atomic.Uint64
}

// NewBridge creates a bridge. It also serves as the session store's
// Navigator.
func NewBridge() *Bridge {
	return &Bridge{
		events: make(chan tea.Msg, eventBuffer),
		done:   make(chan struct{}),
	}
}

// HardRedirect asks the running program to drop all view state and start
// over at route.
func (b *Bridge) HardRedirect(route string) {
	b.send(hardRedirectMsg{route: route})
}

// Close releases blocked senders. Call it once the program has exited.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

// wait returns the next bridged message. Exactly one wait is pending at any
// time; Update re-issues it after every bridged message.
func (b *Bridge) wait() tea.Cmd {
	events, done := b.events, b.done
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-done:
			return nil
		}
	}
}

func (b *Bridge) nextGen() uint64 {
	return b.gen.Add(1)
}

// binding holds the subscriptions of one root model generation.
type binding struct {
	gen    uint64
	bridge *Bridge

	mu     sync.Mutex
	subs   []*subscription.Subscription
	poll   *subscription.Subscription
	closed bool
}

func newBinding(b *Bridge) *binding {
	return &binding{gen: b.nextGen(), bridge: b}
}

func (b *binding) send(msg tea.Msg) {
	b.bridge.send(msg)
}

func (b *binding) add(sub *subscription.Subscription) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

func (b *binding) polling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.poll != nil
}

func (b *binding) startPolling(p *appsync.Poller, interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.poll != nil {
		return
	}
	b.poll = p.Start(interval)
}

func (b *binding) stopPolling() {
	b.mu.Lock()
	poll := b.poll
	b.poll = nil
	b.mu.Unlock()

	poll.Unsubscribe()
}

// close releases every handle. Later adds are released immediately.
func (b *binding) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	poll := b.poll
	b.poll = nil
	b.mu.Unlock()

	poll.Unsubscribe()
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Unsubscribe()
	}
}
