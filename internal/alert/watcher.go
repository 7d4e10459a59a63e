// Package alert watches the realtime alert feed and decides which alert, if
// any, is shown in the floating banner.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/subscription"
)

const (
	DefaultFreshness    = 10 * time.Second
	DefaultDismissAfter = 8 * time.Second
)

const component = "alerts"

// State is the watcher lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateAlertActive
	StateAlertDismissing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateAlertActive:
		return "alert-active"
	case StateAlertDismissing:
		return "alert-dismissing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Feed is a live query over the alert collection, newest first, limit one.
// onChange and onError may be called from any goroutine. cancel must not
// block on in-flight callbacks.
type Feed interface {
	Subscribe(ctx context.Context, onChange func(model.AlertChange), onError func(error)) (cancel func(), err error)
}

// Display is what the banner renders. Alert is nil unless State is
// StateAlertActive or StateAlertDismissing.
type Display struct {
	State State
	Alert *model.Alert
}

// Options configures a Watcher. Zero values pick the defaults.
type Options struct {
	Freshness    time.Duration
	DismissAfter time.Duration
	Clock        clockwork.Clock
	Reporter     report.Reporter
	Logger       *slog.Logger
}

// Watcher shows at most one alert at a time: the newest fresh one.
//
// Display callbacks run synchronously, in subscription order, and must not
// call Start, Stop or Dismiss.
type Watcher struct {
	feed         Feed
	freshness    time.Duration
	dismissAfter time.Duration
	clock        clockwork.Clock
	reporter     report.Reporter
	logger       *slog.Logger

	// deliverMu serializes transitions with their publication.
	deliverMu sync.Mutex

	mu         sync.Mutex
	state      State
	current    *model.Alert
	timer      clockwork.Timer
	session    uint64
	gen        uint64
	cancelFeed func()

	subs subscription.Registry[Display]
}

// NewWatcher creates an idle watcher over feed.
func NewWatcher(feed Feed, opts Options) *Watcher {
	if opts.Freshness <= 0 {
		opts.Freshness = DefaultFreshness
	}
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Reporter == nil {
		opts.Reporter = report.NewLogReporter(opts.Logger)
	}

	return &Watcher{
		feed:         feed,
		freshness:    opts.Freshness,
		dismissAfter: opts.DismissAfter,
		clock:        opts.Clock,
		reporter:     opts.Reporter,
		logger:       opts.Logger,
	}
}

// Start subscribes to the feed and moves to connected. Calling Start on a
// running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.deliverMu.Lock()
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		w.deliverMu.Unlock()
		return nil
	}
	w.session++
	s := w.session
	w.state = StateConnected
	w.mu.Unlock()
	w.subs.Publish(Display{State: StateConnected})
	w.deliverMu.Unlock()

	cancel, err := w.feed.Subscribe(ctx,
		func(c model.AlertChange) { w.handle(s, c) },
		func(err error) { w.feedError(s, err) },
	)
	if err != nil {
		err = fmt.Errorf("subscribing to alert feed: %w", err)
		w.reporter.Report(component, err)
		w.reset(s)
		return err
	}

	w.mu.Lock()
	if w.session != s {
		// Stopped while subscribing.
		w.mu.Unlock()
		cancel()
		return nil
	}
	w.cancelFeed = cancel
	w.mu.Unlock()

	w.logger.Info("alert watcher connected")
	return nil
}

// Stop cancels the dismiss timer, releases the feed and returns to idle.
// Events arriving afterwards are ignored.
func (w *Watcher) Stop() {
	cancel := w.reset(0)
	if cancel != nil {
		cancel()
	}
}

// reset moves to idle if the watcher is still in session s (0 matches any
// session) and returns the feed cancel func to call outside the locks.
func (w *Watcher) reset(s uint64) func() {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.mu.Lock()
	if w.state == StateIdle || (s != 0 && w.session != s) {
		w.mu.Unlock()
		return nil
	}
	w.session++
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	cancel := w.cancelFeed
	w.cancelFeed = nil
	w.current = nil
	w.state = StateIdle
	w.mu.Unlock()

	w.subs.Publish(Display{State: StateIdle})
	return cancel
}

// Dismiss closes the shown alert before its timer fires.
func (w *Watcher) Dismiss() {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.mu.Lock()
	if w.state != StateAlertActive {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	w.mu.Unlock()

	w.dismissLocked()
}

// Subscribe registers fn for every display change.
func (w *Watcher) Subscribe(fn func(Display)) *subscription.Subscription {
	return w.subs.Subscribe(fn)
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Current returns the alert being shown, or nil.
func (w *Watcher) Current() *model.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	a := *w.current
	return &a
}

func (w *Watcher) handle(s uint64, c model.AlertChange) {
	if c.Kind != model.ChangeAdded {
		return
	}
	if age := w.clock.Now().Sub(c.Alert.CreatedAt); age >= w.freshness {
		w.logger.Debug("ignoring stale alert", slog.Duration("age", age))
		return
	}

	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.mu.Lock()
	if w.session != s || w.state == StateIdle {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	g := w.gen
	a := c.Alert
	w.current = &a
	w.state = StateAlertActive
	w.timer = w.clock.AfterFunc(w.dismissAfter, func() { w.expire(s, g) })
	w.mu.Unlock()

	shown := a
	w.subs.Publish(Display{State: StateAlertActive, Alert: &shown})
}

func (w *Watcher) expire(s, g uint64) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.mu.Lock()
	if w.session != s || w.gen != g || w.state != StateAlertActive {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.mu.Unlock()

	w.dismissLocked()
}

// dismissLocked runs alert-active -> alert-dismissing -> connected. The
// caller holds deliverMu.
func (w *Watcher) dismissLocked() {
	w.mu.Lock()
	w.state = StateAlertDismissing
	var leaving *model.Alert
	if w.current != nil {
		a := *w.current
		leaving = &a
	}
	w.mu.Unlock()

	w.subs.Publish(Display{State: StateAlertDismissing, Alert: leaving})

	w.mu.Lock()
	w.current = nil
	w.state = StateConnected
	w.mu.Unlock()

	w.subs.Publish(Display{State: StateConnected})
}

func (w *Watcher) feedError(s uint64, err error) {
	w.mu.Lock()
	live := w.session == s && w.state != StateIdle
	w.mu.Unlock()
	if !live {
		return
	}
	w.reporter.Report(component, fmt.Errorf("alert feed: %w", err))
}
