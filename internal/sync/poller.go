package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/subscription"
)

// DefaultPollInterval is used when Start is given a non-positive interval.
const DefaultPollInterval = 60 * time.Second

const component = "notifications"

// NotificationAPI is the slice of the portal API the poller needs.
type NotificationAPI interface {
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// SyncState represents the current state of the notification sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state shown in the status bar.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// run is one Start..Unsubscribe lifetime.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Poller keeps a local copy of the user's notification list, refreshed on a
// fixed interval, and applies read/delete mutations optimistically.
//
// Subscriber callbacks run synchronously and may read Snapshot or
// UnreadCount, but must not call MarkRead, MarkAllRead or Delete.
type Poller struct {
	api      NotificationAPI
	reporter report.Reporter
	logger   *slog.Logger

	mu       gosync.Mutex
	snapshot []model.Notification
	status   SyncStatus
	current  *run

	deliverMu gosync.Mutex
	subs      subscription.Registry[[]model.Notification]

	fetching atomic.Bool
}

// New creates a Poller for api. Failures go to reporter.
func New(api NotificationAPI, reporter report.Reporter, logger *slog.Logger) *Poller {
	return &Poller{
		api:      api,
		reporter: reporter,
		logger:   logger,
	}
}

// Start fetches immediately and then every interval until the returned
// subscription is released. Starting again replaces the previous run.
// Releasing the subscription cancels an in-flight fetch; its result, if it
// still arrives and is not already being published, is discarded.
func (p *Poller) Start(interval time.Duration) *subscription.Subscription {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel}

	p.mu.Lock()
	previous := p.current
	p.current = r
	p.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go p.loop(r, interval)

	return subscription.New(func() { p.stopRun(r) })
}

func (p *Poller) stopRun(r *run) {
	r.cancel()

	p.mu.Lock()
	if p.current == r {
		p.current = nil
	}
	p.mu.Unlock()
}

// Running reports whether a polling run is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// loop drives the polling for a single run.
func (p *Poller) loop(r *run, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	p.poll(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			p.poll(r.ctx)
		}
	}
}

// Refresh triggers an immediate fetch. It returns false, and does nothing,
// when a fetch is already in flight.
func (p *Poller) Refresh() bool {
	p.mu.Lock()
	ctx := context.Background()
	if p.current != nil {
		ctx = p.current.ctx
	}
	p.mu.Unlock()

	return p.poll(ctx)
}

// poll starts a fetch unless one is still in flight; a busy tick is skipped,
// not queued.
func (p *Poller) poll(ctx context.Context) bool {
	if !p.fetching.CompareAndSwap(false, true) {
		p.logger.Debug("skipping notification poll, previous fetch in flight")
		return false
	}

	go func() {
		defer p.fetching.Store(false)
		p.fetch(ctx)
	}()
	return true
}

// fetch performs a single fetch and replaces the snapshot on success.
func (p *Poller) fetch(ctx context.Context) {
	p.setStatus(SyncRunning, nil)

	list, err := p.api.ListNotifications(ctx)
	if ctx.Err() != nil {
		// Stopped while the request was in flight.
		p.mu.Lock()
		p.status.State = SyncIdle
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.setStatus(SyncError, err)
		p.reporter.Report(component, fmt.Errorf("fetching notifications: %w", err))
		return
	}

	sorted := make([]model.Notification, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if !p.replaceLive(ctx, func([]model.Notification) []model.Notification { return sorted }) {
		p.mu.Lock()
		p.status.State = SyncIdle
		p.mu.Unlock()
		return
	}
	p.setStatus(SyncIdle, nil)
}

// Subscribe registers fn for every new snapshot. fn is not called with the
// current snapshot; use Snapshot for that.
func (p *Poller) Subscribe(fn func([]model.Notification)) *subscription.Subscription {
	return p.subs.Subscribe(fn)
}

// Snapshot returns the latest notification list, most recent first.
func (p *Poller) Snapshot() []model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.Notification, len(p.snapshot))
	copy(out, p.snapshot)
	return out
}

// UnreadCount is derived from the current snapshot on every call.
func (p *Poller) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return model.UnreadCount(p.snapshot)
}

// Status returns the current sync status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// MarkRead flips the local read flag before calling the API. A remote failure
// is reported and returned; the local flag stays set until the next poll
// says otherwise.
func (p *Poller) MarkRead(ctx context.Context, id string) error {
	p.replace(func(list []model.Notification) []model.Notification {
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
			}
		}
		return list
	})

	if err := p.api.MarkNotificationRead(ctx, id); err != nil {
		err = fmt.Errorf("marking notification %s as read: %w", id, err)
		p.reporter.Report(component, err)
		return err
	}
	return nil
}

// MarkAllRead flips every unread record locally, then calls the API. Same
// failure semantics as MarkRead.
func (p *Poller) MarkAllRead(ctx context.Context) error {
	p.replace(func(list []model.Notification) []model.Notification {
		for i := range list {
			list[i].Read = true
		}
		return list
	})

	if err := p.api.MarkAllNotificationsRead(ctx); err != nil {
		err = fmt.Errorf("marking all notifications as read: %w", err)
		p.reporter.Report(component, err)
		return err
	}
	return nil
}

// Delete removes the record locally, then calls the API. A remote failure is
// reported and returned; the record reappears on the next poll if the server
// still has it.
func (p *Poller) Delete(ctx context.Context, id string) error {
	p.replace(func(list []model.Notification) []model.Notification {
		kept := list[:0]
		for _, n := range list {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		return kept
	})

	if err := p.api.DeleteNotification(ctx, id); err != nil {
		err = fmt.Errorf("deleting notification %s: %w", id, err)
		p.reporter.Report(component, err)
		return err
	}
	return nil
}

// Clear drops the snapshot and the sync status. Used when the session ends.
func (p *Poller) Clear() {
	p.replace(func([]model.Notification) []model.Notification { return nil })

	p.mu.Lock()
	p.status = SyncStatus{}
	p.mu.Unlock()
}

// replace swaps the snapshot for mutate(copy of snapshot) and publishes the
// result. Published slices are never modified afterwards.
func (p *Poller) replace(mutate func([]model.Notification) []model.Notification) {
	p.replaceLive(context.Background(), mutate)
}

// replaceLive is replace for a fetch of a run. It does nothing and returns
// false if ctx is done once deliverMu is held.
func (p *Poller) replaceLive(ctx context.Context, mutate func([]model.Notification) []model.Notification) bool {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	working := make([]model.Notification, len(p.snapshot))
	copy(working, p.snapshot)
	next := mutate(working)
	p.snapshot = next
	p.mu.Unlock()

	published := make([]model.Notification, len(next))
	copy(published, next)
	p.subs.Publish(published)
	return true
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}
