// Package session owns the authenticated identity of a client instance: the
// Store reads and writes the shared session slots and the Synchronizer keeps
// every view's copy of the identity current.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/store"
)

// ErrInvalidIdentity is returned by Write for an identity without an ID or
// with a role outside the closed set.
var ErrInvalidIdentity = errors.New("invalid identity")

// ErrMissingToken is returned by Write when the bearer token is empty.
var ErrMissingToken = errors.New("missing bearer token")

// Navigator performs a hard redirect: every piece of in-memory view state is
// discarded and the application restarts at route.
type Navigator interface {
	HardRedirect(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) HardRedirect(route string) { f(route) }

// StoreOptions configure a Store.
type StoreOptions struct {
	Slots     store.SlotStore
	Signal    *Signal
	Navigator Navigator
	Reporter  report.Reporter
	Logger    *slog.Logger
}

// Store is the single source of truth for "who is logged in" in this client
// instance. It is created once at startup and injected into every consumer.
type Store struct {
	slots    store.SlotStore
	signal   *Signal
	nav      Navigator
	reporter report.Reporter
	logger   *slog.Logger
}

// NewStore constructs a Store. Slots is required; the other options get
// no-op defaults.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Slots == nil {
		return nil, errors.New("session store requires slot storage")
	}

	s := &Store{
		slots:    opts.Slots,
		signal:   opts.Signal,
		nav:      opts.Navigator,
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
	if s.signal == nil {
		s.signal = NewSignal()
	}
	if s.nav == nil {
		s.nav = NavigatorFunc(func(string) {})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.reporter == nil {
		s.reporter = report.NewLogReporter(s.logger)
	}
	return s, nil
}

// Signal returns the same-window signal raised by Write and Clear.
func (s *Store) Signal() *Signal {
	return s.signal
}

// Read returns the stored identity. Missing, unreadable or malformed state is
// reported as absent, never as an error.
func (s *Store) Read(ctx context.Context) (*model.Identity, bool) {
	slots, err := s.slots.ReadSlots(ctx)
	if err != nil {
		s.logger.Warn("reading session slots", slog.String("error", err.Error()))
		return nil, false
	}
	return decodeIdentity(slots.Identity)
}

// Token returns the bearer credential when a full session is stored.
func (s *Store) Token(ctx context.Context) (string, bool) {
	slots, err := s.slots.ReadSlots(ctx)
	if err != nil || !slots.Complete() {
		return "", false
	}
	if _, ok := decodeIdentity(slots.Identity); !ok {
		return "", false
	}
	return slots.Token, true
}

// IsAuthenticated is true iff both slots are present and the identity decodes.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Token(ctx)
	return ok
}

// Write persists identity and token as one unit, then raises
// SignalUserUpdated for this window. A failure to notify other instances is
// reported but does not fail the write.
func (s *Store) Write(ctx context.Context, identity model.Identity, token string) error {
	if !identity.Valid() {
		return ErrInvalidIdentity
	}
	if token == "" {
		return ErrMissingToken
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	if err := s.slots.WriteSlots(ctx, token, string(data)); err != nil {
		var bErr *store.BroadcastError
		if !errors.As(err, &bErr) {
			return fmt.Errorf("writing session: %w", err)
		}
		s.reporter.Report("session", err)
	}

	s.signal.Raise(SignalUserUpdated)
	return nil
}

// Clear removes both slots, raises SignalSessionEnded and hard-redirects to
// the landing route. The redirect happens even when clearing fails so no
// trusted view state survives a logout attempt.
func (s *Store) Clear(ctx context.Context) error {
	var result error
	if err := s.slots.ClearSlots(ctx); err != nil {
		var bErr *store.BroadcastError
		if errors.As(err, &bErr) {
			s.reporter.Report("session", err)
		} else {
			result = fmt.Errorf("clearing session: %w", err)
		}
	}

	s.signal.Raise(SignalSessionEnded)
	s.nav.HardRedirect(model.LandingRoute)
	return result
}

// RoleRank classifies identity; see model.RoleRank.
func (s *Store) RoleRank(identity model.Identity) model.Role {
	return model.RoleRank(identity)
}

// HasElevatedAccess is true for agent and admin identities.
func (s *Store) HasElevatedAccess(identity model.Identity) bool {
	return model.HasElevatedAccess(model.RoleRank(identity))
}

func decodeIdentity(raw string) (*model.Identity, bool) {
	if raw == "" {
		return nil, false
	}
	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, false
	}
	if !identity.Valid() {
		return nil, false
	}
	return &identity, true
}
