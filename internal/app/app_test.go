package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/alert"
	"github.com/nhle/registry-portal/internal/api"
	"github.com/nhle/registry-portal/internal/auth"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/session"
	appsync "github.com/nhle/registry-portal/internal/sync"
	"github.com/nhle/registry-portal/internal/ui/config"
	"github.com/nhle/registry-portal/tests/testutil"
)

type stubLogin struct {
	result *api.LoginResult
	err    error
}

func (s stubLogin) Login(context.Context, string, string) (*api.LoginResult, error) {
	return s.result, s.err
}

type stubNotifications struct{}

func (stubNotifications) ListNotifications(context.Context) ([]model.Notification, error) {
	return nil, nil
}
func (stubNotifications) MarkNotificationRead(context.Context, string) error { return nil }
func (stubNotifications) MarkAllNotificationsRead(context.Context) error     { return nil }
func (stubNotifications) DeleteNotification(context.Context, string) error   { return nil }

func newTestCore(t *testing.T, bridge *Bridge, login auth.LoginAPI) *Core {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := report.NewRecorder(10, nil)

	st, err := session.NewStore(session.StoreOptions{
		Slots:     testutil.NewTestStore(t),
		Navigator: bridge,
		Reporter:  rec,
		Logger:    logger,
	})
	require.NoError(t, err)

	sy := session.NewSynchronizer(st, nil)
	t.Cleanup(sy.Close)

	return &Core{
		Store:        st,
		Sync:         sy,
		Auth:         auth.NewService(login, st, rec, logger),
		Poller:       appsync.New(stubNotifications{}, rec, logger),
		Errors:       rec,
		PollInterval: time.Hour,
		Logger:       logger,
	}
}

func citizen() *model.Identity {
	return &model.Identity{ID: "u1", Name: "Awa", Surname: "Diop", Email: "a@b.com", Role: model.RoleCitizen}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestIdentityRoutesToRoleDashboard(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{})
	m := New(core, bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})

	assert.Equal(t, ViewDashboard, m.CurrentView())
	assert.Equal(t, "/citizen", m.Route())
	assert.True(t, m.bind.polling())
	assert.True(t, core.Poller.Running())
}

func TestStaleGenerationIsDropped(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen + 1, identity: citizen()})
	assert.Equal(t, ViewLogin, m.CurrentView())
}

func TestLogoutElsewhereShowsLogin(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{})
	m := New(core, bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})
	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: nil})

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Equal(t, model.LandingRoute, m.Route())
	assert.False(t, core.Poller.Running())
}

func TestHardRedirectRebuildsModel(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{})
	m := New(core, bridge)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})
	oldGen := m.bind.gen
	t.Cleanup(m.bind.close)

	m, cmd := update(t, m, hardRedirectMsg{route: model.LandingRoute})
	t.Cleanup(m.Close)

	assert.NotNil(t, cmd)
	assert.NotEqual(t, oldGen, m.bind.gen)
	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Nil(t, m.identity)
	assert.True(t, m.ready)

	// Deliveries addressed to the old generation no longer land.
	m, _ = update(t, m, identityMsg{gen: oldGen, identity: citizen()})
	assert.Equal(t, ViewLogin, m.CurrentView())
}

func TestLoginRejectionShowsServerMessage(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	rejected := &auth.RejectedError{Message: "Identifiants invalides"}
	m, _ = update(t, m, loginResultMsg{err: rejected})

	assert.Equal(t, "Identifiants invalides", m.loginView.Error())
	assert.Empty(t, m.recentError())
}

func TestLoginVerificationRoutesToNotice(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, loginResultMsg{outcome: auth.Outcome{Kind: auth.OutcomeVerificationRequired, Email: "x@y.com"}})

	assert.Equal(t, "x@y.com", m.loginView.VerificationEmail())
	assert.Equal(t, "/verify-email", m.Route())
	assert.Empty(t, m.loginView.Error())
}

func TestLoginCommandWritesSession(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{result: &api.LoginResult{Token: "jwt", User: *citizen()}})
	m := New(core, bridge)
	t.Cleanup(m.Close)

	msg := m.login("a@b.com", "pw")()
	res, ok := msg.(loginResultMsg)
	require.True(t, ok)
	require.NoError(t, res.err)
	assert.Equal(t, auth.OutcomeAuthenticated, res.outcome.Kind)
	assert.True(t, core.Store.IsAuthenticated(context.Background()))
}

func TestDashboardKeys(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	assert.Equal(t, ViewBell, m.CurrentView())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, ViewDashboard, m.CurrentView())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, ViewHelp, m.CurrentView())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, ViewDashboard, m.CurrentView())
}

func TestAlertDisplayFeedsBanner(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, alertMsg{gen: m.bind.gen, display: alert.Display{
		State: alert.StateAlertActive,
		Alert: &model.Alert{Message: "Service indisponible à 18h"},
	}})

	assert.True(t, m.banner.Visible())
	assert.Contains(t, m.View(), "Service indisponible")
}

func TestRecentErrorInStatusBar(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{})
	m := New(core, bridge)
	t.Cleanup(m.Close)

	core.Errors.Report("notifications", errors.New("fetching notifications: 502"))
	assert.Equal(t, "notifications: fetching notifications: 502", m.recentError())
}

func TestCommandPaletteRunsAction(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	require.Equal(t, ViewCommand, m.CurrentView())

	// Shortcuts are plain text while the palette is open.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("cloche")})
	assert.Equal(t, ViewCommand, m.CurrentView())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, ViewBell, m.CurrentView())
}

func TestSettingsFromLoginScreen(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	core := newTestCore(t, bridge, stubLogin{})
	core.Config = &model.AppConfig{
		API:           model.APIConfig{BaseURL: "http://localhost:5000/api", TimeoutSec: 30},
		Session:       model.SessionConfig{Backend: model.SessionBackendSQLite},
		Sync:          model.SyncConfig{Backend: model.SyncBackendLocal},
		Notifications: model.NotificationsConfig{PollIntervalSec: 60},
	}
	core.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	m := New(core, bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, ViewSettings, m.CurrentView())

	edited := *core.Config
	edited.API.BaseURL = "https://portail.example.org/api"
	m, _ = update(t, m, config.DoneMsg{Config: &edited})

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Equal(t, "https://portail.example.org/api", core.Config.API.BaseURL)
}

func TestSettingsDisabledWithoutConfig(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, ViewLogin, m.CurrentView())
}

func TestNotificationDetailFollowsSnapshot(t *testing.T) {
	bridge := NewBridge()
	t.Cleanup(bridge.Close)
	m := New(newTestCore(t, bridge, stubLogin{}), bridge)
	t.Cleanup(m.Close)

	m, _ = update(t, m, identityMsg{gen: m.bind.gen, identity: citizen()})
	list := []model.Notification{{ID: "n1", Title: "Acte prêt", Type: model.NotificationInfo, CreatedAt: time.Now()}}
	m, _ = update(t, m, notificationsMsg{gen: m.bind.gen, list: list})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("v")})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	require.Equal(t, ViewDetail, m.CurrentView())

	// Deleted elsewhere: back to the list.
	m, _ = update(t, m, notificationsMsg{gen: m.bind.gen, list: nil})
	assert.Equal(t, ViewBell, m.CurrentView())
}
