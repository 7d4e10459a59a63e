package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/registry-portal/internal/alert"
	"github.com/nhle/registry-portal/internal/api"
	"github.com/nhle/registry-portal/internal/auth"
	"github.com/nhle/registry-portal/internal/keys"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/session"
	appsync "github.com/nhle/registry-portal/internal/sync"
	"github.com/nhle/registry-portal/internal/ui"
	"github.com/nhle/registry-portal/internal/ui/alertbanner"
	"github.com/nhle/registry-portal/internal/ui/bell"
	"github.com/nhle/registry-portal/internal/ui/command"
	"github.com/nhle/registry-portal/internal/ui/config"
	"github.com/nhle/registry-portal/internal/ui/dashboard"
	"github.com/nhle/registry-portal/internal/ui/detail"
	helpview "github.com/nhle/registry-portal/internal/ui/help"
	"github.com/nhle/registry-portal/internal/ui/login"
	"github.com/nhle/registry-portal/internal/ui/navbar"
	"github.com/nhle/registry-portal/internal/ui/profile"
)

// errorTTL is how long a reported failure stays in the status bar.
const errorTTL = 15 * time.Second

// Core groups the long-lived components of one client instance.
type Core struct {
	Store        *session.Store
	Sync         *session.Synchronizer
	Auth         *auth.Service
	Poller       *appsync.Poller
	Alerts       *alert.Watcher // nil when realtime alerts are disabled
	Errors       *report.Recorder
	PollInterval time.Duration
	Logger       *slog.Logger

	// Config and ConfigPath back the settings screen; it is disabled when
	// Config is nil.
	Config     *model.AppConfig
	ConfigPath string
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewDashboard
	ViewBell
	ViewDetail
	ViewProfile
	ViewHelp
	ViewCommand
	ViewSettings
)

// Bridged messages carry the generation of the binding that produced them;
// messages from a torn-down generation are dropped.
type (
	identityMsg struct {
		gen      uint64
		identity *model.Identity
	}
	notificationsMsg struct {
		gen  uint64
		list []model.Notification
	}
	alertMsg struct {
		gen     uint64
		display alert.Display
	}
	hardRedirectMsg struct {
		route string
	}
)

type (
	loginResultMsg struct {
		outcome auth.Outcome
		err     error
	}
	profileResultMsg struct {
		err error
	}
	mutationDoneMsg struct {
		err error
	}
)

// Model is the root Bubble Tea model. It is a pure consumer of the core:
// every piece of state it shows arrives through a subscription.
type Model struct {
	core   *Core
	bridge *Bridge
	bind   *binding
	keys   *keys.KeyMap

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool
	route        string

	identity *model.Identity

	navbar      navbar.Model
	banner      alertbanner.Model
	dash        dashboard.Model
	bellView    bell.Model
	detailView  detail.Model
	loginView   login.Model
	profileView profile.Model
	helpView    helpview.Model
	commandView command.Model
	configView  config.Model
}

// New creates a root model bound to core. bridge must be the Navigator of
// core.Store.
func New(core *Core, bridge *Bridge) Model {
	k := keys.DefaultKeyMap()
	return Model{
		core:        core,
		bridge:      bridge,
		bind:        newBinding(bridge),
		keys:        k,
		currentView: ViewLogin,
		route:       model.LandingRoute,
		navbar:      navbar.New(80),
		banner:      alertbanner.New(80),
		dash:        dashboard.New(80, 24),
		bellView:    bell.New(k, 80, 24),
		detailView:  detail.New(k, 80, 24),
		loginView:   login.New(80, 24),
		profileView: profile.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		configView:  newConfigView(core),
	}
}

// Init starts the bridge pump, binds the core and shows the login form
// until the synchronizer reports an identity.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.wait(),
		m.bindCore(),
		m.loginView.Init(),
	)
}

// Route returns the logical route of the current screen.
func (m Model) Route() string {
	return m.route
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// Close releases every subscription of this model. Call it after the program
// has exited.
func (m Model) Close() {
	m.bind.close()
}

// bindCore subscribes to the synchronizer, the poller and the alert watcher.
// It runs off the update loop because the first deliveries are synchronous.
func (m Model) bindCore() tea.Cmd {
	core, b := m.core, m.bind
	return func() tea.Msg {
		b.add(core.Sync.Subscribe(func(id *model.Identity) {
			b.send(identityMsg{gen: b.gen, identity: id})
		}))
		b.add(core.Poller.Subscribe(func(list []model.Notification) {
			b.send(notificationsMsg{gen: b.gen, list: list})
		}))

		if core.Alerts != nil {
			b.add(core.Alerts.Subscribe(func(d alert.Display) {
				b.send(alertMsg{gen: b.gen, display: d})
			}))
			if err := core.Alerts.Start(context.Background()); err != nil {
				core.Logger.Warn("realtime alerts unavailable", slog.String("error", err.Error()))
			}
		}
		return nil
	}
}

// teardown releases a binding and the state it fed. It runs off the update
// loop because stopping components waits for their delivery locks.
func teardown(core *Core, b *binding) tea.Cmd {
	return func() tea.Msg {
		b.close()
		core.Poller.Clear()
		if core.Alerts != nil {
			core.Alerts.Stop()
		}
		return nil
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m.updateActiveView(msg)

	case identityMsg:
		if msg.gen != m.bind.gen {
			return m, m.bridge.wait()
		}
		return m.applyIdentity(msg.identity)

	case notificationsMsg:
		if msg.gen != m.bind.gen {
			return m, m.bridge.wait()
		}
		m.navbar.SetUnread(model.UnreadCount(msg.list))
		m.dash.SetNotifications(msg.list)
		cmd := m.bellView.SetNotifications(msg.list)
		if m.currentView == ViewDetail && !m.detailView.Sync(msg.list) {
			m.currentView = ViewBell
		}
		return m, tea.Batch(cmd, m.bridge.wait())

	case alertMsg:
		if msg.gen != m.bind.gen {
			return m, m.bridge.wait()
		}
		m.banner.SetDisplay(msg.display)
		m.resize()
		return m, m.bridge.wait()

	case hardRedirectMsg:
		return m.hardRedirect(msg.route)

	case login.SubmitMsg:
		return m, m.login(msg.Email, msg.Password)

	case login.CancelMsg:
		cmd := m.loginView.Start()
		return m, cmd

	case loginResultMsg:
		switch {
		case msg.err != nil:
			cmd := m.loginView.SetError(msg.err.Error())
			return m, cmd
		case msg.outcome.Kind == auth.OutcomeVerificationRequired:
			m.loginView.SetVerification(msg.outcome.Email)
			m.route = "/verify-email"
		}
		// A successful login arrives as an identityMsg.
		return m, nil

	case profile.SavedMsg:
		m.currentView = ViewDashboard
		return m, m.updateProfile(msg.Identity)

	case profile.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case profileResultMsg, mutationDoneMsg:
		// Failures are already in the error recorder.
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewDashboard
		return m.runAction(msg.Action)

	case command.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case config.DoneMsg:
		if msg.Config != nil {
			*m.core.Config = *msg.Config
		}
		m.currentView = m.returnView()
		if m.currentView == ViewLogin {
			cmd := m.loginView.Start()
			return m, cmd
		}
		return m, nil

	case bell.CloseMsg:
		m.currentView = ViewDashboard
		return m, nil

	case bell.OpenMsg:
		m.detailView.SetNotification(msg.Notification)
		m.currentView = ViewDetail
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewBell
		return m, nil

	case detail.ActionMsg:
		id := msg.ID
		if msg.Action == detail.ActionDelete {
			return m, m.mutate(func(ctx context.Context) error { return m.core.Poller.Delete(ctx, id) })
		}
		return m, m.mutate(func(ctx context.Context) error { return m.core.Poller.MarkRead(ctx, id) })

	case bell.MarkReadMsg:
		return m, m.mutate(func(ctx context.Context) error { return m.core.Poller.MarkRead(ctx, msg.ID) })

	case bell.MarkAllReadMsg:
		return m, m.mutate(m.core.Poller.MarkAllRead)

	case bell.DeleteMsg:
		return m, m.mutate(func(ctx context.Context) error { return m.core.Poller.Delete(ctx, msg.ID) })

	case bell.RefreshMsg:
		m.core.Poller.Refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+s" && m.currentView != ViewSettings && m.currentView != ViewCommand {
			return m.runAction(command.ActionSettings)
		}
		if m.inForm() {
			break
		}

		switch msg.String() {
		case "q":
			if m.currentView == ViewDashboard {
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.returnView()
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case "x":
			if m.core.Alerts != nil && m.banner.Visible() {
				w := m.core.Alerts
				return m, func() tea.Msg { w.Dismiss(); return nil }
			}

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.returnView()
				return m, nil
			}
		}

		if m.currentView == ViewDashboard {
			switch msg.String() {
			case "b":
				return m.runAction(command.ActionBell)
			case "r":
				return m.runAction(command.ActionRefresh)
			case "p":
				return m.runAction(command.ActionProfile)
			case "L":
				return m.runAction(command.ActionLogout)
			case ":":
				m.currentView = ViewCommand
				cmd := m.commandView.Open()
				return m, cmd
			}
		}
	}

	return m.updateActiveView(msg)
}

// runAction performs a dashboard action, whether it came from a shortcut or
// the command palette.
func (m Model) runAction(a command.Action) (tea.Model, tea.Cmd) {
	switch a {
	case command.ActionBell:
		m.currentView = ViewBell
	case command.ActionRefresh:
		m.core.Poller.Refresh()
	case command.ActionReadAll:
		return m, m.mutate(m.core.Poller.MarkAllRead)
	case command.ActionProfile:
		if m.identity != nil {
			m.currentView = ViewProfile
			cmd := m.profileView.Start(*m.identity)
			return m, cmd
		}
	case command.ActionLogout:
		return m, m.logout()
	case command.ActionHelp:
		m.previousView = m.currentView
		m.currentView = ViewHelp
	case command.ActionSettings:
		if m.core.Config != nil {
			m.previousView = m.currentView
			m.currentView = ViewSettings
			cmd := m.configView.Start(*m.core.Config)
			return m, cmd
		}
	case command.ActionQuit:
		return m, tea.Quit
	}
	return m, nil
}

// returnView is the view to go back to from help or settings. The session may
// have started or ended in the meantime.
func (m Model) returnView() ViewState {
	switch {
	case m.identity == nil:
		return ViewLogin
	case m.previousView == ViewLogin:
		return ViewDashboard
	default:
		return m.previousView
	}
}

// applyIdentity switches between the login form and the role dashboard.
func (m Model) applyIdentity(id *model.Identity) (tea.Model, tea.Cmd) {
	wasSignedIn := m.identity != nil
	m.identity = id
	m.navbar.SetIdentity(id)
	m.dash.SetIdentity(id)

	if id == nil {
		m.bind.stopPolling()
		m.route = model.LandingRoute
		m.navbar.SetUnread(0)
		m.currentView = ViewLogin
		if wasSignedIn {
			// Ended in another window: no redirect here, only the guard.
			core := m.core
			start := m.loginView.Start()
			return m, tea.Batch(
				start,
				func() tea.Msg { core.Poller.Clear(); return nil },
				m.bridge.wait(),
			)
		}
		return m, m.bridge.wait()
	}

	m.bind.startPolling(m.core.Poller, m.core.PollInterval)
	m.route = m.dash.Route()
	if m.currentView == ViewLogin {
		m.currentView = ViewDashboard
	}
	return m, m.bridge.wait()
}

// hardRedirect drops every piece of view state and rebuilds the root model.
func (m Model) hardRedirect(route string) (tea.Model, tea.Cmd) {
	m.core.Logger.Info("hard redirect", slog.String("route", route))

	fresh := New(m.core, m.bridge)
	fresh.route = route
	if m.ready {
		fresh.layout = m.layout
		fresh.ready = true
		fresh.resize()
	}

	return fresh, tea.Batch(
		tea.Sequence(teardown(m.core, m.bind), fresh.bindCore()),
		fresh.loginView.Init(),
		m.bridge.wait(),
	)
}

func newConfigView(core *Core) config.Model {
	path := core.ConfigPath
	check := func(ctx context.Context, baseURL string) error {
		return api.Probe(ctx, baseURL, 5*time.Second)
	}
	save := func(cfg *model.AppConfig) error {
		return model.SaveConfig(path, cfg)
	}
	return config.New(check, save, 80, 24)
}

func (m Model) login(email, password string) tea.Cmd {
	svc := m.core.Auth
	return func() tea.Msg {
		out, err := svc.Login(context.Background(), email, password)
		return loginResultMsg{outcome: out, err: err}
	}
}

func (m Model) logout() tea.Cmd {
	svc, logger := m.core.Auth, m.core.Logger
	return func() tea.Msg {
		if err := svc.Logout(context.Background()); err != nil {
			logger.Error("logout", slog.String("error", err.Error()))
		}
		return nil
	}
}

func (m Model) updateProfile(identity model.Identity) tea.Cmd {
	svc := m.core.Auth
	return func() tea.Msg {
		return profileResultMsg{err: svc.UpdateProfile(context.Background(), identity)}
	}
}

func (m Model) mutate(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return mutationDoneMsg{err: fn(context.Background())}
	}
}

func (m Model) inForm() bool {
	switch m.currentView {
	case ViewLogin, ViewProfile, ViewCommand, ViewSettings:
		return true
	}
	return false
}

func (m *Model) resize() {
	w := m.layout.ContentWidth()
	m.navbar.SetWidth(w)
	m.banner.SetWidth(w)

	h := m.layout.ContentHeight(m.banner.Height())
	m.dash.SetSize(w, h)
	m.bellView.SetSize(w, h)
	m.detailView.SetSize(w, h)
	m.loginView.SetSize(w, h)
	m.profileView.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.configView.SetSize(w, h)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewBell:
		m.bellView, cmd = m.bellView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewProfile:
		m.profileView, cmd = m.profileView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSettings:
		m.configView, cmd = m.configView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Chargement..."
	}

	m.navbar.SetStatus(m.syncStatus())
	return m.layout.Compose(
		m.navbar.View(),
		m.banner.View(),
		m.renderContent(),
		m.layout.RenderStatusBar(m.keyHints(), m.recentError()),
	)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewDashboard:
		return m.dash.View()
	case ViewBell:
		return m.bellView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewProfile:
		return m.profileView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSettings:
		return m.configView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the notification sync.
func (m Model) syncStatus() string {
	if m.identity == nil {
		return ""
	}
	st := m.core.Poller.Status()
	switch st.State {
	case appsync.SyncRunning:
		return "synchronisation..."
	case appsync.SyncError:
		return "⚠ hors ligne"
	default:
		if st.LastSync.IsZero() {
			return ""
		}
		return "à jour " + st.LastSync.Format("15:04")
	}
}

// recentError returns the latest reported failure if it is still fresh.
func (m Model) recentError() string {
	if m.core.Errors == nil {
		return ""
	}
	e, ok := m.core.Errors.Last()
	if !ok || time.Since(e.At) > errorTTL {
		return ""
	}

	var rejected *auth.RejectedError
	if errors.As(e.Err, &rejected) {
		// Shown by the login form already.
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter valider | ctrl+s paramètres | ctrl+c quitter"
	case ViewBell:
		return "v ouvrir | enter lu | A tout lu | d supprimer | r actualiser | esc retour"
	case ViewDetail:
		return "enter lu | d supprimer | j/k défiler | esc retour"
	case ViewProfile:
		return "enter enregistrer | esc annuler"
	case ViewHelp:
		return "? fermer l'aide | esc retour"
	case ViewCommand:
		return "enter exécuter | esc fermer"
	case ViewSettings:
		return "enter valider | esc annuler"
	default:
		return m.helpView.ShortView()
	}
}
