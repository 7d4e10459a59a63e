// Package config is the settings screen. It edits the connection settings of
// the portal client, checks that the API answers and writes the YAML file.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
	"github.com/nhle/registry-portal/internal/ui"
)

const checkTimeout = 10 * time.Second

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeForm     Mode = iota // Editing
	ModeChecking             // Probing the API
	ModeResult               // Showing the outcome
)

// Checker reports whether the portal API answers at baseURL.
type Checker func(ctx context.Context, baseURL string) error

// Saver persists the configuration.
type Saver func(cfg *model.AppConfig) error

// DoneMsg signals the settings view should close. Config is set when new
// settings were written.
type DoneMsg struct {
	Config *model.AppConfig
}

// resultMsg carries the outcome of a check-and-save.
type resultMsg struct {
	cfg model.AppConfig
	err error
}

type formBindings struct {
	baseURL      string
	timeout      string
	pollInterval string
	syncBackend  string
	redisAddr    string
}

// Model is the Bubble Tea model for the settings screen.
type Model struct {
	mode    Mode
	form    *huh.Form
	fb      *formBindings
	base    model.AppConfig
	check   Checker
	save    Saver
	spinner spinner.Model
	err     error
	saved   *model.AppConfig
	width   int
	height  int
}

// New creates a settings view using check and save.
func New(check Checker, save Saver, width, height int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		fb:      &formBindings{},
		check:   check,
		save:    save,
		spinner: s,
		width:   width,
		height:  height,
	}
}

// Start opens the form prefilled with cfg.
func (m *Model) Start(cfg model.AppConfig) tea.Cmd {
	m.base = cfg
	m.saved = nil
	m.err = nil
	m.fb.baseURL = cfg.API.BaseURL
	m.fb.timeout = strconv.Itoa(cfg.API.TimeoutSec)
	m.fb.pollInterval = strconv.Itoa(cfg.Notifications.PollIntervalSec)
	m.fb.syncBackend = cfg.Sync.Backend
	m.fb.redisAddr = cfg.Sync.RedisAddr
	return m.openForm()
}

func (m *Model) openForm() tea.Cmd {
	m.mode = ModeForm
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("URL de l'API").
				Placeholder("http://localhost:5000/api").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Délai des requêtes (s)").
				Value(&m.fb.timeout).
				Validate(validateSeconds("Délai")),
			huh.NewInput().
				Title("Intervalle des notifications (s)").
				Value(&m.fb.pollInterval).
				Validate(validateSeconds("Intervalle")),
			huh.NewSelect[string]().
				Title("Synchronisation entre fenêtres").
				Options(
					huh.NewOption("Fichier partagé", model.SyncBackendFile),
					huh.NewOption("Redis", model.SyncBackendRedis),
					huh.NewOption("Ce processus uniquement", model.SyncBackendLocal),
				).
				Value(&m.fb.syncBackend),
			huh.NewInput().
				Title("Adresse Redis").
				Description("Uniquement pour la synchronisation Redis").
				Placeholder("localhost:6379").
				Value(&m.fb.redisAddr),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false).WithKeyMap(ui.FormKeyMap())
	return m.form.Init()
}

// Edited returns the configuration built from the form fields. Fields the
// form does not show keep their current value.
func (m Model) Edited() model.AppConfig {
	cfg := m.base
	cfg.API.BaseURL = strings.TrimSpace(m.fb.baseURL)
	if n, err := strconv.Atoi(strings.TrimSpace(m.fb.timeout)); err == nil {
		cfg.API.TimeoutSec = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(m.fb.pollInterval)); err == nil {
		cfg.Notifications.PollIntervalSec = n
	}
	cfg.Sync.Backend = m.fb.syncBackend
	cfg.Sync.RedisAddr = strings.TrimSpace(m.fb.redisAddr)
	return cfg
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Err returns the failure of the last check-and-save.
func (m Model) Err() error {
	return m.err
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.mode = ModeResult
		m.err = msg.err
		if msg.err == nil {
			cfg := msg.cfg
			m.saved = &cfg
			m.base = cfg
		}
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeChecking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode == ModeResult {
			return m.handleResultKeys(msg)
		}
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, cmd
}

// submit validates the edited settings as a whole, then checks and saves.
func (m Model) submit() (Model, tea.Cmd) {
	cfg := m.Edited()
	if err := cfg.Validate(); err != nil {
		m.mode = ModeResult
		m.err = err
		return m, nil
	}

	m.mode = ModeChecking
	return m, tea.Batch(m.spinner.Tick, m.checkAndSave(cfg))
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		if m.err != nil {
			cmd := m.openForm()
			return m, cmd
		}
	case "enter", "esc":
		done := DoneMsg{Config: m.saved}
		return m, func() tea.Msg { return done }
	}
	return m, nil
}

// checkAndSave probes the API and writes cfg if it answers.
func (m Model) checkAndSave(cfg model.AppConfig) tea.Cmd {
	check, save := m.check, m.save
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := check(ctx, cfg.API.BaseURL); err != nil {
			return resultMsg{err: fmt.Errorf("API injoignable: %w", err)}
		}
		if err := save(&cfg); err != nil {
			return resultMsg{err: fmt.Errorf("enregistrement impossible: %w", err)}
		}
		return resultMsg{cfg: cfg}
	}
}

// --- View ---

// View renders the settings screen for the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().Padding(1, 2).Width(m.width)
	title := theme.HeaderStyle.MarginBottom(1).Render("Paramètres")

	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return style.Render(title + "\n" + m.form.View())

	case ModeChecking:
		return style.Render(title + "\n" + m.spinner.View() + " Vérification de l'API...")

	case ModeResult:
		if m.err != nil {
			errStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed)
			return style.Render(title + "\n" +
				errStyle.Render("Échec") + "\n\n" + m.err.Error() + "\n\n" +
				theme.HelpStyle.Render("r réessayer | enter/esc retour"))
		}
		okStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
		return style.Render(title + "\n" +
			okStyle.Render("Paramètres enregistrés") + "\n\n" +
			"Redémarrez le portail pour les appliquer.\n\n" +
			theme.HelpStyle.Render("enter/esc retour"))
	}
	return ""
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("l'URL est obligatoire")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("URL invalide: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("l'URL doit contenir le schéma et l'hôte (ex. https://portail.example.com/api)")
	}
	return nil
}

func validateSeconds(fieldName string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s doit être un nombre de secondes positif", fieldName)
		}
		return nil
	}
}
