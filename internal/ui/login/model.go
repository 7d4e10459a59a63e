// Package login is the sign-in form and the email verification notice.
package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/theme"
	"github.com/nhle/registry-portal/internal/ui"
)

// SubmitMsg is dispatched when the user submits credentials.
type SubmitMsg struct {
	Email    string
	Password string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

// Model is the Bubble Tea model for the login screen.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	err    string
	verify string
	busy   bool
	width  int
	height int
}

// New creates a login model with a ready form.
func New(width, height int) Model {
	m := Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Init returns the form's initial command.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Start (re)builds the form, keeping the last email.
func (m *Model) Start() tea.Cmd {
	m.fb.password = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a rejection message under the form and reopens it.
func (m *Model) SetError(msg string) tea.Cmd {
	m.err = msg
	m.verify = ""
	return m.Start()
}

// SetVerification switches to the verification notice for email.
func (m *Model) SetVerification(email string) {
	m.verify = email
	m.err = ""
	m.busy = false
}

// VerificationEmail returns the account awaiting verification, if any.
func (m Model) VerificationEmail() string {
	return m.verify
}

// Error returns the message currently shown.
func (m Model) Error() string {
	return m.err
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.verify != "" {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "enter" {
			m.verify = ""
			return m, m.Start()
		}
		return m, nil
	}
	if m.form == nil || m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		sub := SubmitMsg{Email: strings.TrimSpace(m.fb.email), Password: m.fb.password}
		return m, func() tea.Msg { return sub }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form or the verification notice.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	if m.verify != "" {
		body := fmt.Sprintf(
			"Votre adresse n'est pas encore vérifiée.\nUn lien de vérification a été envoyé à %s.\n\n%s",
			m.verify, theme.HelpStyle.Render("enter revenir à la connexion"),
		)
		return lipgloss.NewStyle().Padding(1, 2).
			Render(titleStyle.Render("Vérification requise") + "\n" + body)
	}

	if m.form == nil {
		return ""
	}

	content := titleStyle.Render("Connexion") + "\n" + m.form.View()
	if m.busy {
		content += "\n" + theme.DimmedStyle.Render("Connexion en cours...")
	}
	if m.err != "" {
		content += "\n" + lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("nom@exemple.sn").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Mot de passe").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Mot de passe")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false).WithKeyMap(ui.FormKeyMap())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 30 {
		w = 30
	}
	if w > 60 {
		w = 60
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s est obligatoire", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email obligatoire")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return fmt.Errorf("adresse email invalide")
	}
	return nil
}
