// Package profile is the form used to edit the signed-in identity.
package profile

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
	"github.com/nhle/registry-portal/internal/ui"
)

// SavedMsg carries the edited identity.
type SavedMsg struct {
	Identity model.Identity
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

type formBindings struct {
	name     string
	surname  string
	email    string
	photoURL string
}

// Model edits name, surname, email and photo. ID and role are carried over
// untouched.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.Identity
	width  int
	height int
}

// New creates a profile form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start builds the form prefilled with identity.
func (m *Model) Start(identity model.Identity) tea.Cmd {
	m.base = identity
	m.fb.name = identity.Name
	m.fb.surname = identity.Surname
	m.fb.email = identity.Email
	m.fb.photoURL = identity.PhotoURL
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Prénom").Value(&m.fb.name).Validate(required("Prénom")),
			huh.NewInput().Title("Nom").Value(&m.fb.surname).Validate(required("Nom")),
			huh.NewInput().Title("Email").Value(&m.fb.email).Validate(required("Email")),
			huh.NewInput().Title("Photo (URL)").Placeholder("optionnel").Value(&m.fb.photoURL),
		),
	).WithWidth(60).WithShowHelp(false).WithKeyMap(ui.FormKeyMap())
	return m.form.Init()
}

// Edited returns the identity built from the form fields.
func (m Model) Edited() model.Identity {
	id := m.base
	id.Name = strings.TrimSpace(m.fb.name)
	id.Surname = strings.TrimSpace(m.fb.surname)
	id.Email = strings.TrimSpace(m.fb.email)
	id.PhotoURL = strings.TrimSpace(m.fb.photoURL)
	return id
}

// Update handles messages for the profile form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		saved := SavedMsg{Identity: m.Edited()}
		m.form = nil
		return m, func() tea.Msg { return saved }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).
		Render("Mon profil")
	return lipgloss.NewStyle().Padding(1, 2).Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func required(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s est obligatoire", fieldName)
		}
		return nil
	}
}
