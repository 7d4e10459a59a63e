// Package navbar renders the top bar: portal title, signed-in identity and
// the notification bell badge.
package navbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
	"github.com/nhle/registry-portal/internal/ui"
)

const title = "Registre civil"

// Model is the navbar view. It only renders what it is given.
type Model struct {
	identity *model.Identity
	unread   int
	status   string
	width    int
}

// New creates an empty navbar.
func New(width int) Model {
	return Model{width: width}
}

// SetIdentity replaces the displayed identity; nil shows the anonymous bar.
func (m *Model) SetIdentity(identity *model.Identity) {
	m.identity = identity
}

// SetUnread sets the bell badge count.
func (m *Model) SetUnread(n int) {
	m.unread = n
}

// SetStatus sets the short sync status shown next to the bell.
func (m *Model) SetStatus(s string) {
	m.status = s
}

// SetWidth updates the bar width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// Section returns the dashboard label for the current identity.
func (m Model) Section() string {
	if m.identity == nil {
		return "Connexion"
	}
	switch model.RoleRank(*m.identity) {
	case model.RoleAdmin:
		return "Administration"
	case model.RoleAgent:
		return "Espace agent"
	default:
		return "Espace citoyen"
	}
}

// View renders the navbar.
func (m Model) View() string {
	layout := ui.NewLayout(m.width, 1)

	left := title + " · " + m.Section()

	var right []string
	if m.status != "" {
		right = append(right, m.status)
	}
	if m.identity != nil {
		right = append(right, m.identity.FullName())
		right = append(right, bell(m.unread))
	}

	return layout.RenderBar(theme.HeaderStyle, left, strings.Join(right, "  "))
}

func bell(unread int) string {
	if unread == 0 {
		return "🔔"
	}
	label := fmt.Sprintf("%d", unread)
	if unread > 9 {
		label = "9+"
	}
	return "🔔" + lipgloss.NewStyle().Bold(true).Render(" "+label)
}
