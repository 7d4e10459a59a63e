// Package dashboard renders the role-specific landing page of a signed-in
// user.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
)

const recentCount = 3

// Model is a read-only view of the identity and the latest notifications.
type Model struct {
	identity      *model.Identity
	notifications []model.Notification
	width         int
	height        int
}

// New creates an empty dashboard.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetIdentity updates the displayed identity.
func (m *Model) SetIdentity(identity *model.Identity) {
	m.identity = identity
}

// SetNotifications updates the recent notifications block.
func (m *Model) SetNotifications(ns []model.Notification) {
	m.notifications = ns
}

// Route is the dashboard route for the current identity.
func (m Model) Route() string {
	if m.identity == nil {
		return model.LandingRoute
	}
	return model.DashboardRoute(model.RoleRank(*m.identity))
}

// View renders the dashboard.
func (m Model) View() string {
	if m.identity == nil {
		return ""
	}
	id := *m.identity
	role := model.RoleRank(id)

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", lipgloss.NewStyle().Bold(true).Render(id.FullName()), theme.RoleStyle(role).Render(string(role)))
	fmt.Fprintf(&b, "%s\n", theme.DimmedStyle.Render(id.Email))
	fmt.Fprintf(&b, "%s\n\n", theme.DimmedStyle.Render(m.Route()))

	if model.HasElevatedAccess(role) {
		b.WriteString("Accès au traitement des demandes et aux registres.\n\n")
	} else {
		b.WriteString("Suivez vos demandes d'actes et vos rendez-vous.\n\n")
	}

	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Dernières notifications") + "\n")
	if len(m.notifications) == 0 {
		b.WriteString(theme.DimmedStyle.Render("Aucune notification") + "\n")
	}
	for i, n := range m.notifications {
		if i == recentCount {
			break
		}
		line := theme.NotificationStyle(n.Type).Render("•") + " " + n.Title
		if n.Read {
			line = theme.DimmedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(strings.TrimRight(b.String(), "\n"))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
