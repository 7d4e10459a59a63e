// Package alertbanner renders the floating realtime alert.
package alertbanner

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/alert"
	"github.com/nhle/registry-portal/internal/theme"
)

// Model shows the watcher's current display.
type Model struct {
	display alert.Display
	width   int
}

// New creates a hidden banner.
func New(width int) Model {
	return Model{width: width}
}

// SetDisplay updates the banner from a watcher display.
func (m *Model) SetDisplay(d alert.Display) {
	m.display = d
}

// SetWidth updates the banner width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// Visible reports whether the banner takes screen space.
func (m Model) Visible() bool {
	return m.display.Alert != nil &&
		(m.display.State == alert.StateAlertActive || m.display.State == alert.StateAlertDismissing)
}

// Height is the number of lines View occupies.
func (m Model) Height() int {
	if !m.Visible() {
		return 0
	}
	return lipgloss.Height(m.View())
}

// View renders the alert box, right-aligned, or nothing.
func (m Model) View() string {
	if !m.Visible() {
		return ""
	}

	style := theme.AlertStyle
	if m.display.State == alert.StateAlertDismissing {
		style = style.Faint(true)
	}

	box := style.Render("⚠ " + m.display.Alert.Message + "   " + theme.HelpStyle.Render("x fermer"))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, box)
}
