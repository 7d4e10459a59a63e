package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/keys"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
)

// BackMsg signals the parent to navigate back to the bell list.
type BackMsg struct{}

// Action is an operation requested from the detail view.
type Action string

const (
	ActionMarkRead Action = "read"
	ActionDelete   Action = "delete"
)

// ActionMsg signals the parent to apply an action to the shown notification.
type ActionMsg struct {
	Action Action
	ID     string
}

// Model shows one notification in full, scrollable.
type Model struct {
	notification *model.Notification
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.notification = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Sync refreshes the shown notification from a new snapshot. It returns
// false when the notification is no longer in the list.
func (m *Model) Sync(list []model.Notification) bool {
	if m.notification == nil {
		return false
	}
	for _, n := range list {
		if n.ID == m.notification.ID {
			m.notification = &n
			m.viewport.SetContent(m.renderContent())
			return true
		}
	}
	m.notification = nil
	return false
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.MarkRead):
			if m.notification != nil && !m.notification.Read {
				id := m.notification.ID
				return m, func() tea.Msg {
					return ActionMsg{Action: ActionMarkRead, ID: id}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if m.notification != nil {
				id := m.notification.ID
				return m, func() tea.Msg {
					return ActionMsg{Action: ActionDelete, ID: id}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("Aucune notification sélectionnée")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.notification == nil {
		return ""
	}

	n := m.notification
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	typeBadge := theme.NotificationStyle(n.Type).Render(strings.ToUpper(string(n.Type)))
	readBadge := theme.BadgeStyle.Render("NON LUE")
	if n.Read {
		readBadge = theme.DimmedStyle.Render("lue")
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, typeBadge, "  ", readBadge))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	if !n.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Reçue le:"),
			n.CreatedAt.Local().Format("02/01/2006 15:04"),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("Pas de message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.notification != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
