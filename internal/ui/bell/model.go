// Package bell is the notification list opened from the navbar bell.
package bell

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/registry-portal/internal/keys"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/theme"
)

// MarkReadMsg asks the app to mark one notification as read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks the app to mark every notification as read.
type MarkAllReadMsg struct{}

// DeleteMsg asks the app to delete one notification.
type DeleteMsg struct {
	ID string
}

// OpenMsg asks the app to show one notification in full.
type OpenMsg struct {
	Notification model.Notification
}

// RefreshMsg asks the app to poll now.
type RefreshMsg struct{}

// CloseMsg is sent when the user leaves the list.
type CloseMsg struct{}

// Model is the bell list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	unread int
	width  int
	height int
}

// New creates an empty bell list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.Styles.Title = theme.HeaderStyle
	l.KeyMap.Quit.SetEnabled(false)

	return Model{list: l, keys: k, width: width, height: height}
}

// SetNotifications replaces the displayed snapshot, keeping the cursor on
// the same index where possible.
func (m *Model) SetNotifications(ns []model.Notification) tea.Cmd {
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = Item{Notification: n}
	}
	m.unread = model.UnreadCount(ns)
	m.list.Title = fmt.Sprintf("Notifications (%d non lues)", m.unread)
	return m.list.SetItems(items)
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles keys for the bell list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Bell):
			return m, func() tea.Msg { return CloseMsg{} }

		case key.Matches(msg, m.keys.Open):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return OpenMsg{Notification: n} }

		case key.Matches(msg, m.keys.MarkAllRead):
			if m.unread == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.Read {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.Delete):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return DeleteMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list or an empty-state line.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return theme.PanelStyle.
			Width(m.width - 4).
			Render(theme.DimmedStyle.Render("Aucune notification"))
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
