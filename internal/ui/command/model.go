package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/registry-portal/internal/theme"
)

// Action is a palette command the root model knows how to run.
type Action int

const (
	ActionUnknown Action = iota
	ActionRefresh
	ActionReadAll
	ActionBell
	ActionProfile
	ActionLogout
	ActionHelp
	ActionSettings
	ActionQuit
)

// names maps every accepted spelling to its action.
var names = map[string]Action{
	"actualiser":  ActionRefresh,
	"refresh":     ActionRefresh,
	"tout-lu":     ActionReadAll,
	"read-all":    ActionReadAll,
	"cloche":      ActionBell,
	"bell":        ActionBell,
	"profil":      ActionProfile,
	"profile":     ActionProfile,
	"deconnexion": ActionLogout,
	"logout":      ActionLogout,
	"aide":        ActionHelp,
	"help":        ActionHelp,
	"parametres":  ActionSettings,
	"settings":    ActionSettings,
	"quitter":     ActionQuit,
	"quit":        ActionQuit,
}

// Primary is the French spelling of every command, in the order the help
// screen lists them.
var Primary = []string{
	"actualiser", "tout-lu", "cloche", "profil", "parametres", "deconnexion", "aide", "quitter",
}

// Parse resolves a typed command. Case and surrounding spaces are ignored.
func Parse(input string) Action {
	if a, ok := names[strings.ToLower(strings.TrimSpace(input))]; ok {
		return a
	}
	return ActionUnknown
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Input  string
	Action Action
}

// CancelMsg is emitted when the palette is closed without a command.
type CancelMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
	err    string
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "actualiser, tout-lu, cloche, profil, deconnexion..."
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Open clears the previous input and focuses the palette.
func (m *Model) Open() tea.Cmd {
	m.input.Reset()
	m.err = ""
	return tea.Batch(m.input.Focus(), textinput.Blink)
}

// Update handles messages for the command palette. Unknown commands keep the
// palette open with an error line.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.input.Blur()
			return m, func() tea.Msg { return CancelMsg{} }
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			action := Parse(raw)
			if action == ActionUnknown {
				m.err = "commande inconnue: " + raw
				return m, nil
			}
			m.input.Blur()
			return m, func() tea.Msg { return CommandMsg{Input: raw, Action: action} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Error returns the message shown under the input, if any.
func (m Model) Error() string {
	return m.err
}

// View renders the command palette.
func (m Model) View() string {
	title := theme.HeaderStyle.MarginBottom(1).Render("Commande")
	rows := []string{title, m.input.View()}
	if m.err != "" {
		rows = append(rows, "", lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}
