package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Action
	}{
		{"actualiser", ActionRefresh},
		{"  REFRESH ", ActionRefresh},
		{"tout-lu", ActionReadAll},
		{"deconnexion", ActionLogout},
		{"quitter", ActionQuit},
		{"supprimer-tout", ActionUnknown},
		{"", ActionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	m.Open()
	m = typeText(m, "profil")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Input: "profil", Action: ActionProfile}, cmd())
	assert.Empty(t, m.Error())
}

func TestUnknownCommandKeepsPaletteOpen(t *testing.T) {
	m := New(80, 24)
	m.Open()
	m = typeText(m, "formater")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "commande inconnue: formater", m.Error())
	assert.Contains(t, m.View(), "commande inconnue")

	m.Open()
	assert.Empty(t, m.Error())
}

func TestEscCancels(t *testing.T) {
	m := New(80, 24)
	m.Open()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
}
