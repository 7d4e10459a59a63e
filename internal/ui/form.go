package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
)

// FormKeyMap is the huh key map used by every form. ctrl+c belongs to the
// application, so esc aborts a form instead.
func FormKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "annuler"),
	)
	return km
}
