package login

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("a@b.com"))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("@b.com"))
	assert.Error(t, validateEmail("a@"))
	assert.Error(t, validateEmail("plain"))
}

func TestVerificationNotice(t *testing.T) {
	m := New(80, 24)
	m.Start()

	m.SetVerification("x@y.com")
	assert.Equal(t, "x@y.com", m.VerificationEmail())
	assert.Contains(t, m.View(), "x@y.com")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.VerificationEmail())
}

func TestSetErrorShowsServerMessage(t *testing.T) {
	m := New(80, 24)
	m.SetError("Identifiants invalides")

	assert.Equal(t, "Identifiants invalides", m.Error())
	assert.Contains(t, m.View(), "Identifiants invalides")
}
