package config

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/model"
)

func baseConfig() model.AppConfig {
	return model.AppConfig{
		API:           model.APIConfig{BaseURL: "http://localhost:5000/api", TimeoutSec: 30},
		Session:       model.SessionConfig{Backend: model.SessionBackendSQLite, DBPath: "/tmp/portal.db"},
		Sync:          model.SyncConfig{Backend: model.SyncBackendFile},
		Notifications: model.NotificationsConfig{PollIntervalSec: 60},
		Log:           model.LogConfig{Level: "info"},
	}
}

func TestStartPrefillsForm(t *testing.T) {
	m := New(nil, nil, 80, 24)
	m.Start(baseConfig())

	assert.Equal(t, ModeForm, m.Mode())
	assert.Equal(t, baseConfig(), m.Edited())
}

func TestEditedKeepsHiddenFields(t *testing.T) {
	m := New(nil, nil, 80, 24)
	m.Start(baseConfig())

	m.fb.baseURL = " https://portail.example.org/api "
	m.fb.pollInterval = "15"
	m.fb.syncBackend = model.SyncBackendRedis
	m.fb.redisAddr = "redis:6379"

	got := m.Edited()
	assert.Equal(t, "https://portail.example.org/api", got.API.BaseURL)
	assert.Equal(t, 15, got.Notifications.PollIntervalSec)
	assert.Equal(t, "redis:6379", got.Sync.RedisAddr)
	assert.Equal(t, "/tmp/portal.db", got.Session.DBPath)
}

func TestCheckAndSave(t *testing.T) {
	var saved *model.AppConfig
	m := New(
		func(context.Context, string) error { return nil },
		func(cfg *model.AppConfig) error { saved = cfg; return nil },
		80, 24,
	)
	m.Start(baseConfig())

	msg := m.checkAndSave(m.Edited())()
	m, _ = m.Update(msg)

	require.NotNil(t, saved)
	assert.Equal(t, ModeResult, m.Mode())
	assert.NoError(t, m.Err())
	assert.Contains(t, m.View(), "Paramètres enregistrés")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	done, ok := cmd().(DoneMsg)
	require.True(t, ok)
	require.NotNil(t, done.Config)
	assert.Equal(t, "http://localhost:5000/api", done.Config.API.BaseURL)
}

func TestUnreachableAPIIsNotSaved(t *testing.T) {
	saveCalled := false
	m := New(
		func(context.Context, string) error { return errors.New("connection refused") },
		func(*model.AppConfig) error { saveCalled = true; return nil },
		80, 24,
	)
	m.Start(baseConfig())

	m, _ = m.Update(m.checkAndSave(m.Edited())())

	assert.False(t, saveCalled)
	require.Error(t, m.Err())
	assert.Contains(t, m.Err().Error(), "API injoignable")

	// r goes back to the form with the edited values.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, ModeForm, m.Mode())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
}

func TestInvalidCombinationStopsBeforeCheck(t *testing.T) {
	m := New(
		func(context.Context, string) error { t.Fatal("check must not run"); return nil },
		func(*model.AppConfig) error { t.Fatal("save must not run"); return nil },
		80, 24,
	)
	m.Start(baseConfig())
	m.fb.syncBackend = model.SyncBackendRedis
	m.fb.redisAddr = ""

	m, cmd := m.submit()
	assert.Nil(t, cmd)
	assert.Equal(t, ModeResult, m.Mode())
	assert.Error(t, m.Err())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("https://portail.example.org/api"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("portail"))

	v := validateSeconds("Délai")
	assert.NoError(t, v("30"))
	assert.Error(t, v("0"))
	assert.Error(t, v("abc"))
}
