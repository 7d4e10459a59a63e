package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/registry-portal/internal/api"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
	"github.com/nhle/registry-portal/internal/session"
	"github.com/nhle/registry-portal/tests/testutil"
)

type fakeLoginAPI struct {
	LoginFunc func(ctx context.Context, email, password string) (*api.LoginResult, error)
}

func (f *fakeLoginAPI) Login(ctx context.Context, email, password string) (*api.LoginResult, error) {
	return f.LoginFunc(ctx, email, password)
}

type fixture struct {
	store     *session.Store
	rec       *report.Recorder
	svc       *Service
	redirects []string
}

func newFixture(t *testing.T, loginAPI LoginAPI) *fixture {
	t.Helper()

	f := &fixture{rec: report.NewRecorder(0, nil)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := session.NewStore(session.StoreOptions{
		Slots:     testutil.NewTestStore(t),
		Navigator: session.NavigatorFunc(func(route string) { f.redirects = append(f.redirects, route) }),
		Reporter:  f.rec,
		Logger:    logger,
	})
	require.NoError(t, err)

	f.store = st
	f.svc = NewService(loginAPI, st, f.rec, logger)
	return f
}

func agent() model.Identity {
	return model.Identity{ID: "u-7", Name: "Moussa", Surname: "Ba", Email: "a@b.com", Role: model.RoleAgent}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(_ context.Context, email, password string) (*api.LoginResult, error) {
		assert.Equal(t, "a@b.com", email)
		return &api.LoginResult{Token: "jwt", User: agent()}, nil
	}})

	out, err := f.svc.Login(context.Background(), "a@b.com", "good")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, out.Kind)
	require.NotNil(t, out.Identity)
	assert.Equal(t, "u-7", out.Identity.ID)

	id, ok := f.store.Read(context.Background())
	require.True(t, ok)
	assert.Equal(t, agent(), *id)
	tok, _ := f.store.Token(context.Background())
	assert.Equal(t, "jwt", tok)
}

func TestLogin_RejectedWithServerMessage(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		return nil, &api.Error{Status: http.StatusUnauthorized, Message: "Identifiants invalides"}
	}})

	out, err := f.svc.Login(context.Background(), "a@b.com", "bad")
	require.Error(t, err)
	assert.Equal(t, "Identifiants invalides", err.Error())
	assert.Zero(t, out.Kind)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))

	assert.Equal(t, []string{"Identifiants invalides"}, f.rec.Messages())
	assert.False(t, f.store.IsAuthenticated(context.Background()))
}

func TestLogin_RequireVerification(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		return nil, &api.Error{Status: http.StatusForbidden, Message: "Email non vérifié", RequireVerification: true, Email: "x@y.com"}
	}})

	out, err := f.svc.Login(context.Background(), "x@y.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Kind: OutcomeVerificationRequired, Email: "x@y.com"}, out)
	assert.Empty(t, f.rec.Entries())
	assert.False(t, f.store.IsAuthenticated(context.Background()))
}

func TestLogin_TransportFailure(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		return nil, errors.New("dial tcp: connection refused")
	}})

	_, err := f.svc.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, f.rec.Entries(), 1)
}

func TestLogin_InvalidUserIsNotStored(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		u := agent()
		u.Role = "superuser"
		return &api.LoginResult{Token: "jwt", User: u}, nil
	}})

	_, err := f.svc.Login(context.Background(), "a@b.com", "pw")
	require.ErrorIs(t, err, session.ErrInvalidIdentity)
	assert.False(t, f.store.IsAuthenticated(context.Background()))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		return &api.LoginResult{Token: "jwt", User: agent()}, nil
	}})
	ctx := context.Background()

	edited := agent()
	edited.Surname = "Ndiaye"
	require.ErrorIs(t, f.svc.UpdateProfile(ctx, edited), ErrNotAuthenticated)

	_, err := f.svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, f.svc.UpdateProfile(ctx, edited))

	id, ok := f.store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "Ndiaye", id.Surname)
	tok, _ := f.store.Token(ctx)
	assert.Equal(t, "jwt", tok)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, &fakeLoginAPI{LoginFunc: func(context.Context, string, string) (*api.LoginResult, error) {
		return &api.LoginResult{Token: "jwt", User: agent()}, nil
	}})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx))
	assert.False(t, f.store.IsAuthenticated(ctx))
	assert.Equal(t, []string{model.LandingRoute}, f.redirects)
}
