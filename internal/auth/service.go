// Package auth runs the login flow and the profile and logout operations on
// top of the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/registry-portal/internal/api"
	"github.com/nhle/registry-portal/internal/model"
	"github.com/nhle/registry-portal/internal/report"
)

const component = "auth"

// ErrNotAuthenticated is returned by UpdateProfile without a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// OutcomeKind tells the caller where to go after a login attempt.
type OutcomeKind int

const (
	OutcomeAuthenticated OutcomeKind = iota + 1
	OutcomeVerificationRequired
)

// Outcome is the result of a login that was not a plain rejection.
type Outcome struct {
	Kind OutcomeKind

	// Identity is set for OutcomeAuthenticated.
	Identity *model.Identity

	// Email is the account to verify for OutcomeVerificationRequired.
	Email string
}

// RejectedError is a refused login. Its text is the server's message as is,
// so it can be shown to the user.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string { return e.Message }

func (e *RejectedError) Unwrap() error { return e.Err }

// LoginAPI is the slice of the portal API used to log in.
type LoginAPI interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
}

// Sessions is the session store as seen by the auth flow.
type Sessions interface {
	Write(ctx context.Context, identity model.Identity, token string) error
	Clear(ctx context.Context) error
	Token(ctx context.Context) (string, bool)
}

// Service implements login, logout and profile updates.
type Service struct {
	api      LoginAPI
	sessions Sessions
	reporter report.Reporter
	logger   *slog.Logger
}

// NewService wires the auth flow.
func NewService(loginAPI LoginAPI, sessions Sessions, reporter report.Reporter, logger *slog.Logger) *Service {
	return &Service{api: loginAPI, sessions: sessions, reporter: reporter, logger: logger}
}

// Login authenticates and, on success, writes the session. A refusal that
// asks for email verification is an Outcome, not an error. Any other refusal
// is reported and returned as *RejectedError; the session is left untouched.
func (s *Service) Login(ctx context.Context, email, password string) (Outcome, error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		if apiErr, ok := api.AsError(err); ok && apiErr.RequireVerification {
			target := apiErr.Email
			if target == "" {
				target = email
			}
			s.logger.Info("login requires email verification", slog.String("email", target))
			return Outcome{Kind: OutcomeVerificationRequired, Email: target}, nil
		}

		rejected := &RejectedError{Message: rejectionMessage(err), Err: err}
		s.reporter.Report(component, rejected)
		return Outcome{}, rejected
	}

	if err := s.sessions.Write(ctx, res.User, res.Token); err != nil {
		return Outcome{}, fmt.Errorf("storing session: %w", err)
	}

	s.logger.Info("logged in",
		slog.String("user_id", res.User.ID),
		slog.String("role", string(res.User.Role)),
	)
	identity := res.User
	return Outcome{Kind: OutcomeAuthenticated, Identity: &identity}, nil
}

// Logout is local only: the session is cleared and the app hard-redirects.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// UpdateProfile stores an edited identity under the current token so every
// view picks it up.
func (s *Service) UpdateProfile(ctx context.Context, identity model.Identity) error {
	token, ok := s.sessions.Token(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if err := s.sessions.Write(ctx, identity, token); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

func rejectionMessage(err error) string {
	if apiErr, ok := api.AsError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}
