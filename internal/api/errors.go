package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a rejection returned by the portal.
type Error struct {
	Status int
	Method string
	Path   string

	// Message is the server's explanation: the envelope's message, else its
	// error, else the raw response body.
	Message string

	// RequireVerification is set when a login is refused until the account's
	// email is verified. Email names that account.
	RequireVerification bool
	Email               string
}

func (e *Error) Error() string {
	return fmt.Sprintf("portal API error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Message)
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the portal.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusUnauthorized
}

func newError(status int, method, path string, env envelope, raw []byte) *Error {
	msg := env.Message
	if msg == "" {
		msg = env.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &Error{
		Status:              status,
		Method:              method,
		Path:                path,
		Message:             msg,
		RequireVerification: env.RequireVerification,
		Email:               env.Email,
	}
}
