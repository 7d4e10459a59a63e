// Package api is a thin client for the portal REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoSession is returned for authenticated calls made while logged out.
var ErrNoSession = errors.New("no active session")

// TokenFunc returns the current bearer token, if any.
type TokenFunc func(ctx context.Context) (string, bool)

// sessionTokenSource adapts a TokenFunc to oauth2.TokenSource so the bearer
// header is injected by oauth2.Transport. The token is re-read on every
// request; a logout takes effect immediately.
type sessionTokenSource struct {
	token TokenFunc
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	tok, ok := s.token(context.Background())
	if !ok {
		return nil, ErrNoSession
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// Client talks to the portal API. Anonymous calls (login) go through a plain
// HTTP client; everything else carries the session bearer token.
type Client struct {
	baseURL    string
	anonClient *http.Client
	authClient *http.Client
}

// NewClient creates a client for baseURL (e.g. http://localhost:5000/api).
// token supplies the bearer for authenticated calls.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonClient: &http.Client{Timeout: timeout},
		authClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: sessionTokenSource{token: token},
				Base:   http.DefaultTransport,
			},
		},
	}
}

// envelope is the response wrapper used by every portal endpoint.
type envelope struct {
	Success             bool            `json:"success"`
	Data                json.RawMessage `json:"data"`
	Message             string          `json:"message"`
	Error               string          `json:"error"`
	RequireVerification bool            `json:"requireVerification"`
	Email               string          `json:"email"`
}

// do builds the request, sends it and unwraps the envelope into result.
func (c *Client) do(
	ctx context.Context,
	httpClient *http.Client,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	// No content to parse (e.g. 204).
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		return newError(resp.StatusCode, method, path, env, respBody)
	}
	if decodeErr != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, decodeErr)
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("unmarshaling data from %s %s: %w", method, path, err)
	}
	return nil
}

// Probe checks that something answers HTTP at baseURL. Any status counts as
// reachable; only transport failures are errors.
func Probe(ctx context.Context, baseURL string, timeout time.Duration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/", nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("reaching %s: %w", baseURL, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
