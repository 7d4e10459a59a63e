package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/registry-portal/internal/model"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// Login exchanges credentials for a token. It does not need a session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, c.anonClient, http.MethodPost, "/auth/login",
		LoginRequest{Email: email, Password: password}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListNotifications returns the user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	var list []model.Notification
	if err := c.do(ctx, c.authClient, http.MethodGet, "/notifications", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, c.authClient, http.MethodPut, path, nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, c.authClient, http.MethodPut, "/notifications/read-all", nil, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id)
	return c.do(ctx, c.authClient, http.MethodDelete, path, nil, nil)
}
