package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/romato/romato/internal/models"
)

// Login authenticates with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.sendJSON(ctx, http.MethodPost, "users/login/",
		models.LoginRequest{Username: username, Password: password},
		false, "Login failed", &resp)
	if err != nil {
		return nil, err
	}
	if resp.User.Username == "" || !resp.Tokens.Complete() {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "Login failed"}
	}
	return &resp, nil
}

// Register creates an account. It does not establish a session.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "users/register/", req, false, "Signup failed", nil)
}

// RefreshToken exchanges a refresh token for a new access token. It is
// attempted exactly once.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	var resp models.RefreshResponse
	err := c.sendJSON(ctx, http.MethodPost, "token/refresh/",
		models.RefreshRequest{Refresh: refresh}, false, "Token refresh failed", &resp)
	if err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.New("token refresh returned no access token")
	}
	return resp.Access, nil
}
