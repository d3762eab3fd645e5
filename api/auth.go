package api

import (
	"context"

	"pathlog/models"
	"pathlog/utils"
)

// Login exchanges credentials for the user record and bearer token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.Post(ctx, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account; the backend logs the user straight in
// and returns the same envelope as Login.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.Post(ctx, "/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the token server-side. Best effort: the local session
// is cleared regardless of the outcome, so failures are only logged.
func (c *Client) Logout(ctx context.Context) {
	if err := c.Post(ctx, "/logout", nil, nil); err != nil && !IsCancelled(err) {
		utils.Log.Warn("server-side logout failed: %v", err)
	}
}

// ForgotPassword requests a reset email. The backend answers with the
// same generic 200 whether or not the account exists.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Post(ctx, "/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword redeems a reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	return c.Post(ctx, "/reset-password", req, nil)
}
