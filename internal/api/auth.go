package api

import (
	"context"
	"net/http"
	"net/url"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
)

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	const op = "api.Login"
	if err := models.Validate(op, creds); err != nil {
		return nil, err
	}

	var out models.LoginResult
	if err := c.doJSON(ctx, op, http.MethodPost, c.endpoint("login"), creds, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, apperr.Server(op, http.StatusOK, "login response has no access token")
	}
	return &out, nil
}

// Register creates an account. The backend answers with a message only.
func (c *Client) Register(ctx context.Context, reg models.Registration) (string, error) {
	const op = "api.Register"
	if err := models.Validate(op, reg); err != nil {
		return "", err
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, c.endpoint("register"), reg, &out); err != nil {
		return "", err
	}
	if out.Message == "" {
		out.Message = "Registered successfully!"
	}
	return out.Message, nil
}

// ChangePassword posts the change-password form.
func (c *Client) ChangePassword(ctx context.Context, change models.PasswordChange) error {
	const op = "api.ChangePassword"
	if err := models.Validate(op, change); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("user_id", change.UserID)
	form.Set("old_password", change.OldPassword)
	form.Set("new_password", change.NewPassword)
	return c.doForm(ctx, op, c.endpoint("change-password"), form, nil)
}

// UpdateProfile applies a typed profile patch and returns the stored user.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	const op = "api.UpdateProfile"
	if patch.Empty() {
		return nil, apperr.Validation(op, "nothing to update")
	}
	if err := models.Validate(op, patch); err != nil {
		return nil, err
	}

	var out models.User
	if err := c.doJSON(ctx, op, http.MethodPut, c.endpoint("users", userID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
