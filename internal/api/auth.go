package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"expensetracker/internal/core"
)

// ErrIncompleteAuth means the backend accepted the call but did not return
// both a credential and a user.
var ErrIncompleteAuth = errors.New("api: auth response missing credential or user")

type wireUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (w wireUser) toCore() (core.User, error) {
	role, err := core.ParseRole(w.Role)
	if err != nil {
		return core.User{}, fmt.Errorf("user %d: %w", w.ID, err)
	}
	u := core.User{ID: w.ID, DisplayName: w.Name, Email: w.Email, Role: role}
	if err := u.Validate(); err != nil {
		return core.User{}, fmt.Errorf("user %d: %w", w.ID, err)
	}
	return u, nil
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult carries the verification mail preview link. Some backends
// also sign the user in straight away; then User and Credential are set.
type RegisterResult struct {
	PreviewURL string
	User       *core.User
	Credential string
}

// Login exchanges email and password for a user and bearer credential.
func (c *Client) Login(ctx context.Context, creds Credentials) (core.User, string, error) {
	var resp struct {
		AccessToken string    `json:"accessToken"`
		User        *wireUser `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "auth/login", nil, creds, &resp); err != nil {
		return core.User{}, "", err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return core.User{}, "", ErrIncompleteAuth
	}
	user, err := resp.User.toCore()
	if err != nil {
		return core.User{}, "", err
	}
	return user, resp.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (RegisterResult, error) {
	var resp struct {
		PreviewURL  string    `json:"previewUrl"`
		AccessToken string    `json:"accessToken"`
		User        *wireUser `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "auth/register", nil, reg, &resp); err != nil {
		return RegisterResult{}, err
	}

	result := RegisterResult{PreviewURL: resp.PreviewURL}
	if resp.AccessToken != "" && resp.User != nil {
		user, err := resp.User.toCore()
		if err != nil {
			return RegisterResult{}, err
		}
		result.User = &user
		result.Credential = resp.AccessToken
	}
	return result, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "auth/forgot-password", nil, map[string]string{"email": email}, nil)
}

// ResetPassword returns the backend's confirmation message, which may be empty.
func (c *Client) ResetPassword(ctx context.Context, token, userID, password string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	req := map[string]string{"token": token, "userId": userID, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "auth/reset-password", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SendEmail asks the backend to deliver a test mail and returns its preview link.
func (c *Client) SendEmail(ctx context.Context, email, message string) (string, error) {
	var resp struct {
		PreviewURL string `json:"previewUrl"`
	}
	req := map[string]string{"email": email, "message": message}
	if err := c.doJSON(ctx, http.MethodPost, "email/send", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.PreviewURL, nil
}
