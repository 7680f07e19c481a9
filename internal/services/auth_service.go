// Package services glues the backend client to the session store for each
// user-facing flow.
package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

const minPasswordLength = 6

type AuthAPI interface {
	Login(ctx context.Context, creds api.Credentials) (core.User, string, error)
	Register(ctx context.Context, reg api.Registration) (api.RegisterResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, userID, password string) (string, error)
	SendEmail(ctx context.Context, email, message string) (string, error)
}

// AuthService runs login, registration, logout and password recovery.
type AuthService struct {
	api    AuthAPI
	store  *session.Store
	logger *log.Logger
}

func NewAuthService(authAPI AuthAPI, store *session.Store, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{api: authAPI, store: store, logger: logger.WithComponent(log.ComponentSession)}
}

// Login signs the user in and establishes the session. The typed email is
// kept in the login form buffer so a failed attempt re-renders with it.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, error) {
	email = strings.TrimSpace(email)
	s.store.SetLoginForm(session.LoginForm{Email: email})

	if email == "" || password == "" {
		return core.User{}, invalid("Please fill in all fields.")
	}

	user, credential, err := s.api.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Info("Login rejected", log.FieldOperation, log.OpLogin, log.FieldError, err.Error())
		return core.User{}, err
	}
	if err := s.store.SetSession(user, credential); err != nil {
		return core.User{}, fmt.Errorf("establish session: %w", err)
	}
	return user, nil
}

// Register creates the account. When the backend also signs the user in,
// the session is established; otherwise the user is expected to log in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (api.RegisterResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	s.store.SetRegisterForm(session.RegisterForm{Name: name, Email: email})

	if name == "" || email == "" || password == "" {
		return api.RegisterResult{}, invalid("Please fill in all fields.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return api.RegisterResult{}, invalid("Please enter a valid email address.")
	}

	res, err := s.api.Register(ctx, api.Registration{Name: name, Email: email, Password: password})
	if err != nil {
		return api.RegisterResult{}, err
	}

	if res.User != nil {
		if err := s.store.SetSession(*res.User, res.Credential); err != nil {
			return api.RegisterResult{}, fmt.Errorf("establish session: %w", err)
		}
	} else {
		s.store.ResetRegisterForm()
	}
	return res, nil
}

func (s *AuthService) Logout() {
	s.store.ClearSession()
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("Email is required")
	}
	return s.api.ForgotPassword(ctx, email)
}

// ResetPassword returns the message to show on success.
func (s *AuthService) ResetPassword(ctx context.Context, token, userID, password string) (string, error) {
	switch {
	case password == "":
		return "", invalid("Please enter a new password.")
	case len(password) < minPasswordLength:
		return "", invalid(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	case token == "" || userID == "":
		return "", invalid("Missing token or user ID in URL.")
	}

	msg, err := s.api.ResetPassword(ctx, token, userID, password)
	if err != nil {
		return "", err
	}
	if msg == "" {
		msg = "Password reset successful!"
	}
	return msg, nil
}

// SendTestEmail returns the preview link for the delivered mail.
func (s *AuthService) SendTestEmail(ctx context.Context, email, message string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(message) == "" {
		return "", invalid("Email and message are required.")
	}
	return s.api.SendEmail(ctx, email, message)
}
