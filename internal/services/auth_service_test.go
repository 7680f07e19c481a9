package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
)

var ana = core.User{ID: 1, DisplayName: "Ana", Email: "a@x.com", Role: core.RoleStandard}

func newSessionStore(t *testing.T) *session.Store {
	t.Helper()
	s := session.New(storage.NewMemoryKV())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	s.Restore(context.Background())
	return s
}

func TestAuthService_Login(t *testing.T) {
	store := newSessionStore(t)
	fake := &fakeAuthAPI{user: ana, credential: "tok123"}
	svc := NewAuthService(fake, store, nil)

	user, err := svc.Login(context.Background(), " a@x.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, ana, user)
	assert.Equal(t, "a@x.com", fake.lastCreds.Email)

	snap := store.Snapshot()
	assert.Equal(t, &ana, snap.User)
	assert.Equal(t, "tok123", snap.Credential)
	assert.Equal(t, session.LoginForm{}, store.LoginForm())
}

func TestAuthService_LoginFailureKeepsTypedEmail(t *testing.T) {
	store := newSessionStore(t)
	fake := &fakeAuthAPI{err: &api.Error{Status: http.StatusBadRequest, Message: "Invalid credentials"}}
	svc := NewAuthService(fake, store, nil)

	_, err := svc.Login(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", api.Message(err, ""))
	assert.Nil(t, store.User())
	assert.Equal(t, session.LoginForm{Email: "a@x.com"}, store.LoginForm())
}

func TestAuthService_FailedLoginKeepsExistingSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	t.Cleanup(backend.Close)

	store := newSessionStore(t)
	require.NoError(t, store.SetSession(ana, "tok123"))

	client, err := api.NewClient(api.Config{BaseURL: backend.URL + "/v1/api", Timeout: 2 * time.Second})
	require.NoError(t, err)
	client.SetCredentials(store, store.ClearSession)
	svc := NewAuthService(client, store, nil)

	_, err = svc.Login(context.Background(), "other@x.com", "wrongpass")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	snap := store.Snapshot()
	assert.Equal(t, &ana, snap.User)
	assert.Equal(t, "tok123", snap.Credential)
}

func TestAuthService_LoginRequiresFields(t *testing.T) {
	svc := NewAuthService(&fakeAuthAPI{}, newSessionStore(t), nil)

	_, err := svc.Login(context.Background(), "", "x")
	assert.True(t, IsValidation(err))
	_, err = svc.Login(context.Background(), "a@x.com", "")
	assert.True(t, IsValidation(err))
}

func TestAuthService_Register(t *testing.T) {
	t.Run("preview only resets the form", func(t *testing.T) {
		store := newSessionStore(t)
		svc := NewAuthService(&fakeAuthAPI{register: api.RegisterResult{PreviewURL: "https://p"}}, store, nil)

		res, err := svc.Register(context.Background(), "Ana", "a@x.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "https://p", res.PreviewURL)
		assert.Nil(t, store.User())
		assert.Equal(t, session.RegisterForm{}, store.RegisterForm())
	})

	t.Run("signed in straight away", func(t *testing.T) {
		store := newSessionStore(t)
		u := ana
		svc := NewAuthService(&fakeAuthAPI{register: api.RegisterResult{User: &u, Credential: "tokNew"}}, store, nil)

		_, err := svc.Register(context.Background(), "Ana", "a@x.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tokNew", store.Credential())
	})

	t.Run("failure keeps what was typed", func(t *testing.T) {
		store := newSessionStore(t)
		svc := NewAuthService(&fakeAuthAPI{err: errors.New("boom")}, store, nil)

		_, err := svc.Register(context.Background(), "Ana", "a@x.com", "secret1")
		require.Error(t, err)
		assert.Equal(t, session.RegisterForm{Name: "Ana", Email: "a@x.com"}, store.RegisterForm())
	})

	t.Run("bad email", func(t *testing.T) {
		svc := NewAuthService(&fakeAuthAPI{}, newSessionStore(t), nil)
		_, err := svc.Register(context.Background(), "Ana", "not-an-email", "secret1")
		assert.True(t, IsValidation(err))
	})
}

func TestAuthService_Logout(t *testing.T) {
	store := newSessionStore(t)
	require.NoError(t, store.SetSession(ana, "tok"))
	svc := NewAuthService(&fakeAuthAPI{}, store, nil)

	svc.Logout()
	svc.Logout()

	assert.Nil(t, store.User())
	assert.Empty(t, store.Credential())
}

func TestAuthService_ResetPassword(t *testing.T) {
	fake := &fakeAuthAPI{}
	svc := NewAuthService(fake, newSessionStore(t), nil)
	ctx := context.Background()

	tests := []struct {
		name, token, id, password string
		wantErr                   string
	}{
		{"empty password", "t", "1", "", "Please enter a new password."},
		{"short password", "t", "1", "abc", "Password must be at least 6 characters."},
		{"missing token", "", "1", "secret1", "Missing token or user ID in URL."},
		{"missing id", "t", "", "secret1", "Missing token or user ID in URL."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResetPassword(ctx, tt.token, tt.id, tt.password)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	msg, err := svc.ResetPassword(ctx, "t", "7", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Password reset successful!", msg)
	assert.Equal(t, [3]string{"t", "7", "secret1"}, fake.lastReset)
}

func TestAuthService_ForgotPasswordAndEmail(t *testing.T) {
	svc := NewAuthService(&fakeAuthAPI{}, newSessionStore(t), nil)
	ctx := context.Background()

	assert.True(t, IsValidation(svc.ForgotPassword(ctx, " ")))
	assert.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))

	_, err := svc.SendTestEmail(ctx, "a@x.com", "")
	assert.True(t, IsValidation(err))
	preview, err := svc.SendTestEmail(ctx, "a@x.com", "hi")
	require.NoError(t, err)
	assert.Equal(t, "https://preview/1", preview)
}
