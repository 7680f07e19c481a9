package http

import (
	"net/http"
	"net/url"
	"strings"

	"expensetracker/internal/gate"
	"expensetracker/internal/log"
)

type resetForm struct {
	Token  string
	UserID string
}

type emailForm struct {
	Email      string
	Message    string
	PreviewURL string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", "Log in", nil, s.store.LoginForm())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		TextResponse(http.StatusBadRequest, "invalid form").Write(w)
		return
	}
	user, err := s.auth.Login(r.Context(), formValue(r, "email"), r.PostFormValue("password"))
	if err != nil {
		status, toast := failure(err, "Login failed. Please check your credentials.")
		s.render(w, r, status, "login.html", "Log in", toast, s.store.LoginForm())
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.NewFields().WithUser(user.ID, string(user.Role)).WithOperation(log.OpLogin).ToSlice()...)
	Redirect(gate.Landing(user)).Flash(ToastSuccess, "Welcome back, "+user.DisplayName+"!").Write(w)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", "Register", nil, s.store.RegisterForm())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		TextResponse(http.StatusBadRequest, "invalid form").Write(w)
		return
	}
	res, err := s.auth.Register(r.Context(), formValue(r, "name"), formValue(r, "email"), r.PostFormValue("password"))
	if err != nil {
		status, toast := failure(err, "Registration failed. Please try again.")
		s.render(w, r, status, "register.html", "Register", toast, s.store.RegisterForm())
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered", log.FieldOperation, log.OpRegister)
	if res.User != nil {
		Redirect(gate.Landing(*res.User)).
			FlashLink(ToastSuccess, "Registration successful!", res.PreviewURL).Write(w)
		return
	}
	Redirect("/login").
		FlashLink(ToastSuccess, "Registration successful! Please check your email, then log in.", res.PreviewURL).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout()
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out", log.FieldOperation, log.OpLogout)
	Redirect("/login").Flash(ToastInfo, "You have been logged out.").Write(w)
}

func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot_password.html", "Forgot password", nil, emailForm{})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		TextResponse(http.StatusBadRequest, "invalid form").Write(w)
		return
	}
	form := emailForm{Email: formValue(r, "email")}
	if err := s.auth.ForgotPassword(r.Context(), form.Email); err != nil {
		status, toast := failure(err, "Could not send the reset link.")
		s.render(w, r, status, "forgot_password.html", "Forgot password", toast, form)
		return
	}
	toast := &Toast{Kind: ToastSuccess, Message: "If an account exists for that email, a reset link is on its way."}
	s.render(w, r, http.StatusOK, "forgot_password.html", "Forgot password", toast, emailForm{})
}

// handleResetPasswordPage expects the token and id query parameters from
// the emailed link.
func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := resetForm{Token: sanitizeInput(q.Get("token")), UserID: sanitizeInput(q.Get("id"))}
	var toast *Toast
	if form.Token == "" || form.UserID == "" {
		toast = errorToast("Missing token or user ID in URL.")
	}
	s.render(w, r, http.StatusOK, "reset_password.html", "Reset password", toast, form)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		TextResponse(http.StatusBadRequest, "invalid form").Write(w)
		return
	}
	form := resetForm{Token: formValue(r, "token"), UserID: formValue(r, "id")}
	msg, err := s.auth.ResetPassword(r.Context(), form.Token, form.UserID, r.PostFormValue("password"))
	if err != nil {
		status, toast := failure(err, "Password reset failed.")
		s.render(w, r, status, "reset_password.html", "Reset password", toast, form)
		return
	}
	Redirect("/reset-success").Flash(ToastSuccess, msg).Write(w)
}

func (s *Server) handleResetSuccess(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "reset_success.html", "Password updated", nil, nil)
}

func (s *Server) handleSendEmailPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "send_email.html", "Send email", nil, emailForm{})
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		TextResponse(http.StatusBadRequest, "invalid form").Write(w)
		return
	}
	form := emailForm{Email: formValue(r, "email"), Message: formValue(r, "message")}
	preview, err := s.auth.SendTestEmail(r.Context(), form.Email, form.Message)
	if err != nil {
		status, toast := failure(err, "Failed to send email.")
		s.render(w, r, status, "send_email.html", "Send email", toast, form)
		return
	}
	s.render(w, r, http.StatusOK, "send_email.html", "Send email",
		&Toast{Kind: ToastSuccess, Message: "Email sent!"}, emailForm{PreviewURL: preview})
}

// handleTheme flips the stored theme and sends the user back where they
// were when that was a page on this site.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if s.themes != nil {
		if _, err := s.themes.Toggle(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Theme toggle failed", log.FieldError, err.Error())
		}
	}
	Redirect(sameSiteReturn(r)).Write(w)
}

func sameSiteReturn(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return "/"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
