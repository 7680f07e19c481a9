package session

// LoginForm keeps what the user typed into the login form across
// re-renders. Passwords are never buffered.
type LoginForm struct {
	Email string
}

// RegisterForm keeps the name and email typed into the registration form.
type RegisterForm struct {
	Name  string
	Email string
}

// LoginForm returns the buffered login form.
func (s *Store) LoginForm() LoginForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginForm
}

// SetLoginForm buffers f until the next session change.
func (s *Store) SetLoginForm(f LoginForm) {
	s.mu.Lock()
	s.loginForm = f
	s.mu.Unlock()
}

// RegisterForm returns the buffered registration form.
func (s *Store) RegisterForm() RegisterForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registerForm
}

// SetRegisterForm buffers f until the next session change.
func (s *Store) SetRegisterForm(f RegisterForm) {
	s.mu.Lock()
	s.registerForm = f
	s.mu.Unlock()
}

// ResetRegisterForm clears the registration buffer after a successful
// registration that did not establish a session.
func (s *Store) ResetRegisterForm() {
	s.SetRegisterForm(RegisterForm{})
}
