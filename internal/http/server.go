package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/prefs"
	"expensetracker/internal/services"
	"expensetracker/internal/session"
	appweb "expensetracker/web"
)

// Deps are the collaborators the server needs. Themes and ReceiptURL may
// be nil.
type Deps struct {
	Store    *session.Store
	Auth     *services.AuthService
	Expenses *services.ExpenseService
	Admin    *services.AdminService
	Themes   *prefs.Themes

	// ReceiptURL turns a stored receipt path into a link.
	ReceiptURL    func(path string) string
	BackendOrigin string

	Logger         *log.Logger
	LoginRateLimit int
}

type Server struct {
	http.Server

	store    *session.Store
	auth     *services.AuthService
	expenses *services.ExpenseService
	admin    *services.AdminService
	themes   *prefs.Themes

	logger   *log.Logger
	pages    map[string]*template.Template
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	receiptURL := deps.ReceiptURL
	if receiptURL == nil {
		receiptURL = func(p string) string { return p }
	}

	pages, err := parseTemplates(appweb.TemplatesFS, templateFuncs(receiptURL))
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	detector := security.NewDetector()
	s := &Server{
		store:    deps.Store,
		auth:     deps.Auth,
		expenses: deps.Expenses,
		admin:    deps.Admin,
		themes:   deps.Themes,
		logger:   logger.WithComponent(log.ComponentHTTP),
		pages:    pages,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.LoginRateLimit}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = s.guard(handler)
	handler = s.probeLogger(handler)
	handler = security.Headers(deps.BackendOrigin)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.CacheFor(time.Hour)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited, http.MethodPost)
	noStore := security.NoStore

	mux.Handle("GET /{$}", noStore(http.HandlerFunc(s.handleHome)))
	mux.Handle("GET /login", noStore(http.HandlerFunc(s.handleLoginPage)))
	mux.Handle("POST /login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /register", noStore(http.HandlerFunc(s.handleRegisterPage)))
	mux.Handle("POST /register", limited(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("GET /forgot-password", s.handleForgotPasswordPage)
	mux.Handle("POST /forgot-password", limited(http.HandlerFunc(s.handleForgotPassword)))
	mux.HandleFunc("GET /reset-password", s.handleResetPasswordPage)
	mux.Handle("POST /reset-password", limited(http.HandlerFunc(s.handleResetPassword)))
	mux.HandleFunc("GET /reset-success", s.handleResetSuccess)
	mux.HandleFunc("GET /send-email", s.handleSendEmailPage)
	mux.Handle("POST /send-email", limited(http.HandlerFunc(s.handleSendEmail)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("POST /theme", s.handleTheme)

	mux.Handle("GET /expenses", noStore(http.HandlerFunc(s.handleExpenseForm)))
	mux.Handle("POST /expenses", noStore(http.HandlerFunc(s.handleCreateExpense)))
	mux.Handle("GET /expenses/me", noStore(http.HandlerFunc(s.handleMyExpenses)))
	mux.Handle("GET /expenses/export.csv", noStore(http.HandlerFunc(s.handleExportCSV)))
	mux.Handle("GET /expenses/filter/date", noStore(http.HandlerFunc(s.handleFilterByDate)))
	mux.Handle("GET /categories", noStore(http.HandlerFunc(s.handleCategories)))

	mux.Handle("GET /admin/categories", noStore(http.HandlerFunc(s.handleAdminCategories)))
	mux.Handle("POST /admin/categories", noStore(http.HandlerFunc(s.handleAdminCategoryAction)))
	mux.Handle("GET /admin/dashboard", noStore(http.HandlerFunc(s.handleAdminDashboard)))

	mux.HandleFunc("/", s.handleNotFound)
	return nil
}

// probeLogger logs requests that look like scans. They are still served,
// which for anything unexpected means a 404.
func (s *Server) probeLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.Suspicious(r) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r))
	TextResponse(http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.").Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	TextResponse(http.StatusOK, "ok").Write(w)
}

// handleReady reports 503 until the persisted session has been restored.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.store.Restored() {
		TextResponse(http.StatusServiceUnavailable, "restoring").Write(w)
		return
	}
	TextResponse(http.StatusOK, "ready").Write(w)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home.html", "", nil, nil)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "not_found.html", "Not found", nil, nil)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}
