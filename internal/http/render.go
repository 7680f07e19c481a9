package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/prefs"
	"expensetracker/internal/services"
)

const (
	layoutTemplate   = "layout.html"
	partialsTemplate = "partials.html"
)

// page is what every template receives.
type page struct {
	Title string
	User  *core.User
	Theme prefs.Theme
	Toast *Toast
	Data  any
}

// parseTemplates builds one template set per page so each page can define
// its own "content" block on top of the shared layout.
func parseTemplates(fsys fs.FS, funcs template.FuncMap) (map[string]*template.Template, error) {
	base, err := template.New(layoutTemplate).Funcs(funcs).ParseFS(fsys,
		"templates/"+layoutTemplate, "templates/"+partialsTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == layoutTemplate || name == partialsTemplate {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func templateFuncs(receiptURL func(string) string) template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"receiptURL": func(p string) template.URL {
			return template.URL(receiptURL(p))
		},
	}
}

// render executes name into a buffer first so a template error never
// leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, toast *Toast, data any) {
	t, ok := s.pages[name]
	if !ok {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).
			ErrorContext(r.Context(), "Template not found", "template", name)
		TextResponse(http.StatusInternalServerError, "template not found").Write(w)
		return
	}

	if flash := takeFlash(w, r); toast == nil {
		toast = flash
	}
	p := page{
		Title: title,
		User:  s.store.User(),
		Theme: s.theme(r),
		Toast: toast,
		Data:  data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, p); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).
			LogError(r.Context(), "Template execution failed", err, log.OpRender, log.NewFields().With("template", name))
		TextResponse(http.StatusInternalServerError, "failed to render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) theme(r *http.Request) prefs.Theme {
	if s.themes == nil {
		return prefs.ThemeLight
	}
	t, err := s.themes.Get(r.Context())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Theme lookup failed", log.FieldError, err.Error())
	}
	return t
}

func errorToast(msg string) *Toast {
	return &Toast{Kind: ToastError, Message: msg}
}

// failure maps err onto what the user sees: validation problems and backend
// messages are shown verbatim, anything else gets fallback.
func failure(err error, fallback string) (int, *Toast) {
	var v *services.ValidationError
	if errors.As(err, &v) {
		return http.StatusUnprocessableEntity, errorToast(v.Message)
	}
	if errors.Is(err, api.ErrUnavailable) {
		return http.StatusServiceUnavailable, errorToast("The server is unreachable. Please try again later.")
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status, errorToast(api.Message(err, fallback))
	}
	return http.StatusBadGateway, errorToast(api.Message(err, fallback))
}

// sessionExpired handles a 401 from the backend. The client has already
// cleared the session, so all that is left is sending the user to login.
func sessionExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Backend rejected credential, redirecting to login")
	Redirect("/login").Flash(ToastInfo, "Your session has expired. Please log in again.").Write(w)
	return true
}
