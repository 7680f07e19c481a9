package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5"},
		{"trusted proxy forwards", "127.0.0.1:1234", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy real ip", "10.1.2.3:80", "", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy garbage header", "10.1.2.3:80", "nonsense", "", "10.1.2.3"},
		{"unparseable remote", "pipe", "", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(r))
		})
	}
	assert.Error(t, d.AddTrustedProxy("not-a-cidr"))
}

func TestSuspicious(t *testing.T) {
	d := NewDetector()
	assert.True(t, d.Suspicious(httptest.NewRequest(http.MethodGet, "/.env", nil)))
	assert.True(t, d.Suspicious(httptest.NewRequest(http.MethodGet, "/expenses?x=../../etc/passwd", nil)))
	assert.False(t, d.Suspicious(httptest.NewRequest(http.MethodGet, "/expenses/filter/date?from=2024-01-01", nil)))
	assert.Equal(t, int64(2), d.SuspiciousCount())
}

func TestHeaders(t *testing.T) {
	h := Headers("http://localhost:4000")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "img-src 'self' data: http://localhost:4000;")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestContentSecurityPolicy_WithoutBackend(t *testing.T) {
	csp := ContentSecurityPolicy("")
	assert.Contains(t, csp, "img-src 'self' data:;")
	assert.True(t, strings.HasSuffix(csp, "form-action 'self'"))
}

func TestCacheFor(t *testing.T) {
	rec := httptest.NewRecorder()
	CacheFor(time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
