// Package security sets response hardening headers and resolves client
// addresses.
package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// ContentSecurityPolicy allows scripts, styles and form posts from this
// origin only. Receipt images are served by the backend, so img-src also
// lists backendOrigin when it is set.
func ContentSecurityPolicy(backendOrigin string) string {
	img := []string{"'self'", "data:"}
	if backendOrigin != "" {
		img = append(img, backendOrigin)
	}
	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ")
}

// Headers returns middleware that stamps every response with the page
// hardening headers. HSTS is added for TLS requests only.
func Headers(backendOrigin string) func(http.Handler) http.Handler {
	fixed := http.Header{}
	fixed.Set("Content-Security-Policy", ContentSecurityPolicy(backendOrigin))
	fixed.Set("X-Content-Type-Options", "nosniff")
	fixed.Set("X-Frame-Options", "DENY")
	fixed.Set("Referrer-Policy", "same-origin")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range fixed {
				h[k] = v
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CacheFor lets browsers keep embedded static files for maxAge.
func CacheFor(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses that depend on session state as uncacheable.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
