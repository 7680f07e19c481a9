// Package http serves the server-rendered expense tracker UI.
//
// This file implements the builder used for every non-page response:
// redirects after a form post, plain-text probes and errors.
package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ToastKind is the style of a one-shot message shown above the page.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"

	flashCookie = "flash"
	flashMaxAge = 60
)

// Toast is a one-shot message. Link is optional.
type Toast struct {
	Kind    ToastKind
	Message string
	Link    string
}

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	flash      *Toast
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) BodyText(content string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/plain; charset=utf-8"
	b.body = []byte(content)
	return b
}

// SeeOther redirects with 303 so the browser follows up with a GET.
func (b *ResponseBuilder) SeeOther(location string) *ResponseBuilder {
	b.statusCode = http.StatusSeeOther
	b.headers["Location"] = location
	return b
}

// Flash carries a toast to the next rendered page.
func (b *ResponseBuilder) Flash(kind ToastKind, message string) *ResponseBuilder {
	b.flash = &Toast{Kind: kind, Message: message}
	return b
}

// FlashLink is Flash with a link shown next to the message.
func (b *ResponseBuilder) FlashLink(kind ToastKind, message, link string) *ResponseBuilder {
	b.flash = &Toast{Kind: kind, Message: message, Link: link}
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.flash != nil {
		http.SetCookie(w, encodeFlash(*b.flash))
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// Redirect is the common post/redirect/get response.
func Redirect(location string) *ResponseBuilder {
	return NewResponse().SeeOther(location)
}

func TextResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).BodyText(message)
}

func encodeFlash(t Toast) *http.Cookie {
	v := url.Values{}
	v.Set("k", string(t.Kind))
	v.Set("m", t.Message)
	if t.Link != "" {
		v.Set("l", t.Link)
	}
	return &http.Cookie{
		Name:     flashCookie,
		Value:    v.Encode(),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// takeFlash reads the pending toast, if any, and expires its cookie.
func takeFlash(w http.ResponseWriter, r *http.Request) *Toast {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	v, err := url.ParseQuery(c.Value)
	if err != nil {
		return nil
	}
	msg := strings.TrimSpace(v.Get("m"))
	if msg == "" {
		return nil
	}
	kind := ToastKind(v.Get("k"))
	switch kind {
	case ToastSuccess, ToastError, ToastInfo:
	default:
		kind = ToastInfo
	}
	t := &Toast{Kind: kind, Message: msg}
	// only absolute http(s) links are rendered
	if l := v.Get("l"); strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "http://") {
		t.Link = l
	}
	return t
}
