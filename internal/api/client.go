// Package api is a typed client for the expense-tracker REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensetracker/internal/log"
)

const DefaultBaseURL = "http://localhost:4000/v1/api"

// CredentialSource supplies the bearer credential for outgoing calls. The
// session store satisfies it.
type CredentialSource interface {
	Credential() string
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials CredentialSource
	// OnUnauthorized runs when an authenticated call comes back 401.
	OnUnauthorized func()
	Logger         *log.Logger
	HTTPClient     *http.Client
}

type Client struct {
	baseURL        *url.URL
	http           *http.Client
	creds          CredentialSource
	onUnauthorized func()
	logger         *log.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &Client{
		baseURL:        base,
		http:           httpClient,
		creds:          cfg.Credentials,
		onUnauthorized: cfg.OnUnauthorized,
		logger:         logger.WithComponent(log.ComponentAPI),
	}, nil
}

// SetCredentials swaps the credential source. It must be called before the
// client is shared.
func (c *Client) SetCredentials(src CredentialSource, onUnauthorized func()) {
	c.creds = src
	c.onUnauthorized = onUnauthorized
}

// Origin is the backend's scheme and host, used to link uploaded receipts.
func (c *Client) Origin() string {
	return c.baseURL.Scheme + "://" + c.baseURL.Host
}

// ReceiptURL turns a stored receipt path into an absolute link.
func (c *Client) ReceiptURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.Origin() + path
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimPrefix(path, "/")
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := log.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	authenticated := false
	if c.creds != nil && !isPublic(path) {
		if cred := c.creds.Credential(); cred != "" {
			req.Header.Set("Authorization", "Bearer "+cred)
			authenticated = true
		}
	}
	return req, authenticated, nil
}

// isPublic reports whether path is an anonymous endpoint. A 401 from one of
// these is a failed attempt, not a rejected session.
func isPublic(path string) bool {
	path = strings.TrimPrefix(path, "/")
	return strings.HasPrefix(path, "auth/") || path == "email/send"
}

// send performs req and turns non-2xx answers into *Error. On success the
// caller owns resp.Body.
func (c *Client) send(req *http.Request, authenticated bool) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Backend call failed",
			log.FieldMethod, req.Method,
			log.FieldPath, req.URL.Path,
			log.FieldError, err.Error())
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, req.URL.Path, err)
	}

	c.logger.Debug("Backend call",
		log.FieldMethod, req.Method,
		log.FieldPath, req.URL.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &Error{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated && c.onUnauthorized != nil {
		c.logger.Info("Backend rejected credential; clearing session", log.FieldPath, req.URL.Path)
		c.onUnauthorized()
	}
	return nil, apiErr
}

// doJSON sends in (if non-nil) as JSON and decodes the answer into out (if
// non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, authenticated, err := c.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	resp, err := c.send(req, authenticated)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
