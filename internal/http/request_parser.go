// This file implements helpers for reading form posts.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"expensetracker/internal/api"
)

const (
	maxFormMemory  = 1 << 20
	maxReceiptSize = 5 << 20
)

var ErrReceiptTooLarge = errors.New("receipt exceeds 5 MB")

// formValue returns the trimmed, control-character free value of key.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.FormValue(key))
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseID reads a positive integer ID from the form.
func parseID(r *http.Request, key string) (int64, error) {
	v := formValue(r, key)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return id, nil
}

// parseExpenseForm parses a multipart or urlencoded expense post. The
// receipt is optional; a missing file yields nil.
func parseExpenseForm(w http.ResponseWriter, r *http.Request) (*api.Receipt, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize+maxFormMemory)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, ErrReceiptTooLarge
			}
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	file, header, err := r.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	defer file.Close()
	if header.Size == 0 {
		return nil, nil
	}
	if header.Size > maxReceiptSize {
		return nil, ErrReceiptTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(file, maxReceiptSize+1))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	if len(body) > maxReceiptSize {
		return nil, ErrReceiptTooLarge
	}
	return &api.Receipt{Filename: header.Filename, Body: bytes.NewReader(body)}, nil
}
