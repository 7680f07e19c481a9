// Package prefs stores UI preferences next to the session record.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"expensetracker/internal/storage"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	themeKey = "theme"
)

// Toggled returns the other theme.
func (t Theme) Toggled() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Themes reads and writes the theme preference. Anything other than "dark"
// in storage reads as light.
type Themes struct {
	kv storage.KV
	mu sync.Mutex
}

func NewThemes(kv storage.KV) *Themes {
	return &Themes{kv: kv}
}

func (t *Themes) Get(ctx context.Context) (Theme, error) {
	raw, err := t.kv.Get(ctx, themeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return ThemeLight, fmt.Errorf("read theme: %w", err)
	}
	if Theme(raw) == ThemeDark {
		return ThemeDark, nil
	}
	return ThemeLight, nil
}

func (t *Themes) Set(ctx context.Context, theme Theme) error {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	if err := t.kv.Set(ctx, themeKey, []byte(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// Toggle flips the stored theme and returns the new one.
func (t *Themes) Toggle(ctx context.Context) (Theme, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.Get(ctx)
	if err != nil {
		return current, err
	}
	next := current.Toggled()
	if err := t.Set(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}
