package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/storage"
)

func TestThemes(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	themes := NewThemes(kv)

	got, err := themes.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got)

	got, err = themes.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got)

	// a fresh reader sees the stored value
	got, err = NewThemes(kv).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got)

	got, err = themes.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got)
}

func TestThemes_UnknownValueReadsAsLight(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "theme", []byte("purple")))

	got, err := NewThemes(kv).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got)
}
