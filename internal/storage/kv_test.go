package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	sqliteKV, err := NewSQLiteKV(filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisKV := NewRedisKVFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	kvs := map[string]KV{
		"sqlite": sqliteKV,
		"redis":  redisKV,
		"memory": NewMemoryKV(),
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			_ = kv.Close()
		}
	})
	return kvs
}

func TestKV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "auth-storage")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "auth-storage", []byte(`{"user":null}`)))
			got, err := kv.Get(ctx, "auth-storage")
			require.NoError(t, err)
			assert.Equal(t, `{"user":null}`, string(got))

			require.NoError(t, kv.Set(ctx, "auth-storage", []byte(`{"v":2}`)))
			got, err = kv.Get(ctx, "auth-storage")
			require.NoError(t, err)
			assert.Equal(t, `{"v":2}`, string(got))

			require.NoError(t, kv.Delete(ctx, "auth-storage"))
			_, err = kv.Get(ctx, "auth-storage")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting a missing key is not an error
			assert.NoError(t, kv.Delete(ctx, "never-written"))
		})
	}
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "theme", []byte("dark")))
	require.NoError(t, first.Close())

	second, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", string(got))
}

func TestRedisKV_UsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	kv := NewRedisKVFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "auth-storage", []byte("x")))
	assert.True(t, mr.Exists("expensetracker:auth-storage"))
}

func TestMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	buf := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", buf))
	buf[0] = 'z'
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	kv, err = Open(ctx, Options{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer kv.Close()
	assert.IsType(t, &SQLiteKV{}, kv)

	_, err = Open(ctx, Options{Backend: "localstorage"})
	assert.Error(t, err)
}
