package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/events"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
	"expensetracker/internal/worker"
)

func TestSubcommandsRegistered(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
		for _, sub := range c.Commands() {
			names[c.Name()+" "+sub.Name()] = true
		}
	}
	for _, want := range []string{"serve", "session", "session show", "session clear", "events watch", "events audit"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSessionShowAndClear(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")
	t.Setenv("PERSIST_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("AMQP_URL", "")

	kv, err := storage.NewSQLiteKV(dbPath)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), session.StorageKey,
		[]byte(`{"user":{"id":3,"displayName":"Ana","email":"ana@example.com","role":"admin"},"credential":"tok"}`)))
	require.NoError(t, kv.Close())

	out, err := run(t, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend: sqlite")
	assert.Contains(t, out, "Ana <ana@example.com>")
	assert.Contains(t, out, "Role:    admin")
	assert.NotContains(t, out, "tok")

	out, err = run(t, "session", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Session cleared.")

	out, err = run(t, "session", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "No active session.")
}

func TestInvalidConfigFailsFast(t *testing.T) {
	t.Setenv("PERSIST_BACKEND", "floppy")
	_, err := run(t, "session", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid persist backend")
}

func TestEventsAudit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")
	t.Setenv("PERSIST_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", dbPath)
	t.Setenv("AMQP_URL", "")

	out, err := run(t, "events", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No session events recorded.")

	kv, err := storage.NewSQLiteKV(dbPath)
	require.NoError(t, err)
	w := worker.NewAuditWorker(kv, 0, nil)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, w.HandleEvent(context.Background(), events.Event{Type: "login", UserID: 3, Role: "admin", Timestamp: at}))
	require.NoError(t, w.HandleEvent(context.Background(), events.Event{Type: "logout", Timestamp: at.Add(time.Minute)}))
	require.NoError(t, kv.Close())

	out, err = run(t, "events", "audit", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "logout")
	assert.NotContains(t, out, "login")

	out, err = run(t, "events", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "user=3 role=admin")
}

func TestEventsWatchRequiresBroker(t *testing.T) {
	t.Setenv("PERSIST_BACKEND", "memory")
	t.Setenv("AMQP_URL", "")
	_, err := run(t, "events", "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL is not set")
}
