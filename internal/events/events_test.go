package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestFromChange(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	e := FromChange(session.Change{
		Kind: session.ChangeEstablished,
		User: &core.User{ID: 4, Email: "a@x.com", Role: core.RoleAdmin},
		At:   at,
	})
	assert.Equal(t, Event{Type: "established", UserID: 4, Role: "admin", Timestamp: at}, e)

	cleared := FromChange(session.Change{Kind: session.ChangeCleared})
	assert.Equal(t, "cleared", cleared.Type)
	assert.Zero(t, cleared.UserID)
	assert.False(t, cleared.Timestamp.IsZero())
}

func TestEventJSON(t *testing.T) {
	e := Event{Type: "cleared", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	raw, err := e.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"cleared","timestamp":"2024-01-01T00:00:00Z"}`, string(raw))

	_, err = FromJSON([]byte(`{"type":1}`))
	assert.Error(t, err)
}

func TestDispatcher_PublishesSessionTransitions(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, 8)

	store := session.New(storage.NewMemoryKV(), session.WithListener(d.Listener()))
	defer store.Close(context.Background())

	store.Restore(context.Background())
	require.NoError(t, store.SetSession(core.User{ID: 1, Email: "a@x.com", Role: core.RoleStandard}, "tok"))
	store.ClearSession()

	require.NoError(t, d.Close(context.Background()))

	got := sink.Events()
	require.Len(t, got, 3)
	assert.Equal(t, "restored", got[0].Type)
	assert.Equal(t, "established", got[1].Type)
	assert.Equal(t, int64(1), got[1].UserID)
	assert.Equal(t, "cleared", got[2].Type)
}

func TestDispatcher_SinkFailureIsNotFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	d := NewDispatcher(sink, nil, 2)

	assert.NoError(t, d.Enqueue(Event{Type: "cleared"}))
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Enqueue(Event{Type: "cleared"}), ErrDispatcherClosed)
	// closing twice is fine
	assert.NoError(t, d.Close(context.Background()))
}
