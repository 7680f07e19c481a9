// Package worker consumes session events off the broker and keeps a short
// audit trail of them in the key-value store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"expensetracker/internal/events"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

const (
	// AuditKey is where the trail is stored, next to the session record.
	AuditKey = "session-audit"

	DefaultAuditLimit = 50
)

// AuditWorker appends each received event to a bounded, newest-last trail.
type AuditWorker struct {
	kv     storage.KV
	limit  int
	logger *log.Logger

	mu sync.Mutex
}

func NewAuditWorker(kv storage.KV, limit int, logger *log.Logger) *AuditWorker {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditWorker{
		kv:     kv,
		limit:  limit,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent records e. It has the signature amqp.Client.Consume expects.
func (w *AuditWorker) HandleEvent(ctx context.Context, e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	trail, err := w.load(ctx)
	if err != nil {
		return err
	}
	trail = append(trail, e)
	if len(trail) > w.limit {
		trail = trail[len(trail)-w.limit:]
	}

	data, err := json.Marshal(trail)
	if err != nil {
		return fmt.Errorf("encode audit trail: %w", err)
	}
	if err := w.kv.Set(ctx, AuditKey, data); err != nil {
		return fmt.Errorf("store audit trail: %w", err)
	}

	w.logger.InfoContext(ctx, "Recorded session event",
		"type", e.Type,
		"user_id", e.UserID,
		"entries", len(trail))
	return nil
}

// Recent returns up to n of the newest events, newest first. n <= 0 means all.
func (w *AuditWorker) Recent(ctx context.Context, n int) ([]events.Event, error) {
	w.mu.Lock()
	trail, err := w.load(ctx)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if n <= 0 || n > len(trail) {
		n = len(trail)
	}
	out := make([]events.Event, 0, n)
	for i := len(trail) - 1; i >= len(trail)-n; i-- {
		out = append(out, trail[i])
	}
	return out, nil
}

func (w *AuditWorker) load(ctx context.Context) ([]events.Event, error) {
	data, err := w.kv.Get(ctx, AuditKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}

	var trail []events.Event
	if err := json.Unmarshal(data, &trail); err != nil {
		// a corrupt trail is replaced rather than blocking new entries
		w.logger.Warn("Discarding unreadable audit trail", log.FieldError, err.Error())
		return nil, nil
	}
	return trail, nil
}
