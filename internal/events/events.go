// Package events turns session transitions into outbound events and hands
// them to a sink off the request path.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

// Event is the wire form of a session transition.
type Event struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func FromChange(c session.Change) Event {
	e := Event{Type: string(c.Kind), Timestamp: c.At.UTC()}
	if c.User != nil {
		e.UserID = c.User.ID
		e.Role = string(c.User.Role)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Sink delivers one event somewhere.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

var ErrDispatcherClosed = errors.New("events: dispatcher closed")

const publishTimeout = 5 * time.Second

// Dispatcher queues events and publishes them from one goroutine. When the
// queue is full new events are dropped; delivery is best effort.
type Dispatcher struct {
	sink   Sink
	logger *log.Logger
	queue  chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sink Sink, logger *log.Logger, buffer int) *Dispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	if buffer < 1 {
		buffer = 64
	}
	d := &Dispatcher{
		sink:   sink,
		logger: logger.WithComponent(log.ComponentAMQP),
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Listener adapts the dispatcher to session.Listener.
func (d *Dispatcher) Listener() session.Listener {
	return func(c session.Change) {
		_ = d.Enqueue(FromChange(c))
	}
}

func (d *Dispatcher) Enqueue(e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- e:
		return nil
	default:
		d.logger.Warn("Event queue full, dropping event", "type", e.Type)
		return errors.New("events: queue full")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.sink.Publish(ctx, e); err != nil {
			d.logger.LogError(ctx, "Failed to publish session event", err, log.OpPublish,
				log.NewFields().WithUser(e.UserID, e.Role))
		} else {
			d.logger.Debug("Session event published", "type", e.Type)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
