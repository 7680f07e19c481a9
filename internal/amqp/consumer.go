package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"expensetracker/internal/events"
	"expensetracker/internal/log"
)

var ErrDeliveriesClosed = errors.New("amqp: delivery channel closed")

// Handler processes one session event. Returning an error requeues it.
type Handler func(ctx context.Context, e events.Event) error

// Consume delivers events from the bound queue to handler until ctx is
// done. Malformed messages are dropped; handler failures are requeued.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connectLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	ch, err := c.conn.Channel()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, c.routingKey, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Consuming session events", "queue", c.routingKey)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	e, err := events.FromJSON(d.Body)
	if err != nil {
		c.logger.LogError(ctx, "Dropping malformed event", err, log.OpConsume, nil)
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, e); err != nil {
		c.logger.LogError(ctx, "Event handler failed; requeueing", err, log.OpConsume,
			log.NewFields().With("type", e.Type))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
