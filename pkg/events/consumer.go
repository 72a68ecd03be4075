package events

import (
	"context"
	"fmt"
	"time"

	"shortlink/pkg/logging"
	"shortlink/pkg/storage"

	"github.com/rabbitmq/amqp091-go"
)

// ClickHandler applies one click to the store.
type ClickHandler interface {
	Write(ctx context.Context, event storage.ClickEvent) error
}

type Consumer struct {
	ch       *amqp091.Channel
	queue    string
	prefetch int
	timeout  time.Duration
	handler  ClickHandler
	logger   *logging.Logger
}

func NewConsumer(ch *amqp091.Channel, queue string, prefetch int, timeout time.Duration, handler ClickHandler, logger *logging.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, prefetch: prefetch, timeout: timeout, handler: handler, logger: logger}
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info(ctx, "analytics worker started, waiting for click events", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks once the write was attempted, even if it failed: a redelivery
// would increment clicks a second time. Shutdown does not cut a write short.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	event, err := decode(d.Body)
	if err != nil {
		c.logger.Error(ctx, "undecodable click event, rejecting", "error", err)
		if err := d.Reject(false); err != nil {
			c.logger.Warn(ctx, "reject failed", "error", err)
		}
		return
	}

	if err := c.handler.Write(ctx, event); err != nil {
		c.logger.Warn(ctx, "click write failed", "code", event.ShortCode, "error", err)
	}
	if err := d.Ack(false); err != nil {
		c.logger.Warn(ctx, "ack failed", "code", event.ShortCode, "error", err)
	}
}
