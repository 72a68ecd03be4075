package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shortlink/pkg/logging"
	"shortlink/pkg/storage"

	"github.com/rabbitmq/amqp091-go"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher is a ClickRecorder that queues click events instead of writing
// them. amqp091 channels are not safe for concurrent publishing, hence mu.
type Publisher struct {
	mu      sync.Mutex
	ch      publishChannel
	queue   string
	timeout time.Duration
	slots   chan struct{}
	logger  *logging.Logger
	wg      sync.WaitGroup
}

func NewPublisher(ch *amqp091.Channel, queue string, timeout time.Duration, maxInFlight int, logger *logging.Logger) *Publisher {
	return newPublisher(ch, queue, timeout, maxInFlight, logger)
}

func newPublisher(ch publishChannel, queue string, timeout time.Duration, maxInFlight int, logger *logging.Logger) *Publisher {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
		logger:  logger,
	}
}

// Record publishes in the background. Failures are logged and dropped, as
// are clicks arriving while maxInFlight publishes are already pending.
func (p *Publisher) Record(ctx context.Context, event storage.ClickEvent) {
	select {
	case p.slots <- struct{}{}:
	default:
		p.logger.Warn(ctx, "click publisher saturated, dropping click", "code", event.ShortCode, "max_in_flight", cap(p.slots))
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.publish(ctx, event); err != nil {
			p.logger.Warn(ctx, "click event publish failed", "code", event.ShortCode, "error", err)
		}
	}()
}

func (p *Publisher) publish(ctx context.Context, event storage.ClickEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
}

// Close waits for in-flight publishes. It does not close the channel.
func (p *Publisher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for click publishes: %w", ctx.Err())
	}
}
