// Package events moves click events through RabbitMQ so the redirect path
// never writes analytics to the store itself.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shortlink/pkg/storage"

	"github.com/rabbitmq/amqp091-go"
)

// Connect dials RabbitMQ and declares the durable click queue.
func Connect(url, queue string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}
	return conn, ch, nil
}

func encode(event storage.ClickEvent) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, err
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.CreatedAt,
		Body:         body,
	}, nil
}

var errNoShortCode = errors.New("click event has no short code")

func decode(body []byte) (storage.ClickEvent, error) {
	var event storage.ClickEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, err
	}
	if strings.TrimSpace(event.ShortCode) == "" {
		return event, errNoShortCode
	}
	// The store assigns ids.
	event.ID = 0
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event, nil
}
