package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends decisions to whoever delivers the notifications
type Publisher interface {
	Publish(ctx context.Context, d Decision) error
}

// Channel is the part of *amqp.Channel used for publishing
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes decisions as JSON to a durable queue on the default exchange
type AMQPPublisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

func NewAMQPPublisher(ch Channel, queue string, timeout time.Duration) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queue, timeout: timeout}
}

func (p *AMQPPublisher) Publish(ctx context.Context, d Decision) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    d.DecidedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish decision for expense %d: %w", d.ExpenseID, err)
	}
	return nil
}

// DeclareQueue declares the durable decision queue shared by the server and the mail worker
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", name, err)
	}
	return nil
}

// NopPublisher discards decisions; used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Decision) error { return nil }
