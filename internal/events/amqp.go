package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher needs
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher forwards chapter publications to a durable queue so downstream
// workers (follower notifications, feed builders) can react to new chapters.
type AMQPPublisher struct {
	ch    Channel
	queue string
	types map[string]bool
}

// NewAMQPPublisher publishes only the listed event types; with none listed it publishes
// chapter.published.
func NewAMQPPublisher(ch Channel, queue string, types ...string) *AMQPPublisher {
	if len(types) == 0 {
		types = []string{TypeChapterPublished}
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &AMQPPublisher{ch: ch, queue: queue, types: allowed}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if !p.types[e.Type] {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("error publishing %s to %s: %w", e.Type, p.queue, err)
	}
	return nil
}

// DialAMQP connects, opens a channel and declares the durable queue.
// The returned close func closes both channel and connection.
func DialAMQP(url, queue string) (*amqp.Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("error declaring queue: %w", err)
	}
	closeFn := func() error {
		ch.Close()
		return conn.Close()
	}
	return ch, closeFn, nil
}
