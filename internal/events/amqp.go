package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of an AMQP channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards events to a topic exchange, routed by event topic.
type AMQPPublisher struct {
	ch       Channel
	exchange string
	timeout  time.Duration
}

// DialAMQP connects to the broker and declares the events exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	pub, err := NewAMQPPublisher(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return pub, conn, nil
}

// NewAMQPPublisher declares exchange on ch so publishing never fails due to
// missing infrastructure.
func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "air593.events"
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, timeout: 3 * time.Second}, nil
}

// Sink implements Sink.
func (p *AMQPPublisher) Sink() string { return "amqp" }

// Notify implements Notifier.
func (p *AMQPPublisher) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Topic, err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx, p.exchange, ev.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Topic,
		Body:         body,
	})
}

// Close releases the channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
