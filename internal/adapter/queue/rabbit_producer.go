package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

const (
	exchangeName = "settlement.events"
	routingKey   = "order.paid"
	queueName    = "order.paid.q"
)

// RabbitProducer publishes resolver outcomes for the notification
// dispatcher.
type RabbitProducer struct {
	ch *amqp.Channel
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch}, nil
}

// PublishPaid sends an "order.paid" event to the exchange.
func (p *RabbitProducer) PublishPaid(ctx context.Context, msg usecase.OrderPaidMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// OrderPaidQueue is the queue the notification dispatcher consumes.
func OrderPaidQueue() string { return queueName }
