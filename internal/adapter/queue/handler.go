package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler consumes one delivery. Implementations must be idempotent: the
// pipeline redelivers on reconnect and the dedup ledger, not the broker,
// owns the once-per-window guarantee. nil acks the delivery; an error nacks
// it under the router's requeue policy.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
