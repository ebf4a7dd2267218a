package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JSONHandler lifts a typed message handler into the raw Delivery contract.
// A body that does not decode into T is a malformed publish, not a transient
// fault.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var msg T
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return h.HandleFunc(ctx, msg)
}
