package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// SettledPublisher appends one audit record per terminal settlement to the
// events topic. Downstream consumers (storefront cache, analytics) replay it
// at their own pace; nothing in the engine reads it back.
type SettledPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSettledPublisher(producer sarama.SyncProducer, topic string) *SettledPublisher {
	return &SettledPublisher{producer: producer, topic: topic}
}

func (p *SettledPublisher) PublishSettled(_ context.Context, ev usecase.OrderSettledEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.OrderID), // per-order ordering
		Value: sarama.ByteEncoder(body),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (p *SettledPublisher) Close() error { return p.producer.Close() }

var _ usecase.EventPublisher = (*SettledPublisher)(nil)
