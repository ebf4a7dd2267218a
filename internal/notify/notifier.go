package notify

import (
	"context"
	"log/slog"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/queue"
	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// QueueNotifier decouples the resolver from the notification sinks: it
// publishes one order.paid event and returns. Publish failure is logged,
// never surfaced — the PAID transition is already committed.
type QueueNotifier struct {
	producer *queue.RabbitProducer
	log      *slog.Logger
}

func NewQueueNotifier(producer *queue.RabbitProducer) *QueueNotifier {
	return &QueueNotifier{producer: producer, log: logging.New("notifier")}
}

func (n *QueueNotifier) OrderPaid(ctx context.Context, o *domain.Order) {
	msg := usecase.OrderPaidMsg{
		OrderID:   o.ID,
		ClientID:  o.ClientID,
		Status:    string(domain.StatusPaid),
		TotalSats: o.TotalSats,
		Method:    string(o.PaymentMethod),
		Provider:  o.Provider,
	}
	if err := n.producer.PublishPaid(ctx, msg); err != nil {
		n.log.Error("order.paid publish failed", "order_id", o.ID, "err", err)
	}
}

var _ usecase.Notifier = (*QueueNotifier)(nil)
