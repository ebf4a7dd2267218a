package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/observ"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// Sink is one outbound notification channel. Send failures are the sink's
// problem to report, never to propagate: the dispatcher logs and moves on.
type Sink interface {
	Name() string
	Recipient(msg usecase.OrderPaidMsg) string
	Send(ctx context.Context, msg usecase.OrderPaidMsg) error
}

// Dispatcher consumes order.paid events and fans them out. Each sink's
// delivery is gated by the shared dedup ledger so the same semantic fact is
// sent once per TTL window no matter how many channels observed it.
type Dispatcher struct {
	ledger usecase.DedupLedger
	sinks  []Sink
	log    *slog.Logger
}

func NewDispatcher(ledger usecase.DedupLedger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{ledger: ledger, sinks: sinks, log: logging.New("notify")}
}

// Handle implements the queue.JSONHandler contract. It always returns nil:
// sink failures are best-effort by design and a requeue would only replay
// the duplicates the ledger exists to prevent.
func (d *Dispatcher) Handle(ctx context.Context, msg usecase.OrderPaidMsg) error {
	for _, sink := range d.sinks {
		key := dedupKey(sink, msg)

		first, err := d.ledger.FirstSeen(ctx, key)
		if err != nil {
			// ledger outage: deliver anyway, a duplicate beats silence
			d.log.Warn("dedup ledger check failed", "key", key, "err", err)
			first = true
		}
		if !first {
			observ.NotificationsSent.WithLabelValues(sink.Name(), "deduped").Inc()
			continue
		}

		if err := sink.Send(ctx, msg); err != nil {
			observ.NotificationsSent.WithLabelValues(sink.Name(), "error").Inc()
			d.log.Error("notification failed", "sink", sink.Name(), "order_id", msg.OrderID, "err", err)
			continue
		}
		observ.NotificationsSent.WithLabelValues(sink.Name(), "sent").Inc()
	}
	return nil
}

// dedupKey prefers the semantic {sink, recipient, orderId, status} tuple and
// falls back to {sink, recipient, hash(content)} when the order id is
// missing. The sink name is part of the key: different channels may share a
// recipient string and each still owes its own delivery.
func dedupKey(sink Sink, msg usecase.OrderPaidMsg) string {
	recipient := sink.Recipient(msg)
	if msg.OrderID != "" {
		return fmt.Sprintf("%s:%s:%s:%s", sink.Name(), recipient, msg.OrderID, msg.Status)
	}
	body, _ := json.Marshal(msg)
	sum := sha256.Sum256(body)
	return fmt.Sprintf("%s:%s:%s", sink.Name(), recipient, hex.EncodeToString(sum[:8]))
}
