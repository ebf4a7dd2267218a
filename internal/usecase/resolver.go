package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/observ"
)

// Resolver is the only code path allowed to mutate order settlement status.
// Every reconciliation channel (HTTP poll, push subscription, webhook,
// stream bridge, background sweep) feeds observations through Reconcile;
// none of them duplicate the transition logic.
type Resolver struct {
	orders   OrderRepo
	products ProductRepo
	notifier Notifier
	events   EventPublisher
	cache    StatusCache

	// settlesOnConfirm reports whether CONFIRMED completes payment for the
	// given provider. True only for address-watching strategies, which have
	// no later "paid" signal.
	settlesOnConfirm func(providerName string) bool

	log *slog.Logger
}

func NewResolver(orders OrderRepo, products ProductRepo, notifier Notifier,
	events EventPublisher, cache StatusCache, settlesOnConfirm func(string) bool) *Resolver {
	if settlesOnConfirm == nil {
		settlesOnConfirm = func(string) bool { return false }
	}
	return &Resolver{
		orders:           orders,
		products:         products,
		notifier:         notifier,
		events:           events,
		cache:            cache,
		settlesOnConfirm: settlesOnConfirm,
		log:              logging.New("resolver"),
	}
}

// Reconcile applies one settlement observation. Unknown identifiers are a
// no-op (nil, nil): providers may report payments this shop never issued.
// Returns the order after the transition, or nil when it no longer exists.
func (r *Resolver) Reconcile(ctx context.Context, identifier string, obs Observation) (*domain.Order, error) {
	order, err := r.orders.FindBySettlementID(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	status := obs.Status
	if status == domain.PaymentConfirmed && r.settlesOnConfirm(order.Provider) {
		status = domain.PaymentPaid
	}

	switch status {
	case domain.PaymentPaid:
		justNow, err := r.orders.MarkPaid(ctx, order.ID)
		if err != nil {
			return order, err
		}
		order.Status = domain.StatusPaid
		order.ProviderStatus = obs.Raw
		observ.ReconcileOutcomes.WithLabelValues("paid").Inc()
		if justNow {
			r.onPaid(ctx, order, obs)
		}
		return order, nil

	case domain.PaymentExpired:
		// cancellation, not a terminal FAILED: the order row goes away and
		// with it the inventory reservation. The status predicate lives in
		// the delete itself; a PAID transition landing after our snapshot
		// read keeps the order.
		removed, err := r.orders.DeleteIfPending(ctx, order.ID)
		if err != nil {
			return order, err
		}
		if !removed {
			return order, nil
		}
		observ.ReconcileOutcomes.WithLabelValues("expired").Inc()
		r.log.Info("pending order expired and removed", "order_id", order.ID, "raw", obs.Raw)
		return nil, nil

	case domain.PaymentFailed:
		moved, err := r.orders.UpdateStatusIf(ctx, order.ID, domain.StatusPending, domain.StatusFailed)
		if err != nil {
			return order, err
		}
		if moved {
			order.Status = domain.StatusFailed
			order.ProviderStatus = obs.Raw
			observ.ReconcileOutcomes.WithLabelValues("failed").Inc()
		}
		return order, nil

	default: // PENDING, MEMPOOL, CONFIRMED (swap intermediate): observability only
		if err := r.orders.RecordProviderStatus(ctx, order.ID, obs.Raw, obs.Txid); err != nil {
			r.log.Warn("record provider status failed", "order_id", order.ID, "err", err)
		}
		order.ProviderStatus = obs.Raw
		observ.ReconcileOutcomes.WithLabelValues("observed").Inc()
		return order, nil
	}
}

// onPaid runs the at-most-once side effects. Each is independently
// best-effort: a notification or audit failure must never block or undo the
// PAID transition already committed.
func (r *Resolver) onPaid(ctx context.Context, order *domain.Order, obs Observation) {
	for _, item := range order.Items {
		if err := r.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			r.log.Error("stock decrement failed", "order_id", order.ID,
				"product_id", item.ProductID, "qty", item.Quantity, "err", err)
		}
	}

	if r.notifier != nil {
		r.notifier.OrderPaid(ctx, order)
	}

	if r.events != nil {
		ev := OrderSettledEvent{
			OrderID:    order.ID,
			ClientID:   order.ClientID,
			Status:     string(domain.StatusPaid),
			RawStatus:  obs.Raw,
			Provider:   order.Provider,
			Method:     string(order.PaymentMethod),
			TotalSats:  order.TotalSats,
			OccurredAt: time.Now().Unix(),
		}
		if err := r.events.PublishSettled(ctx, ev); err != nil {
			r.log.Error("audit event publish failed", "order_id", order.ID, "err", err)
		}
	}

	if r.cache != nil {
		if err := r.cache.SetStatus(ctx, order.ID, string(domain.StatusPaid)); err != nil {
			r.log.Warn("status cache update failed", "order_id", order.ID, "err", err)
		}
	}

	r.log.Info("order settled", "order_id", order.ID, "provider", order.Provider,
		"method", order.PaymentMethod, "total_sats", order.TotalSats)
}
