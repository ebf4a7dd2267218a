package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate idempotency key")
	ErrNoStock   = errors.New("insufficient stock")
)

type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// FindBySettlementID resolves an external identifier to an order by
	// checking swap/on-chain id first, then payment hash, then order id.
	// Returns ErrNotFound when nothing matches.
	FindBySettlementID(ctx context.Context, identifier string) (*domain.Order, error)

	// ListPending returns every order still awaiting settlement.
	ListPending(ctx context.Context) ([]*domain.Order, error)

	// MarkPaid atomically moves PENDING→PAID and reports whether THIS call
	// performed the transition. The boolean, never a re-read of status, is
	// the sole side-effect trigger.
	MarkPaid(ctx context.Context, id string) (bool, error)

	// UpdateStatusIf is a guarded transition for the remaining lifecycle
	// moves (FAILED, PREPARATION, SHIPPED).
	UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error)

	// RecordProviderStatus persists the raw backend status mirror (and txid
	// when known) for observability; no state transition.
	RecordProviderStatus(ctx context.Context, id, raw, txid string) error

	// DeleteIfPending removes the order only while it is still PENDING and
	// reports whether THIS call removed it. Settled orders must never be
	// deleted, even by a racing expiry observation.
	DeleteIfPending(ctx context.Context, id string) (bool, error)
}

type ProductRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// DecrementStock conditionally decrements (stock >= qty) and returns
	// ErrNoStock otherwise.
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// DedupLedger is the short-TTL "already notified" record shared by all
// reconciliation channels. FirstSeen atomically inserts key and reports
// whether it was absent; entries expire after the configured TTL.
type DedupLedger interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// Notifier fans a paid order out to the notification channels. Best-effort:
// implementations log failures and never propagate them.
type Notifier interface {
	OrderPaid(ctx context.Context, o *domain.Order)
}

// EventPublisher emits settlement audit events for downstream consumers
// (storefront cache, analytics).
type EventPublisher interface {
	PublishSettled(ctx context.Context, ev OrderSettledEvent) error
}

// StatusCache mirrors the latest canonical status for cheap storefront
// reads. Best-effort.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
}

// IdempotencyStore guards checkout against client retries.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// PaymentGateway hides the provider registry from the checkout use case:
// it picks the configured backend per rail and issues the payment request.
type PaymentGateway interface {
	CreateLightning(ctx context.Context, amountSats uint64, memo string) (*domain.Invoice, string, error)
	CreateOnchain(ctx context.Context, orderID string, amountSats uint64, memo string) (*domain.OnchainPayment, string, error)
}

// Observation is one normalized settlement report fed into the resolver by
// any reconciliation channel.
type Observation struct {
	Status domain.PaymentStatus
	Raw    string
	Txid   string
}

// Clock is injected where expiry math must be testable.
type Clock func() time.Time
