package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
)

type CheckoutInput struct {
	ClientID       string
	IdempotencyKey string
	PaymentMethod  domain.PaymentMethod
	Items          []CheckoutItem
}

type CheckoutItem struct {
	ProductID string
	Quantity  int
}

type Checkout struct {
	orders       OrderRepo
	products     ProductRepo
	idem         IdempotencyStore
	gateway      PaymentGateway
	shippingSats uint64
}

func NewCheckout(orders OrderRepo, products ProductRepo, idem IdempotencyStore,
	gateway PaymentGateway, shippingSats uint64) *Checkout {
	return &Checkout{
		orders:       orders,
		products:     products,
		idem:         idem,
		gateway:      gateway,
		shippingSats: shippingSats,
	}
}

// Execute prices the cart, issues the payment request on the configured
// backend and persists the PENDING order. A repeated idempotency key returns
// the already-created order instead of issuing a second payment request.
func (uc *Checkout) Execute(ctx context.Context, in CheckoutInput) (*domain.Order, error) {
	if in.IdempotencyKey != "" {
		if id, ok, _ := uc.idem.Recall(ctx, in.ClientID, in.IdempotencyKey); ok {
			return uc.orders.GetByID(ctx, id)
		}
		ok, err := uc.idem.TryLock(ctx, in.ClientID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDuplicate
		}
	}

	order := &domain.Order{
		ID:            uuid.NewString(),
		ClientID:      in.ClientID,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.StatusPending,
		ShippingSats:  uc.shippingSats,
		CreatedAt:     time.Now().UTC(),
	}

	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		p, err := uc.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, err)
		}
		if p.Stock < item.Quantity {
			return nil, ErrNoStock
		}
		order.Items = append(order.Items, domain.LineItem{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  item.Quantity,
			PriceSats: p.PriceSats,
		})
		order.SubtotalSats += p.PriceSats * uint64(item.Quantity)
	}
	order.TotalSats = order.SubtotalSats + order.ShippingSats
	if err := order.Validate(); err != nil {
		return nil, err
	}

	memo := fmt.Sprintf("BoltCanvas order %s", order.ID)
	switch in.PaymentMethod {
	case domain.MethodLightning:
		inv, providerName, err := uc.gateway.CreateLightning(ctx, order.TotalSats, memo)
		if err != nil {
			return nil, err
		}
		order.Invoice = inv
		order.Provider = providerName
	case domain.MethodOnchain:
		oc, providerName, err := uc.gateway.CreateOnchain(ctx, order.ID, order.TotalSats, memo)
		if err != nil {
			return nil, err
		}
		order.Onchain = oc
		order.Provider = providerName
	default:
		return nil, fmt.Errorf("unknown payment method %q", in.PaymentMethod)
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if in.IdempotencyKey != "" {
		_ = uc.idem.Remember(ctx, in.ClientID, in.IdempotencyKey, order.ID)
	}

	logging.FromCtx(ctx).Info("checkout accepted", "order_id", order.ID,
		"method", order.PaymentMethod, "total_sats", order.TotalSats)
	return order, nil
}
