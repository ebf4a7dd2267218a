package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	StatusPending     OrderStatus = "PENDING"
	StatusPaid        OrderStatus = "PAID"
	StatusPreparation OrderStatus = "PREPARATION"
	StatusShipped     OrderStatus = "SHIPPED"
	StatusFailed      OrderStatus = "FAILED"
)

type PaymentMethod string

const (
	MethodLightning PaymentMethod = "lightning"
	MethodOnchain   PaymentMethod = "onchain"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyOrder    = errors.New("order has no items")
)

type LineItem struct {
	ProductID string
	Title     string
	Quantity  int
	PriceSats uint64
}

// Invoice is the Lightning payment request issued for an order. Immutable
// once created.
type Invoice struct {
	PaymentRequest string
	PaymentHash    string
	Satoshis       uint64
	CheckoutLink   string
}

// OnchainPayment carries on-chain settlement detail. SwapID is set only for
// the submarine-swap strategy; once present it is the canonical external key
// for this order, not the payment hash.
type OnchainPayment struct {
	SwapID             string
	Address            string
	AmountSats         uint64
	URI                string
	TimeoutBlockHeight int64
	ExpiresAt          time.Time
	Txid               string
}

type Order struct {
	ID       string
	ClientID string

	Items        []LineItem
	SubtotalSats uint64
	ShippingSats uint64
	TotalSats    uint64

	PaymentMethod PaymentMethod
	Status        OrderStatus

	// Provider is the registry key of the backend that issued the payment
	// request; ProviderStatus mirrors the last raw status it reported.
	Provider       string
	ProviderStatus string

	Invoice *Invoice
	Onchain *OnchainPayment

	CreatedAt time.Time
}

// SettlementID returns the external identifier used to resolve this order's
// payment status: swap id first, then payment hash, then the order id itself.
func (o *Order) SettlementID() string {
	if o.Onchain != nil && o.Onchain.SwapID != "" {
		return o.Onchain.SwapID
	}
	if o.Invoice != nil && o.Invoice.PaymentHash != "" {
		return o.Invoice.PaymentHash
	}
	return o.ID
}

func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	if o.TotalSats == 0 {
		return ErrInvalidAmount
	}
	return nil
}
