package provider

import (
	"context"
	"fmt"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// Gateway binds the registry to the two configured rails and adapts the
// adapter result types to the order's payment artifacts.
type Gateway struct {
	registry      *Registry
	lightningName string
	onchainName   string
	invoiceExpiry time.Duration
}

func NewGateway(registry *Registry, lightningName, onchainName string, invoiceExpiry time.Duration) *Gateway {
	return &Gateway{
		registry:      registry,
		lightningName: lightningName,
		onchainName:   onchainName,
		invoiceExpiry: invoiceExpiry,
	}
}

func (g *Gateway) CreateLightning(ctx context.Context, amountSats uint64, memo string) (*domain.Invoice, string, error) {
	a, err := g.registry.Get(g.lightningName)
	if err != nil {
		return nil, "", err
	}
	issuer, ok := a.(InvoiceIssuer)
	if !ok {
		return nil, "", fmt.Errorf("provider %q cannot issue lightning invoices: %w", a.Name(), ErrConfiguration)
	}
	res, err := issuer.CreateInvoice(ctx, amountSats, memo, g.invoiceExpiry)
	if err != nil {
		return nil, "", err
	}
	return &domain.Invoice{
		PaymentRequest: res.PaymentRequest,
		PaymentHash:    res.PaymentHash,
		Satoshis:       res.Satoshis,
		CheckoutLink:   res.CheckoutLink,
	}, a.Name(), nil
}

func (g *Gateway) CreateOnchain(ctx context.Context, orderID string, amountSats uint64, memo string) (*domain.OnchainPayment, string, error) {
	a, err := g.registry.Get(g.onchainName)
	if err != nil {
		return nil, "", err
	}
	issuer, ok := a.(OnchainIssuer)
	if !ok {
		return nil, "", fmt.Errorf("provider %q cannot issue onchain payments: %w", a.Name(), ErrConfiguration)
	}
	res, err := issuer.CreateOnchainPayment(ctx, orderID, amountSats, memo)
	if err != nil {
		return nil, "", err
	}
	return &domain.OnchainPayment{
		SwapID:             res.SwapID,
		Address:            res.Address,
		AmountSats:         res.AmountSats,
		URI:                res.URI,
		TimeoutBlockHeight: res.TimeoutBlockHeight,
		ExpiresAt:          res.ExpiresAt,
	}, a.Name(), nil
}

var _ usecase.PaymentGateway = (*Gateway)(nil)
