package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

func webhookRouter(orders *stubOrderRepo) *gin.Engine {
	resolver := usecase.NewResolver(orders, stubProducts{}, nil, nil, nil, nil)
	h := NewWebhookHandler(resolver)

	r := gin.New()
	r.POST("/webhooks/opennode", h.OpenNode)
	r.POST("/webhooks/boltz", h.Boltz)
	return r
}

func TestOpenNodeWebhookSettlesOrder(t *testing.T) {
	order := paidLightningOrder("ord-1", domain.StatusPending)
	order.Invoice = nil
	order.Onchain = &domain.OnchainPayment{SwapID: "charge-1"}
	orders := newStubOrderRepo(order)
	r := webhookRouter(orders)

	w := doJSONRequest(t, r, http.MethodPost, "/webhooks/opennode",
		map[string]string{"id": "charge-1", "status": "paid"})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, domain.StatusPaid, orders.status("ord-1"))

	// replay stays 2xx and changes nothing
	w = doJSONRequest(t, r, http.MethodPost, "/webhooks/opennode",
		map[string]string{"id": "charge-1", "status": "paid"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, domain.StatusPaid, orders.status("ord-1"))
}

func TestOpenNodeWebhookUnknownChargeStillAccepted(t *testing.T) {
	r := webhookRouter(newStubOrderRepo())

	w := doJSONRequest(t, r, http.MethodPost, "/webhooks/opennode",
		map[string]string{"id": "never-issued", "status": "paid"})
	assert.Equal(t, http.StatusNoContent, w.Code, "unknown identifiers are a no-op, not an error")
}

func TestOpenNodeWebhookRejectsBadPayload(t *testing.T) {
	r := webhookRouter(newStubOrderRepo())

	w := doJSONRequest(t, r, http.MethodPost, "/webhooks/opennode", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoltzWebhookExpiryRemovesOrder(t *testing.T) {
	order := paidLightningOrder("ord-2", domain.StatusPending)
	order.Invoice = nil
	order.Onchain = &domain.OnchainPayment{SwapID: "swap-2"}
	orders := newStubOrderRepo(order)
	r := webhookRouter(orders)

	w := doJSONRequest(t, r, http.MethodPost, "/webhooks/boltz",
		map[string]string{"id": "swap-2", "status": "swap.expired"})
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err := orders.GetByID(context.Background(), "ord-2")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestBoltzWebhookIntermediateStateRecorded(t *testing.T) {
	order := paidLightningOrder("ord-3", domain.StatusPending)
	order.Invoice = nil
	order.Onchain = &domain.OnchainPayment{SwapID: "swap-3"}
	orders := newStubOrderRepo(order)
	r := webhookRouter(orders)

	w := doJSONRequest(t, r, http.MethodPost, "/webhooks/boltz",
		map[string]string{"id": "swap-3", "status": "transaction.mempool", "transaction_id": "tx-abc"})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, domain.StatusPending, orders.status("ord-3"))

	got, err := orders.GetByID(context.Background(), "ord-3")
	require.NoError(t, err)
	assert.Equal(t, "transaction.mempool", got.ProviderStatus)
}
