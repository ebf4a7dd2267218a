package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type PaymentHandler struct {
	checkout *usecase.Checkout
	resolver *usecase.Resolver
	orders   usecase.OrderRepo
	checker  *provider.Checker
}

func NewPaymentHandler(checkout *usecase.Checkout, resolver *usecase.Resolver,
	orders usecase.OrderRepo, checker *provider.Checker) *PaymentHandler {
	return &PaymentHandler{checkout: checkout, resolver: resolver, orders: orders, checker: checker}
}

type checkoutReq struct {
	Method string `json:"method" binding:"required,oneof=lightning onchain"`
	Items  []struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,gt=0"`
	} `json:"items" binding:"required,min=1"`
}

type checkoutResp struct {
	OrderID      string `json:"orderId"`
	Status       string `json:"status"`
	TotalSats    uint64 `json:"totalSats"`
	PaymentHash  string `json:"paymentHash,omitempty"`
	Invoice      string `json:"paymentRequest,omitempty"`
	CheckoutLink string `json:"checkoutLink,omitempty"`
	Address      string `json:"address,omitempty"`
	URI          string `json:"uri,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

// Checkout handler: translate to use case input
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated requests
	clientID := c.GetString("client_id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	in := usecase.CheckoutInput{
		ClientID:       clientID,
		IdempotencyKey: idemKey,
		PaymentMethod:  domain.PaymentMethod(req.Method),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, usecase.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.checkout.Execute(ctx, in)
	if err != nil {
		status, msg := checkoutError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	resp := checkoutResp{
		OrderID:   order.ID,
		Status:    string(order.Status),
		TotalSats: order.TotalSats,
	}
	if inv := order.Invoice; inv != nil {
		resp.PaymentHash = inv.PaymentHash
		resp.Invoice = inv.PaymentRequest
		resp.CheckoutLink = inv.CheckoutLink
	}
	if oc := order.Onchain; oc != nil {
		resp.Address = oc.Address
		resp.URI = oc.URI
		if !oc.ExpiresAt.IsZero() {
			resp.ExpiresAt = oc.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// checkoutError maps use case failures to responses. Provider detail is
// redacted from buyer-facing messages; the logging middleware already has
// the full error.
func checkoutError(err error) (int, string) {
	var upstream *provider.UpstreamError
	switch {
	case errors.Is(err, usecase.ErrDuplicate):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, usecase.ErrNoStock):
		return http.StatusConflict, "item out of stock"
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound, "unknown product"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrEmptyOrder):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &upstream):
		return http.StatusBadGateway, upstream.Public()
	default:
		return http.StatusInternalServerError, "checkout failed"
	}
}

func (h *PaymentHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	order, err := h.orders.GetByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, orderView(order))
}

// PaymentStatus is the short-poll reconciliation channel: one provider
// round trip, fed through the resolver, canonical status out. Provider
// errors surface here (unlike the sweep, which swallows them) so the client
// knows to retry.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	order, err := h.orders.FindBySettlementID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	// settled orders answer from storage, no provider round trip
	if done, st := settledStatus(order); done {
		c.JSON(http.StatusOK, gin.H{"status": st})
		return
	}

	st, err := h.checker.Check(ctx, order)
	if err != nil {
		logging.From(c).Error("status query failed", "order_id", order.ID, "err", err)
		var upstream *provider.UpstreamError
		if errors.As(err, &upstream) {
			c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Public()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}

	if _, err := h.resolver.Reconcile(ctx, order.SettlementID(), usecase.Observation{
		Status: st.Canonical, Raw: st.Raw, Txid: st.Txid,
	}); err != nil {
		logging.From(c).Error("reconcile failed", "order_id", order.ID, "err", err)
	}

	status := st.Canonical
	if status == domain.PaymentConfirmed && h.checker.SettlesOnConfirm(order.Provider) {
		status = domain.PaymentPaid
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// settledStatus maps a terminal order state to its canonical payment status.
func settledStatus(o *domain.Order) (bool, domain.PaymentStatus) {
	switch o.Status {
	case domain.StatusPaid, domain.StatusPreparation, domain.StatusShipped:
		return true, domain.PaymentPaid
	case domain.StatusFailed:
		return true, domain.PaymentFailed
	default:
		return false, domain.PaymentPending
	}
}

func orderView(o *domain.Order) gin.H {
	view := gin.H{
		"id":           o.ID,
		"clientId":     o.ClientID,
		"status":       o.Status,
		"method":       o.PaymentMethod,
		"provider":     o.Provider,
		"subtotalSats": o.SubtotalSats,
		"shippingSats": o.ShippingSats,
		"totalSats":    o.TotalSats,
		"items":        o.Items,
		"createdAt":    o.CreatedAt.UTC().Format(time.RFC3339),
		"rawStatus":    o.ProviderStatus,
	}
	if inv := o.Invoice; inv != nil {
		view["paymentHash"] = inv.PaymentHash
		view["paymentRequest"] = inv.PaymentRequest
	}
	if oc := o.Onchain; oc != nil {
		view["onchainAddress"] = oc.Address
		view["onchainAmountSats"] = oc.AmountSats
		if oc.SwapID != "" {
			view["swapId"] = oc.SwapID
		}
		if oc.Txid != "" {
			view["onchainTxid"] = oc.Txid
		}
	}
	return view
}
