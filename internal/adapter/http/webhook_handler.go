package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// WebhookHandler receives push callbacks from payment backends. Receivers are
// idempotent: replays reconcile to the same state and still answer 2xx so the
// sender stops retrying.
type WebhookHandler struct {
	resolver *usecase.Resolver
}

func NewWebhookHandler(resolver *usecase.Resolver) *WebhookHandler {
	return &WebhookHandler{resolver: resolver}
}

type openNodeEvent struct {
	ID      string `json:"id" form:"id"`
	OrderID string `json:"order_id" form:"order_id"`
	Status  string `json:"status" form:"status"`
	Txid    string `json:"transactions,omitempty" form:"txid"`
}

func (h *WebhookHandler) OpenNode(c *gin.Context) {
	var ev openNodeEvent
	if err := c.ShouldBind(&ev); err != nil || ev.ID == "" || ev.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	obs := usecase.Observation{
		Status: provider.NormalizeOpenNode(ev.Status),
		Raw:    ev.Status,
		Txid:   ev.Txid,
	}
	if _, err := h.resolver.Reconcile(ctx, ev.ID, obs); err != nil {
		logging.From(c).Error("opennode webhook reconcile failed", "charge_id", ev.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type boltzEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Txid   string `json:"transaction_id,omitempty"`
}

func (h *WebhookHandler) Boltz(c *gin.Context) {
	var ev boltzEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.ID == "" || ev.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	obs := usecase.Observation{
		Status: provider.NormalizeBoltz(ev.Status),
		Raw:    ev.Status,
		Txid:   ev.Txid,
	}
	if _, err := h.resolver.Reconcile(ctx, ev.ID, obs); err != nil {
		logging.From(c).Error("boltz webhook reconcile failed", "swap_id", ev.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
