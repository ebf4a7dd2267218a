package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// AdminHandler exposes the fulfilment transitions to the back office. Each
// transition is a guarded update, so a stale console cannot skip a step.
type AdminHandler struct {
	orders usecase.OrderRepo
}

func NewAdminHandler(orders usecase.OrderRepo) *AdminHandler {
	return &AdminHandler{orders: orders}
}

// Preparation moves PAID -> PREPARATION.
func (h *AdminHandler) Preparation(c *gin.Context) {
	h.transition(c, domain.StatusPaid, domain.StatusPreparation)
}

// Ship moves PREPARATION -> SHIPPED.
func (h *AdminHandler) Ship(c *gin.Context) {
	h.transition(c, domain.StatusPreparation, domain.StatusShipped)
}

func (h *AdminHandler) transition(c *gin.Context, from, to domain.OrderStatus) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	ok, err := h.orders.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		logging.From(c).Error("admin transition failed", "order_id", id, "to", to, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		// either unknown id or a state that does not allow this transition
		if _, err := h.orders.GetByID(ctx, id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state for transition"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": to})
}
