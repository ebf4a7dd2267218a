package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/observ"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// StreamHandler bridges provider status updates onto a server-sent-events
// response so the checkout page can react without polling.
type StreamHandler struct {
	resolver  *usecase.Resolver
	orders    usecase.OrderRepo
	checker   *provider.Checker
	heartbeat time.Duration
}

func NewStreamHandler(resolver *usecase.Resolver, orders usecase.OrderRepo,
	checker *provider.Checker, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{resolver: resolver, orders: orders, checker: checker, heartbeat: heartbeat}
}

type streamFrame struct {
	Status             domain.PaymentStatus `json:"status"`
	RawStatus          string               `json:"rawStatus,omitempty"`
	OnchainAddress     string               `json:"onchainAddress,omitempty"`
	OnchainAmountSats  uint64               `json:"onchainAmountSats,omitempty"`
	TimeoutBlockHeight int64                `json:"timeoutBlockHeight,omitempty"`
	OnchainTxid        string               `json:"onchainTxid,omitempty"`
}

func (h *StreamHandler) Stream(c *gin.Context) {
	order, err := h.orders.FindBySettlementID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	observ.StreamsOpen.Inc()
	defer observ.StreamsOpen.Dec()

	log := logging.From(c).With("order_id", order.ID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := make(chan provider.Status, 8)

	// initial frame so the client renders immediately
	initial := h.initialFrame(order)
	writeFrame(c, flusher, initial)
	if initial.Status.Terminal() {
		return
	}

	stop, err := h.checker.Subscribe(ctx, order, func(st provider.Status) {
		select {
		case updates <- st:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Error("subscribe failed", "err", err)
		writeFrame(c, flusher, streamFrame{Status: domain.PaymentFailed, RawStatus: "subscribe_failed"})
		return
	}
	defer stop()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	settlementID := order.SettlementID()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// SSE comment keeps intermediaries from closing the socket
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case st := <-updates:
			if _, err := h.resolver.Reconcile(ctx, settlementID, usecase.Observation{
				Status: st.Canonical, Raw: st.Raw, Txid: st.Txid,
			}); err != nil {
				log.Error("reconcile failed", "err", err)
			}

			frame := frameFromStatus(order, st)
			if frame.Status == domain.PaymentConfirmed && h.checker.SettlesOnConfirm(order.Provider) {
				frame.Status = domain.PaymentPaid
			}
			writeFrame(c, flusher, frame)
			if frame.Status.Terminal() {
				return
			}
		}
	}
}

func (h *StreamHandler) initialFrame(o *domain.Order) streamFrame {
	if done, st := settledStatus(o); done {
		return frameFromStatus(o, provider.Status{Canonical: st, Raw: o.ProviderStatus})
	}
	return frameFromStatus(o, provider.Status{Canonical: domain.PaymentPending, Raw: o.ProviderStatus})
}

func frameFromStatus(o *domain.Order, st provider.Status) streamFrame {
	frame := streamFrame{
		Status:             st.Canonical,
		RawStatus:          st.Raw,
		TimeoutBlockHeight: st.TimeoutBlockHeight,
		OnchainTxid:        st.Txid,
	}
	if oc := o.Onchain; oc != nil {
		frame.OnchainAddress = oc.Address
		frame.OnchainAmountSats = oc.AmountSats
		if frame.TimeoutBlockHeight == 0 {
			frame.TimeoutBlockHeight = oc.TimeoutBlockHeight
		}
		if frame.OnchainTxid == "" {
			frame.OnchainTxid = oc.Txid
		}
	}
	return frame
}

func writeFrame(c *gin.Context, flusher http.Flusher, frame streamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: status\ndata: %s\n\n", payload)
	flusher.Flush()
}
