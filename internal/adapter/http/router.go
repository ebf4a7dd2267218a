package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/http/middleware"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

type Handlers struct {
	Payment *PaymentHandler
	Stream  *StreamHandler
	Webhook *WebhookHandler
	Admin   *AdminHandler
	Token   *TokenHandler
}

type WebhookVerifiers struct {
	OpenNode *security.WebhookVerifier
	Boltz    *security.WebhookVerifier
}

func NewRouter(h Handlers, authz *middleware.Authz, wv WebhookVerifiers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", h.Token.IssueToken)

	// push callbacks authenticate with HMAC signatures, not bearer tokens
	hooks := r.Group("/webhooks")
	{
		hooks.POST("/opennode", middleware.WebhookVerify(wv.OpenNode, "OpenNode-Signature"), h.Webhook.OpenNode)
		hooks.POST("/boltz", middleware.WebhookVerify(wv.Boltz, "X-Boltz-Signature"), h.Webhook.Boltz)
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/checkout", authz.Require("orders.write"), h.Payment.Checkout)
		v1.GET("/orders/:id", authz.Require("orders.read"), h.Payment.GetOrder)

		// the buyer's checkout page holds no credentials; identifiers are
		// unguessable payment hashes / swap ids
		v1.GET("/payments/:id/status", h.Payment.PaymentStatus)
		v1.GET("/payments/:id/stream", h.Stream.Stream)

		admin := v1.Group("/admin", authz.Require("orders.admin"))
		{
			admin.POST("/orders/:id/preparation", h.Admin.Preparation)
			admin.POST("/orders/:id/ship", h.Admin.Ship)
		}
	}

	return r
}
