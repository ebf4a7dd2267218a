package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

// WebhookVerify authenticates a provider webhook before its payload is
// trusted: the hex HMAC-SHA256 of the raw body under the shared secret must
// arrive in sigHeader. Comparison is constant-time inside the verifier. The
// body is restored for the handler.
func WebhookVerify(v *security.WebhookVerifier, sigHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Configured() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook secret not configured"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 64*1024))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sig := c.GetHeader(sigHeader)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			return
		}
		if err := v.Verify(body, sig); err != nil {
			logging.From(c).Warn("webhook signature rejected", "header", sigHeader)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Next()
	}
}
