package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func verifyRouter(v *security.WebhookVerifier) (*gin.Engine, *string) {
	var seenBody string
	r := gin.New()
	r.POST("/hook", WebhookVerify(v, "X-Test-Signature"), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		seenBody = string(b)
		c.Status(http.StatusNoContent)
	})
	return r, &seenBody
}

func postSigned(r *gin.Engine, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Test-Signature", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookVerifyAcceptsValidSignature(t *testing.T) {
	v := security.NewWebhookVerifier("hook-secret")
	r, seen := verifyRouter(v)
	body := `{"id":"swap-1","status":"invoice.paid"}`

	w := postSigned(r, body, v.Sign([]byte(body)))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, body, *seen, "body is restored for the handler after verification")
}

func TestWebhookVerifyRejectsBadSignature(t *testing.T) {
	v := security.NewWebhookVerifier("hook-secret")
	r, _ := verifyRouter(v)
	body := `{"id":"swap-1","status":"invoice.paid"}`

	w := postSigned(r, body, security.NewWebhookVerifier("other").Sign([]byte(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookVerifyRejectsMissingSignature(t *testing.T) {
	v := security.NewWebhookVerifier("hook-secret")
	r, _ := verifyRouter(v)

	w := postSigned(r, `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookVerifyUnconfiguredSecretIsUnavailable(t *testing.T) {
	r, _ := verifyRouter(security.NewWebhookVerifier(""))

	w := postSigned(r, `{}`, "deadbeef")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhookVerifyRejectsTamperedBody(t *testing.T) {
	v := security.NewWebhookVerifier("hook-secret")
	r, _ := verifyRouter(v)

	sig := v.Sign([]byte(`{"id":"swap-1","status":"transaction.mempool"}`))
	w := postSigned(r, `{"id":"swap-1","status":"invoice.paid"}`, sig)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
