package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaviLabArt/BoltCanvas-sub001/configs"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

func tokenRouter() *gin.Engine {
	var cfg configs.Config
	cfg.Security.JWTSecret = "test-signing-key"
	cfg.Security.Issuer = "boltcanvas"
	cfg.Security.Audience = "boltcanvas-api"
	cfg.Security.TTL = time.Minute

	clients := security.NewClientRegistry(security.Client{
		ID:      "storefront",
		Secret:  "storefront-secret",
		Perms:   []string{"orders.read", "orders.write"},
		Enabled: true,
	})

	r := gin.New()
	r.POST("/v1/token", NewTokenHandler(cfg, clients).IssueToken)
	return r
}

func decodeTokenResp(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestIssueTokenFormCredentials(t *testing.T) {
	r := tokenRouter()

	form := url.Values{"client_id": {"storefront"}, "client_secret": {"storefront-secret"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeTokenResp(t, w)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
}

func TestIssueTokenJSONCredentials(t *testing.T) {
	r := tokenRouter()

	w := doJSONRequest(t, r, http.MethodPost, "/v1/token",
		map[string]string{"client_id": "storefront", "client_secret": "storefront-secret"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeTokenResp(t, w)
	require.NotEmpty(t, body["access_token"])

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(body["access_token"].(string), claims, func(*jwt.Token) (any, error) {
		return []byte("test-signing-key"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "storefront", claims["sub"])
	assert.Contains(t, claims["perms"], "orders.write")
}

func TestIssueTokenRejectsBadSecret(t *testing.T) {
	r := tokenRouter()

	w := doJSONRequest(t, r, http.MethodPost, "/v1/token",
		map[string]string{"client_id": "storefront", "client_secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSONRequest(t, r, http.MethodPost, "/v1/token", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
