package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MaviLabArt/BoltCanvas-sub001/configs"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

type TokenHandler struct {
	cfg     configs.Config
	clients *security.ClientRegistry
}

func NewTokenHandler(cfg configs.Config, clients *security.ClientRegistry) *TokenHandler {
	return &TokenHandler{cfg: cfg, clients: clients}
}

type tokenReq struct {
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// POST /v1/token (form or JSON)
// Accepts: client_id, client_secret
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBind(&req); err != nil || req.ClientID == "" || req.ClientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := h.clients.Authenticate(req.ClientID, req.ClientSecret)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	ttl := h.cfg.Security.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   h.cfg.Security.Issuer,
		"aud":   h.cfg.Security.Audience,
		"sub":   cl.ID,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"perms": cl.Perms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(ttl.Seconds()),
	})
}
