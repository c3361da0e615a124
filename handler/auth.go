package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/middleware"
	"github.com/Hizashii/money/pkg/logger"
	"github.com/Hizashii/money/pkg/metrics"
)

// AuthHandler issues tokens for the configured users. Every user sees the
// same invoice store; the token only tags logs.
type AuthHandler struct {
	config  *config.Config
	metrics *metrics.Metrics
}

func NewAuthHandler(cfg *config.Config, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{config: cfg, metrics: m}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
}

// Login exchanges configured credentials for a bearer token. Unknown users
// and wrong passwords get the same answer.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.LoginAttempt("invalid_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user := h.config.FindUser(req.Username)
	if user == nil || subtle.ConstantTimeCompare([]byte(user.Password), []byte(req.Password)) != 1 {
		h.metrics.LoginAttempt("rejected")
		logger.Warn(ctx, "login rejected", "username", req.Username, "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user.Username, &h.config.Auth)
	if err != nil {
		logger.Error(ctx, "failed to sign token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	h.metrics.LoginAttempt("ok")
	logger.Info(ctx, "login", "username", user.Username, "expires_at", expiresAt)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Username:  user.Username,
	})
}

// GetCurrentUser echoes the username carried by the bearer token.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": middleware.GetUsername(c),
	})
}
