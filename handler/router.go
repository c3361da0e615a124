package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/middleware"
	"github.com/Hizashii/money/pkg/metrics"
	"github.com/Hizashii/money/service"
)

// Deps are the collaborators shared by all routes.
type Deps struct {
	Config  *config.Config
	Store   *service.InvoiceStore
	Decoder service.TextDecoder
	AI      AIExtractor
	Metrics *metrics.Metrics
}

// NewRouter builds the gin engine wrapped in CORS handling for the
// configured front-end origins.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(d.Metrics))
	router.Use(middleware.RequestLogger(d.Metrics))
	router.Use(noCacheAPI())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	invoices := NewInvoiceHandler(d.Store, d.Decoder, d.AI, d.Metrics, cfg.Server.MaxFileBytes())

	api := router.Group("/api")
	if cfg.Auth.Enabled {
		auth := NewAuthHandler(cfg, d.Metrics)
		api.POST("/auth/login", auth.Login)
		api.Use(middleware.AuthMiddleware(&cfg.Auth))
		api.GET("/auth/me", auth.GetCurrentUser)
	}
	api.POST("/extract", invoices.Extract)
	api.POST("/analyze", invoices.Analyze)
	api.GET("/invoices", invoices.List)
	api.DELETE("/invoices", invoices.Clear)
	api.GET("/invoices/excel", invoices.Excel)

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
	}).Handler(router)
}

// noCacheAPI keeps browsers from caching API responses.
func noCacheAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
