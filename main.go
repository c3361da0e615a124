package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hizashii/money/config"
	"github.com/Hizashii/money/handler"
	"github.com/Hizashii/money/pkg/logger"
	"github.com/Hizashii/money/pkg/metrics"
	"github.com/Hizashii/money/service"
)

func main() {
	cfg, err := loadConfig(config.Path())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"gemini_model", cfg.Gemini.Model,
		"ai_key_set", cfg.Gemini.APIKey != "",
		"auth_enabled", cfg.Auth.Enabled,
	)
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		slog.Error("auth.enabled requires auth.jwt_secret")
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Deps{
		Config:  cfg,
		Store:   service.NewInvoiceStore(),
		Decoder: service.NewPDFTextDecoder(),
		AI:      service.NewAIExtractor(&cfg.Gemini),
		Metrics: metrics.New(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout() + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// loadConfig reads path when it exists, otherwise starts from defaults.
// Environment overrides apply either way.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}
