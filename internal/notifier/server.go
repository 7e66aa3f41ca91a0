// Package notifier assembles the notifier's HTTP surface.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daxchui/orderflow/internal/config"
	"github.com/daxchui/orderflow/internal/domain/notification"
	"github.com/daxchui/orderflow/internal/notifier/handler"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// Server exposes the notification archive for inspection
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures the notifier HTTP server
func NewServer(log *slog.Logger, cfg *config.Config, repo notification.Repository) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()
	httpRouter.Use(httpapi.Recovery(log))
	httpRouter.Use(httpapi.Logger(log))
	httpRouter.Use(httpapi.CorrelationID())

	notificationHandler := handler.NewNotificationHandler(log, repo)

	v1 := httpRouter.Group("/api/v1")
	{
		v1.GET("/orders/:orderId/notifications", notificationHandler.GetByOrderID)
	}

	httpRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
