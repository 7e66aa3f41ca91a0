package store

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daxchui/orderflow/internal/platform/httpapi"
	"github.com/daxchui/orderflow/internal/store/handler"
)

// setupRouter configures the store's order routes and middleware
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	orderHandler *handler.OrderHandler,
) {
	r.Use(httpapi.Recovery(logger))
	r.Use(httpapi.Logger(logger))
	r.Use(httpapi.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Order operations
		orders := v1.Group("/orders")
		{
			orders.POST("", orderHandler.Place)
			orders.GET("/:id", orderHandler.GetByID)
			orders.POST("/:id/cancel", orderHandler.Cancel)
		}

		// Customer views
		customers := v1.Group("/customers")
		{
			customers.GET("/:id/orders/latest", orderHandler.GetLatestByCustomer)
		}
	}

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
