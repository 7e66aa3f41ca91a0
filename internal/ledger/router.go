package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daxchui/orderflow/internal/ledger/handler"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// setupRouter configures the ledger admin routes and middleware
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	faultHandler *handler.FaultHandler,
) {
	r.Use(httpapi.Recovery(logger))
	r.Use(httpapi.Logger(logger))
	r.Use(httpapi.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.GET("/:id/entries", accountHandler.GetEntries)
			accounts.GET("/:id/reconciliation", accountHandler.Reconcile)
		}

		// Fault injector controls
		faults := v1.Group("/faults")
		{
			faults.GET("", faultHandler.Get)
			faults.PUT("", faultHandler.Update)
		}
	}

	// Prometheus scrape endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
