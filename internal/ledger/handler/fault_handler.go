package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/daxchui/orderflow/internal/ledger/fault"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// FaultHandler exposes the fault injector over HTTP so chaos runs can be
// switched on without a restart
type FaultHandler struct {
	injector *fault.Injector
	logger   *slog.Logger
}

// NewFaultHandler creates a new fault handler
func NewFaultHandler(logger *slog.Logger, injector *fault.Injector) *FaultHandler {
	return &FaultHandler{
		injector: injector,
		logger:   logger,
	}
}

// Get reports the injector's current settings
func (h *FaultHandler) Get(c *gin.Context) {
	httpapi.RespondOK(c, FaultConfigResponse{
		Enabled:     h.injector.Enabled(),
		Probability: h.injector.Probability(),
	})
}

// Update replaces the injector's settings
func (h *FaultHandler) Update(c *gin.Context) {
	var req FaultConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	h.injector.SetProbability(req.Probability)
	h.injector.SetEnabled(req.Enabled)

	h.logger.Info("Fault injector updated",
		"enabled", req.Enabled,
		"probability", req.Probability,
	)

	httpapi.RespondOK(c, FaultConfigResponse{
		Enabled:     h.injector.Enabled(),
		Probability: h.injector.Probability(),
	})
}
