// Package handler exposes the shipping service's read-only query surface.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daxchui/orderflow/internal/domain/shipment"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// ShipmentReader is the slice of the delivery service the HTTP surface uses
type ShipmentReader interface {
	GetShipment(ctx context.Context, orderID uuid.UUID) (*shipment.Shipment, error)
}

// ShipmentResponse represents a shipment in API responses
type ShipmentResponse struct {
	OrderID           string `json:"order_id"`
	WarehouseLocation string `json:"warehouse_location"`
	DeliveryAddress   string `json:"delivery_address"`
	State             string `json:"state"`
	Cancelled         bool   `json:"cancelled"`
	CreatedAt         string `json:"created_at"`
	LastUpdateAt      string `json:"last_update_at"`
}

// ShipmentHandler handles HTTP requests for shipment state queries
type ShipmentHandler struct {
	reader ShipmentReader
	logger *slog.Logger
}

func NewShipmentHandler(logger *slog.Logger, reader ShipmentReader) *ShipmentHandler {
	return &ShipmentHandler{
		reader: reader,
		logger: logger,
	}
}

// GetByOrderID retrieves the shipment serving an order
func (h *ShipmentHandler) GetByOrderID(c *gin.Context) {
	idParam := c.Param("orderId")
	orderID, err := uuid.Parse(idParam)
	if err != nil {
		httpapi.RespondBadRequest(c, "Invalid order ID")
		return
	}

	sh, err := h.reader.GetShipment(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, shipment.ErrShipmentNotFound{}) {
			httpapi.RespondNotFound(c, "Shipment not found")
			return
		}
		h.logger.Error("Failed to get shipment", "order_id", idParam, "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondOK(c, ShipmentResponse{
		OrderID:           sh.OrderID.String(),
		WarehouseLocation: sh.WarehouseLocation,
		DeliveryAddress:   sh.DeliveryAddress,
		State:             string(sh.State),
		Cancelled:         sh.Cancelled,
		CreatedAt:         sh.CreatedAt.Format(time.RFC3339),
		LastUpdateAt:      sh.LastUpdateAt.Format(time.RFC3339),
	})
}
