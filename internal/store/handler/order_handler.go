// Package handler exposes the store's order API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daxchui/orderflow/internal/domain/catalog"
	"github.com/daxchui/orderflow/internal/domain/order"
	"github.com/daxchui/orderflow/internal/domain/warehouse"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
	"github.com/daxchui/orderflow/internal/store/service"
)

// OrderAPI is the slice of the order service the HTTP surface uses
type OrderAPI interface {
	PlaceOrder(ctx context.Context, cmd service.PlaceOrderCommand) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetLatestOrder(ctx context.Context, customerID uuid.UUID) (*order.Order, error)
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	service OrderAPI
	logger  *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(logger *slog.Logger, svc OrderAPI) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// Place handles order placement. Business failures (insufficient stock,
// declined payment) come back as a created order in a terminal FAILED state;
// the response status still reports the rejection.
func (h *OrderHandler) Place(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		httpapi.RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customerID, _ := uuid.Parse(req.CustomerID)
	productID, _ := uuid.Parse(req.ProductID)

	ord, err := h.service.PlaceOrder(c.Request.Context(), service.PlaceOrderCommand{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, warehouse.ErrInsufficientStock):
			httpapi.RespondUnprocessable(c, "Insufficient stock for the requested quantity")
		case errors.Is(err, catalog.ErrProductNotFound{}):
			httpapi.RespondNotFound(c, "Product not found")
		case errors.Is(err, catalog.ErrCustomerNotFound{}):
			httpapi.RespondNotFound(c, "Customer not found")
		case errors.Is(err, order.ErrInvalidQuantity):
			httpapi.RespondBadRequest(c, "Quantity must be positive")
		default:
			h.logger.Error("Failed to place order", "error", err)
			httpapi.RespondInternalError(c)
		}
		return
	}

	httpapi.RespondCreated(c, mapOrderToResponse(ord))
}

// Cancel handles cancellation of a PROCESSING order
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := parseOrderID(c, h.logger)
	if !ok {
		return
	}

	ord, err := h.service.CancelOrder(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound{}):
			httpapi.RespondNotFound(c, "Order not found")
		case errors.Is(err, order.ErrNotCancellable):
			httpapi.RespondConflict(c, "Order can only be cancelled while processing")
		case errors.Is(err, service.ErrPaymentRejected):
			httpapi.RespondConflict(c, "Refund was rejected, order not cancelled")
		default:
			h.logger.Error("Failed to cancel order", "order_id", id.String(), "error", err)
			httpapi.RespondInternalError(c)
		}
		return
	}

	httpapi.RespondOK(c, mapOrderToResponse(ord))
}

// GetByID retrieves an order by its ID, returning 404 if not found
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, ok := parseOrderID(c, h.logger)
	if !ok {
		return
	}

	ord, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			httpapi.RespondNotFound(c, "Order not found")
			return
		}
		h.logger.Error("Failed to get order", "order_id", id.String(), "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondOK(c, mapOrderToResponse(ord))
}

// GetLatestByCustomer retrieves a customer's most recent order
func (h *OrderHandler) GetLatestByCustomer(c *gin.Context) {
	idParam := c.Param("id")
	customerID, err := uuid.Parse(idParam)
	if err != nil {
		httpapi.RespondBadRequest(c, "Invalid customer ID")
		return
	}

	ord, err := h.service.GetLatestOrder(c.Request.Context(), customerID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			httpapi.RespondNotFound(c, "No orders for customer")
			return
		}
		h.logger.Error("Failed to get latest order", "customer_id", idParam, "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	httpapi.RespondOK(c, mapOrderToResponse(ord))
}

func parseOrderID(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Error("Invalid order ID", "id", idParam, "error", err)
		httpapi.RespondBadRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

// mapOrderToResponse maps an order entity to an order response DTO
func mapOrderToResponse(ord *order.Order) OrderResponse {
	response := OrderResponse{
		ID:                   ord.ID.String(),
		CustomerID:           ord.CustomerID.String(),
		ProductID:            ord.ProductID.String(),
		Quantity:             ord.Quantity,
		TotalAmount:          ord.TotalAmount,
		Status:               string(ord.Status),
		DeliveryAddress:      ord.DeliveryAddress,
		PaymentTransactionID: ord.PaymentTransactionID,
		CreatedAt:            ord.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            ord.UpdatedAt.Format(time.RFC3339),
	}
	for _, alloc := range ord.Allocations {
		response.Allocations = append(response.Allocations, AllocationResponse{
			WarehouseID: alloc.WarehouseID.String(),
			Quantity:    alloc.Quantity,
		})
	}
	return response
}
