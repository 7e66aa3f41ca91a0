// Package handler exposes the notifier's archive query surface.
package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/daxchui/orderflow/internal/domain/notification"
	"github.com/daxchui/orderflow/internal/platform/httpapi"
)

// NotificationResponse represents an archived notification in API responses
type NotificationResponse struct {
	ID        string  `json:"id"`
	Recipient string  `json:"recipient"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
	OrderID   *string `json:"order_id,omitempty"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	SentAt    *string `json:"sent_at,omitempty"`
}

// NotificationHandler handles HTTP requests against the notification archive
type NotificationHandler struct {
	repo   notification.Repository
	logger *slog.Logger
}

func NewNotificationHandler(logger *slog.Logger, repo notification.Repository) *NotificationHandler {
	return &NotificationHandler{
		repo:   repo,
		logger: logger,
	}
}

// GetByOrderID lists every archived notification for one order
func (h *NotificationHandler) GetByOrderID(c *gin.Context) {
	idParam := c.Param("orderId")
	orderID, err := uuid.Parse(idParam)
	if err != nil {
		httpapi.RespondBadRequest(c, "Invalid order ID")
		return
	}

	archived, err := h.repo.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("Failed to list notifications", "order_id", idParam, "error", err)
		httpapi.RespondInternalError(c)
		return
	}

	responses := make([]NotificationResponse, 0, len(archived))
	for _, n := range archived {
		responses = append(responses, mapNotificationToResponse(n))
	}

	httpapi.RespondOK(c, responses)
}

func mapNotificationToResponse(n *notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Body:      n.Body,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.OrderID != nil {
		id := n.OrderID.String()
		resp.OrderID = &id
	}
	if n.SentAt != nil {
		sentAt := n.SentAt.Format(time.RFC3339)
		resp.SentAt = &sentAt
	}
	return resp
}
