// Package consumer folds shipment status reports into the order state
// machine.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/order"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// StatusApplier is the slice of the order service this handler uses
type StatusApplier interface {
	ApplyDeliveryStatus(ctx context.Context, orderID uuid.UUID, state contracts.DeliveryState) error
}

// StatusHandler consumes DeliveryStatus messages. A handler error leaves the
// offset uncommitted so the message is redelivered; terminal-order reports
// and unknown orders are dropped, since redelivering them can never succeed.
type StatusHandler struct {
	logger      *slog.Logger
	applier     StatusApplier
	deadLetters producers.DeadLetterPublisher
}

func NewStatusHandler(logger *slog.Logger, applier StatusApplier, deadLetters producers.DeadLetterPublisher) *StatusHandler {
	return &StatusHandler{
		logger:      logger,
		applier:     applier,
		deadLetters: deadLetters,
	}
}

// HandleMessage processes one delivery status report
func (h *StatusHandler) HandleMessage(ctx context.Context, key []byte, value []byte, _ []kafka.Header) error {
	var status contracts.DeliveryStatus
	if err := json.Unmarshal(value, &status); err != nil {
		// A malformed report never parses on redelivery; park it so the
		// offset commits with the payload preserved
		if h.deadLetters != nil && h.deadLetters.Enabled() {
			return h.deadLetters.Park(ctx, string(key), value, fmt.Sprintf("malformed delivery status: %v", err))
		}
		h.logger.Error("Failed to unmarshal delivery status, dropping",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	h.logger.Info("Received delivery status",
		"order_id", status.OrderID.String(),
		"state", string(status.State),
		"note", status.Note,
	)

	err := h.applier.ApplyDeliveryStatus(ctx, status.OrderID, status.State)
	if err == nil {
		return nil
	}

	if errors.Is(err, order.ErrOrderNotFound{}) {
		h.logger.Warn("Delivery status for unknown order, dropping",
			"order_id", status.OrderID.String(),
		)
		return nil
	}

	// Version conflicts and infrastructure errors are retried via redelivery
	h.logger.Error("Failed to apply delivery status, message will be redelivered",
		"order_id", status.OrderID.String(),
		"error", err,
	)
	return err
}
