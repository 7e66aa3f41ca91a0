// Package consumer feeds delivery requests and cancellation broadcasts into
// the shipment simulation.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// Simulator is the slice of the delivery service the handlers use
type Simulator interface {
	StartDelivery(ctx context.Context, request contracts.DeliveryRequest) error
	CancelDelivery(ctx context.Context, orderID uuid.UUID) error
}

// DeliveryHandler consumes DeliveryRequest messages
type DeliveryHandler struct {
	logger      *slog.Logger
	simulator   Simulator
	deadLetters producers.DeadLetterPublisher
}

func NewDeliveryHandler(logger *slog.Logger, simulator Simulator, deadLetters producers.DeadLetterPublisher) *DeliveryHandler {
	return &DeliveryHandler{
		logger:      logger,
		simulator:   simulator,
		deadLetters: deadLetters,
	}
}

// HandleMessage accepts one delivery request. Duplicates are harmless: the
// shipment row's primary key rejects the second insert.
func (h *DeliveryHandler) HandleMessage(ctx context.Context, key []byte, value []byte, _ []kafka.Header) error {
	var request contracts.DeliveryRequest
	if err := json.Unmarshal(value, &request); err != nil {
		if h.deadLetters != nil && h.deadLetters.Enabled() {
			return h.deadLetters.Park(ctx, string(key), value, fmt.Sprintf("malformed delivery request: %v", err))
		}
		h.logger.Error("Failed to unmarshal delivery request, dropping",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	return h.simulator.StartDelivery(ctx, request)
}

// CancelHandler consumes cancellation broadcasts. Each shipping instance runs
// in its own consumer group, so every instance sees every cancellation.
type CancelHandler struct {
	logger      *slog.Logger
	simulator   Simulator
	deadLetters producers.DeadLetterPublisher
}

func NewCancelHandler(logger *slog.Logger, simulator Simulator, deadLetters producers.DeadLetterPublisher) *CancelHandler {
	return &CancelHandler{
		logger:      logger,
		simulator:   simulator,
		deadLetters: deadLetters,
	}
}

// HandleMessage records one cancellation
func (h *CancelHandler) HandleMessage(ctx context.Context, key []byte, value []byte, _ []kafka.Header) error {
	var cancel contracts.CancelOrder
	if err := json.Unmarshal(value, &cancel); err != nil {
		if h.deadLetters != nil && h.deadLetters.Enabled() {
			return h.deadLetters.Park(ctx, string(key), value, fmt.Sprintf("malformed cancellation: %v", err))
		}
		h.logger.Error("Failed to unmarshal cancellation, dropping",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	return h.simulator.CancelDelivery(ctx, cancel.OrderID)
}
