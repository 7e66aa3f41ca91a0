// Package consumer handles the ledger's side of the payment request/reply
// exchange.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/account"
	"github.com/daxchui/orderflow/internal/domain/transfer"
	"github.com/daxchui/orderflow/internal/ledger/fault"
	"github.com/daxchui/orderflow/internal/ledger/service"
	"github.com/daxchui/orderflow/internal/metrics"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
	"github.com/daxchui/orderflow/internal/platform/messaging/rpc"
)

// TransferEngine is the slice of the banking service the handler needs
type TransferEngine interface {
	Transfer(ctx context.Context, cmd service.TransferCommand) (*transfer.Transfer, error)
	Refund(ctx context.Context, originalTransferID uuid.UUID, correlationID, idempotencyKey string, orderID uuid.UUID) (*transfer.Transfer, error)
	FindCharge(ctx context.Context, orderID uuid.UUID) (*transfer.Transfer, error)
}

// PaymentHandler consumes PaymentRequest messages, runs the transfer engine
// and replies on the reply topic with the request's correlation id echoed.
// Every request gets a reply, success or not; only a reply-publish failure
// leaves the offset uncommitted for redelivery.
type PaymentHandler struct {
	logger      *slog.Logger
	engine      TransferEngine
	replies     producers.MessagePublisher
	deadLetters producers.DeadLetterPublisher
	pool        *ants.Pool
}

func NewPaymentHandler(logger *slog.Logger, engine TransferEngine, replies producers.MessagePublisher, deadLetters producers.DeadLetterPublisher, poolSize int) (*PaymentHandler, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment handler pool: %w", err)
	}

	return &PaymentHandler{
		logger:      logger,
		engine:      engine,
		replies:     replies,
		deadLetters: deadLetters,
		pool:        pool,
	}, nil
}

// HandleMessage processes one payment request. Requests run on the worker
// pool; the handler blocks until the reply is published so the offset commit
// stays tied to completion.
func (h *PaymentHandler) HandleMessage(ctx context.Context, key []byte, value []byte, headers []kafka.Header) error {
	var request contracts.PaymentRequest
	if err := json.Unmarshal(value, &request); err != nil {
		// Redelivering a malformed request can never succeed: park it so the
		// offset commits with the payload preserved, or drop it when no
		// dead-letter topic is configured
		if h.deadLetters != nil && h.deadLetters.Enabled() {
			return h.deadLetters.Park(ctx, string(key), value, fmt.Sprintf("malformed payment request: %v", err))
		}
		h.logger.Error("Failed to unmarshal payment request, dropping",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	correlationID := headerValue(headers, rpc.CorrelationHeader)
	logger := h.logger
	if correlationID != "" {
		logger = h.logger.With("correlation_id", correlationID)
	}

	logger.Info("Received payment request",
		"order_id", request.OrderID.String(),
		"kind", string(request.Kind),
		"amount", request.Amount,
	)

	resultChan := make(chan error, 1)
	err := h.pool.Submit(func() {
		resultChan <- h.process(ctx, &request, correlationID, logger)
	})
	if err != nil {
		return fmt.Errorf("failed to submit payment request to pool: %w", err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the worker pool
func (h *PaymentHandler) Close() {
	h.pool.Release()
}

func (h *PaymentHandler) process(ctx context.Context, request *contracts.PaymentRequest, correlationID string, logger *slog.Logger) error {
	t, err := h.executeRequest(ctx, request, correlationID)

	response := contracts.PaymentResponse{OrderID: request.OrderID}
	switch {
	case err == nil && t.Status == transfer.StatusSucceeded:
		response.Success = true
		response.TransactionID = t.ID.String()
		response.Message = "settled"
	case err == nil:
		response.Success = false
		response.TransactionID = t.ID.String()
		response.Message = t.FailureReason
	default:
		response.Success = false
		response.Message = failureMessage(err)
		logger.Warn("Payment request failed",
			"order_id", request.OrderID.String(),
			"kind", string(request.Kind),
			"error", err,
		)
	}

	if t != nil {
		metrics.TransfersTotal.WithLabelValues(string(t.Kind), string(t.Status)).Inc()
	}
	if errors.Is(err, fault.ErrInjectedFault) {
		metrics.InjectedFaultsTotal.Inc()
	}

	headers := []kafka.Header{{Key: rpc.CorrelationHeader, Value: []byte(correlationID)}}
	if pubErr := h.replies.PublishWithHeaders(ctx, request.OrderID.String(), response, headers); pubErr != nil {
		return fmt.Errorf("failed to publish payment reply: %w", pubErr)
	}

	return nil
}

func (h *PaymentHandler) executeRequest(ctx context.Context, request *contracts.PaymentRequest, correlationID string) (*transfer.Transfer, error) {
	switch request.Kind {
	case contracts.PaymentKindCharge:
		return h.engine.Transfer(ctx, service.TransferCommand{
			CorrelationID:  correlationID,
			IdempotencyKey: request.IdempotencyKey,
			FromAccountID:  request.CustomerAccountID,
			ToAccountID:    request.StoreAccountID,
			Amount:         request.Amount,
			Kind:           transfer.KindCharge,
			OrderID:        request.OrderID,
		})
	case contracts.PaymentKindRefund:
		original, err := h.engine.FindCharge(ctx, request.OrderID)
		if err != nil {
			return nil, err
		}
		return h.engine.Refund(ctx, original.ID, correlationID, request.IdempotencyKey, request.OrderID)
	default:
		return nil, fmt.Errorf("unknown payment kind %q", request.Kind)
	}
}

// failureMessage keeps wire messages stable for the orchestrator's logging
func failureMessage(err error) string {
	switch {
	case errors.Is(err, fault.ErrInjectedFault):
		return "transient fault, retry"
	case errors.Is(err, account.ErrAccountNotFound{}):
		return "invalid account"
	case errors.Is(err, account.ErrConcurrentModification{}):
		return transfer.ReasonVersionConflict
	case errors.Is(err, service.ErrOriginalNotFound):
		return "original transfer not found"
	case errors.Is(err, service.ErrOriginalNotSucceeded):
		return "original transfer did not succeed"
	default:
		return err.Error()
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
