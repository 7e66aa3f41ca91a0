// Package consumer archives incoming notifications before any send attempt.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/notification"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// ArchiveHandler consumes Notification messages and stores them PENDING. A
// save failure leaves the offset uncommitted for redelivery; the archive is
// duplicate-tolerant because the send loop only emails what it finds.
type ArchiveHandler struct {
	logger      *slog.Logger
	repo        notification.Repository
	deadLetters producers.DeadLetterPublisher
}

func NewArchiveHandler(logger *slog.Logger, repo notification.Repository, deadLetters producers.DeadLetterPublisher) *ArchiveHandler {
	return &ArchiveHandler{
		logger:      logger,
		repo:        repo,
		deadLetters: deadLetters,
	}
}

// HandleMessage archives one notification
func (h *ArchiveHandler) HandleMessage(ctx context.Context, key []byte, value []byte, _ []kafka.Header) error {
	var message contracts.Notification
	if err := json.Unmarshal(value, &message); err != nil {
		if h.deadLetters != nil && h.deadLetters.Enabled() {
			return h.deadLetters.Park(ctx, string(key), value, fmt.Sprintf("malformed notification: %v", err))
		}
		h.logger.Error("Failed to unmarshal notification, dropping",
			"error", err,
			"message_key", string(key),
		)
		return nil
	}

	n := notification.New(message.Recipient, message.Subject, message.Body, message.OrderID)
	if err := h.repo.Save(ctx, n); err != nil {
		h.logger.Error("Failed to archive notification, message will be redelivered",
			"recipient", message.Recipient,
			"error", err,
		)
		return err
	}

	h.logger.Info("Notification archived",
		"notification_id", n.ID,
		"recipient", n.Recipient,
		"subject", n.Subject,
	)
	return nil
}
