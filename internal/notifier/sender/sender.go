// Package sender drains the PENDING notification archive on a schedule.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daxchui/orderflow/internal/domain/notification"
	"github.com/daxchui/orderflow/internal/metrics"
)

// Sender periodically picks up PENDING notifications oldest first and hands
// them to the mail transport. One recurring task per process, so no two
// sends race on the same notification.
type Sender struct {
	logger    *slog.Logger
	repo      notification.Repository
	interval  time.Duration
	batchSize int
	cron      *cron.Cron
}

func NewSender(logger *slog.Logger, repo notification.Repository, interval time.Duration, batchSize int) *Sender {
	return &Sender{
		logger:    logger,
		repo:      repo,
		interval:  interval,
		batchSize: batchSize,
		cron:      cron.New(),
	}
}

// Start schedules the send loop
func (s *Sender) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.SendPending(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule notification send loop: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Notification send loop started",
		"interval", s.interval,
		"batch_size", s.batchSize,
	)
	return nil
}

// Stop halts the schedule and waits for a running send to finish
func (s *Sender) Stop() {
	<-s.cron.Stop().Done()
}

// SendPending drains one batch. A failed send leaves the notification
// PENDING; the next run picks it up again.
func (s *Sender) SendPending(ctx context.Context) {
	pending, err := s.repo.GetPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to fetch pending notifications", "error", err)
		return
	}

	for _, n := range pending {
		if err := s.deliver(n); err != nil {
			s.logger.Error("Failed to deliver notification",
				"notification_id", n.ID,
				"error", err,
			)
			continue
		}

		if err := s.repo.MarkSent(ctx, n.ID); err != nil {
			// The next run re-delivers; recipients tolerate the duplicate
			s.logger.Error("Failed to mark notification sent",
				"notification_id", n.ID,
				"error", err,
			)
			continue
		}
		metrics.NotificationsSentTotal.Inc()
	}
}

// deliver stands in for the mail transport; the wire-out side is outside the
// consistency model
func (s *Sender) deliver(n *notification.Notification) error {
	s.logger.Info("Sending notification",
		"notification_id", n.ID,
		"recipient", n.Recipient,
		"subject", n.Subject,
	)
	return nil
}
