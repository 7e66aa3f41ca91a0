// Package outboxsweep publishes the ledger's outbox events. A single
// dedicated ticker goroutine sweeps unprocessed events oldest first, so no
// two sweeps race on the same event within one process.
package outboxsweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/daxchui/orderflow/internal/domain/outbox"
	"github.com/daxchui/orderflow/internal/metrics"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// Sweeper drains unprocessed outbox events to their topic publishers
type Sweeper struct {
	logger    *slog.Logger
	repo      outbox.Repository
	routes    map[string]producers.MessagePublisher // event type -> publisher
	interval  time.Duration
	batchSize int
}

func NewSweeper(logger *slog.Logger, repo outbox.Repository, routes map[string]producers.MessagePublisher, interval time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		logger:    logger,
		repo:      repo,
		routes:    routes,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs the sweep loop until ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting outbox sweeper", "interval", s.interval.String(), "batch_size", s.batchSize)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping outbox sweeper")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep publishes one batch of unprocessed events. An event is marked
// processed only after a positive publish acknowledgment; on failure the
// attempts counter grows and the event is retried on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	events, err := s.repo.GetUnprocessed(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to fetch unprocessed outbox events", "error", err)
		return
	}

	for _, event := range events {
		publisher, ok := s.routes[event.EventType]
		if !ok {
			// No route is a wiring bug, not a transient failure; park the
			// event as processed so the sweep does not spin on it
			s.logger.Error("No publisher route for outbox event type, skipping",
				"event_id", event.ID,
				"event_type", event.EventType,
			)
			if err := s.repo.MarkProcessed(ctx, event.ID); err != nil {
				s.logger.Error("Failed to park unroutable outbox event", "event_id", event.ID, "error", err)
			}
			continue
		}

		err := publisher.Publish(ctx, event.AggregateID.String(), event.Payload)
		if err != nil {
			metrics.OutboxPublishesTotal.WithLabelValues("failure").Inc()
			s.logger.Warn("Failed to publish outbox event, will retry",
				"event_id", event.ID,
				"event_type", event.EventType,
				"attempts", event.Attempts+1,
				"error", err,
			)
			if incErr := s.repo.IncrementAttempts(ctx, event.ID); incErr != nil {
				s.logger.Error("Failed to increment outbox attempts", "event_id", event.ID, "error", incErr)
			}
			continue
		}
		metrics.OutboxPublishesTotal.WithLabelValues("success").Inc()

		if err := s.repo.MarkProcessed(ctx, event.ID); err != nil {
			// Publish succeeded but the mark failed; the event will be
			// re-published on the next sweep, which consumers tolerate
			s.logger.Error("Failed to mark outbox event processed", "event_id", event.ID, "error", err)
		}
	}
}
