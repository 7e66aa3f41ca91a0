package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/outbox"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Event creation must share
// the transaction of the state change it announces.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new unprocessed outbox event
func (r *OutboxRepository) Create(ctx context.Context, event *outbox.Event) error {
	query := `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.Attempts,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		r.logger.Error("Failed to create outbox event",
			"aggregate_id", event.AggregateID.String(),
			"event_type", event.EventType,
			"error", err,
		)
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	return nil
}

// GetUnprocessed retrieves a batch of unprocessed events in FIFO order
func (r *OutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*outbox.Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, attempts, created_at, processed_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.querier.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to get unprocessed outbox events", "error", err)
		return nil, fmt.Errorf("failed to get unprocessed outbox events: %w", err)
	}
	defer rows.Close()

	var events []*outbox.Event
	for rows.Next() {
		var event outbox.Event
		err := rows.Scan(
			&event.ID,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			&event.Payload,
			&event.Attempts,
			&event.CreatedAt,
			&event.ProcessedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox event", "error", err)
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox events", "error", err)
		return nil, fmt.Errorf("error iterating over outbox events: %w", err)
	}

	return events, nil
}

// MarkProcessed stamps processed_at. Only called after a positive publish
// acknowledgment.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET processed_at = $1
		WHERE id = $2 AND processed_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark outbox event processed", "id", id, "error", err)
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrEventNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts counts a failed publish attempt
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to increment outbox event attempts", "id", id, "error", err)
		return fmt.Errorf("failed to increment outbox event attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrEventNotFound{ID: id}
	}

	return nil
}
