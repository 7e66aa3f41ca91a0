package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/shipment"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// ShipmentRepository implements the shipment.Repository interface for PostgreSQL
type ShipmentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewShipmentRepository creates a new PostgreSQL shipment repository
func NewShipmentRepository(logger *slog.Logger, db *persistence.PostgresDB) shipment.Repository {
	return &ShipmentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *ShipmentRepository) WithTx(tx pgx.Tx) shipment.Repository {
	return &ShipmentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new shipment. Re-delivered requests hit the primary key on
// order_id and fail; the caller treats that as a duplicate and skips.
func (r *ShipmentRepository) Create(ctx context.Context, s *shipment.Shipment) error {
	query := `
		INSERT INTO shipments (order_id, warehouse_location, delivery_address, state,
			cancelled, version, created_at, last_update_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		s.OrderID,
		s.WarehouseLocation,
		s.DeliveryAddress,
		s.State,
		s.Cancelled,
		s.Version,
		s.CreatedAt,
		s.LastUpdateAt,
	)
	if err != nil {
		r.logger.Error("Failed to create shipment", "order_id", s.OrderID.String(), "error", err)
		return fmt.Errorf("failed to create shipment: %w", err)
	}

	return nil
}

// GetByOrderID retrieves the shipment for an order
func (r *ShipmentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*shipment.Shipment, error) {
	query := `
		SELECT order_id, warehouse_location, delivery_address, state, cancelled,
			version, created_at, last_update_at
		FROM shipments
		WHERE order_id = $1
	`

	var s shipment.Shipment
	err := r.querier.QueryRow(ctx, query, orderID).Scan(
		&s.OrderID,
		&s.WarehouseLocation,
		&s.DeliveryAddress,
		&s.State,
		&s.Cancelled,
		&s.Version,
		&s.CreatedAt,
		&s.LastUpdateAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipment.ErrShipmentNotFound{OrderID: orderID}
		}
		r.logger.Error("Failed to get shipment", "order_id", orderID.String(), "error", err)
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}

	return &s, nil
}

// Update persists a mutated shipment under its optimistic version. The
// cancelled flag is deliberately absent from the SET list: it is owned by
// MarkCancelled, and a worker writing back a stale in-memory copy must not be
// able to clear it.
func (r *ShipmentRepository) Update(ctx context.Context, s *shipment.Shipment) error {
	query := `
		UPDATE shipments
		SET state = $1, version = $2, last_update_at = $3
		WHERE order_id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		s.State,
		s.Version,
		s.LastUpdateAt,
		s.OrderID,
		s.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update shipment", "order_id", s.OrderID.String(), "error", err)
		return fmt.Errorf("failed to update shipment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shipment.ErrConcurrentModification{OrderID: s.OrderID}
	}

	return nil
}

// MarkCancelled sets the cancelled flag regardless of version. Workers read
// the flag between stages; the state machine settles separately. Bumping the
// version here invalidates any version-guarded Update a worker prepared from
// a pre-cancellation read, so the worker observes the conflict instead of
// advancing past the cancellation.
func (r *ShipmentRepository) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE shipments
		SET cancelled = TRUE, version = version + 1, last_update_at = NOW()
		WHERE order_id = $1
	`

	result, err := r.querier.Exec(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to mark shipment cancelled", "order_id", orderID.String(), "error", err)
		return fmt.Errorf("failed to mark shipment cancelled: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shipment.ErrShipmentNotFound{OrderID: orderID}
	}

	return nil
}
