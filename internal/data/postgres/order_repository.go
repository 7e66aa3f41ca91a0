package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/order"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// OrderRepository implements the order.Repository interface for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Repository {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *OrderRepository) WithTx(tx pgx.Tx) order.Repository {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new order
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (id, customer_id, product_id, quantity, total_amount, status,
			delivery_address, payment_transaction_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		o.ID,
		o.CustomerID,
		o.ProductID,
		o.Quantity,
		o.TotalAmount,
		o.Status,
		o.DeliveryAddress,
		o.PaymentTransactionID,
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", "id", o.ID.String(), "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID retrieves an order with its allocations
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := selectOrder + ` WHERE id = $1`

	o, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: id}
		}
		r.logger.Error("Failed to get order", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.loadAllocations(ctx, o); err != nil {
		return nil, err
	}

	return o, nil
}

// GetLatestByCustomerID retrieves the customer's most recent order
func (r *OrderRepository) GetLatestByCustomerID(ctx context.Context, customerID uuid.UUID) (*order.Order, error) {
	query := selectOrder + `
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	o, err := r.scanOne(ctx, query, customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{}
		}
		r.logger.Error("Failed to get latest order for customer", "customer_id", customerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest order for customer: %w", err)
	}

	if err := r.loadAllocations(ctx, o); err != nil {
		return nil, err
	}

	return o, nil
}

// Update persists a mutated order under its optimistic version
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders
		SET status = $1, payment_transaction_id = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		o.Status,
		o.PaymentTransactionID,
		o.Version,
		o.UpdatedAt,
		o.ID,
		o.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update order", "id", o.ID.String(), "error", err)
		return fmt.Errorf("failed to update order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrConcurrentModification{OrderID: o.ID}
	}

	return nil
}

// SaveAllocations replaces the order's allocation rows
func (r *OrderRepository) SaveAllocations(ctx context.Context, o *order.Order) error {
	if err := r.DeleteAllocations(ctx, o.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO order_allocations (order_id, warehouse_id, quantity)
		VALUES ($1, $2, $3)
	`

	for _, alloc := range o.Allocations {
		_, err := r.querier.Exec(ctx, query, alloc.OrderID, alloc.WarehouseID, alloc.Quantity)
		if err != nil {
			r.logger.Error("Failed to save order allocation", "order_id", o.ID.String(), "error", err)
			return fmt.Errorf("failed to save order allocation: %w", err)
		}
	}

	return nil
}

// DeleteAllocations removes all allocation rows for an order
func (r *OrderRepository) DeleteAllocations(ctx context.Context, orderID uuid.UUID) error {
	query := `
		DELETE FROM order_allocations
		WHERE order_id = $1
	`

	_, err := r.querier.Exec(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to delete order allocations", "order_id", orderID.String(), "error", err)
		return fmt.Errorf("failed to delete order allocations: %w", err)
	}

	return nil
}

const selectOrder = `
		SELECT id, customer_id, product_id, quantity, total_amount, status,
			delivery_address, payment_transaction_id, version, created_at, updated_at
		FROM orders`

func (r *OrderRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*order.Order, error) {
	var o order.Order
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&o.ID,
		&o.CustomerID,
		&o.ProductID,
		&o.Quantity,
		&o.TotalAmount,
		&o.Status,
		&o.DeliveryAddress,
		&o.PaymentTransactionID,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) loadAllocations(ctx context.Context, o *order.Order) error {
	query := `
		SELECT order_id, warehouse_id, quantity
		FROM order_allocations
		WHERE order_id = $1
	`

	rows, err := r.querier.Query(ctx, query, o.ID)
	if err != nil {
		r.logger.Error("Failed to load order allocations", "order_id", o.ID.String(), "error", err)
		return fmt.Errorf("failed to load order allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var alloc order.Allocation
		if err := rows.Scan(&alloc.OrderID, &alloc.WarehouseID, &alloc.Quantity); err != nil {
			return fmt.Errorf("failed to scan order allocation: %w", err)
		}
		o.Allocations = append(o.Allocations, alloc)
	}

	return rows.Err()
}
