package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/warehouse"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// WarehouseRepository implements the warehouse.Repository interface for PostgreSQL
type WarehouseRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWarehouseRepository creates a new PostgreSQL warehouse repository
func NewWarehouseRepository(logger *slog.Logger, db *persistence.PostgresDB) warehouse.Repository {
	return &WarehouseRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *WarehouseRepository) WithTx(tx pgx.Tx) warehouse.Repository {
	return &WarehouseRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID retrieves a warehouse by its ID
func (r *WarehouseRepository) GetByID(ctx context.Context, id uuid.UUID) (*warehouse.Warehouse, error) {
	query := `
		SELECT id, location, created_at
		FROM warehouses
		WHERE id = $1
	`

	var w warehouse.Warehouse
	err := r.querier.QueryRow(ctx, query, id).Scan(&w.ID, &w.Location, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, warehouse.ErrWarehouseNotFound{WarehouseID: id}
		}
		r.logger.Error("Failed to get warehouse", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}

	return &w, nil
}

// GetAll retrieves every warehouse in seed order
func (r *WarehouseRepository) GetAll(ctx context.Context) ([]*warehouse.Warehouse, error) {
	query := `
		SELECT id, location, created_at
		FROM warehouses
		ORDER BY created_at ASC, location ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to get warehouses", "error", err)
		return nil, fmt.Errorf("failed to get warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []*warehouse.Warehouse
	for rows.Next() {
		var w warehouse.Warehouse
		if err := rows.Scan(&w.ID, &w.Location, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		warehouses = append(warehouses, &w)
	}

	return warehouses, rows.Err()
}

// GetStockByProduct returns the product's stock rows across warehouses in a
// stable order so first-fit allocation is deterministic
func (r *WarehouseRepository) GetStockByProduct(ctx context.Context, productID uuid.UUID) ([]*warehouse.Stock, error) {
	query := `
		SELECT s.id, s.warehouse_id, s.product_id, s.quantity, s.version, s.updated_at
		FROM warehouse_stock s
		JOIN warehouses w ON w.id = s.warehouse_id
		WHERE s.product_id = $1
		ORDER BY w.created_at ASC, w.location ASC
	`

	rows, err := r.querier.Query(ctx, query, productID)
	if err != nil {
		r.logger.Error("Failed to get stock by product", "product_id", productID.String(), "error", err)
		return nil, fmt.Errorf("failed to get stock by product: %w", err)
	}
	defer rows.Close()

	var stocks []*warehouse.Stock
	for rows.Next() {
		var s warehouse.Stock
		err := rows.Scan(&s.ID, &s.WarehouseID, &s.ProductID, &s.Quantity, &s.Version, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, &s)
	}

	return stocks, rows.Err()
}

// GetStock retrieves one stock row
func (r *WarehouseRepository) GetStock(ctx context.Context, warehouseID, productID uuid.UUID) (*warehouse.Stock, error) {
	query := `
		SELECT id, warehouse_id, product_id, quantity, version, updated_at
		FROM warehouse_stock
		WHERE warehouse_id = $1 AND product_id = $2
	`

	var s warehouse.Stock
	err := r.querier.QueryRow(ctx, query, warehouseID, productID).Scan(
		&s.ID, &s.WarehouseID, &s.ProductID, &s.Quantity, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, warehouse.ErrStockNotFound{WarehouseID: warehouseID, ProductID: productID}
		}
		r.logger.Error("Failed to get stock", "warehouse_id", warehouseID.String(), "product_id", productID.String(), "error", err)
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	return &s, nil
}

// UpdateStock persists a mutated stock row under its optimistic version
func (r *WarehouseRepository) UpdateStock(ctx context.Context, s *warehouse.Stock) error {
	query := `
		UPDATE warehouse_stock
		SET quantity = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		s.Quantity,
		s.Version,
		s.UpdatedAt,
		s.ID,
		s.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update stock", "id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to update stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return warehouse.ErrConcurrentModification{StockID: s.ID}
	}

	return nil
}
