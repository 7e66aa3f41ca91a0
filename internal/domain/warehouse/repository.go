package warehouse

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages warehouses and per-warehouse stock. GetStockByProduct
// returns rows in a stable warehouse order so allocation walks warehouses
// deterministically (first-fit).
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	GetAll(ctx context.Context) ([]*Warehouse, error)

	GetStockByProduct(ctx context.Context, productID uuid.UUID) ([]*Stock, error)
	GetStock(ctx context.Context, warehouseID, productID uuid.UUID) (*Stock, error)

	// UpdateStock persists a mutated stock row with an optimistic version
	// check
	UpdateStock(ctx context.Context, stock *Stock) error

	WithTx(tx pgx.Tx) Repository
}

// ErrWarehouseNotFound indicates missing warehouse
type ErrWarehouseNotFound struct {
	WarehouseID uuid.UUID
}

func (e ErrWarehouseNotFound) Error() string {
	return "warehouse not found: " + e.WarehouseID.String()
}

// Is matches any ErrWarehouseNotFound when the target carries a nil ID
func (e ErrWarehouseNotFound) Is(target error) bool {
	t, ok := target.(ErrWarehouseNotFound)
	if !ok {
		return false
	}
	if t.WarehouseID == uuid.Nil {
		return true
	}
	return e.WarehouseID == t.WarehouseID
}

// ErrStockNotFound indicates no stock row for the product at the warehouse
type ErrStockNotFound struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
}

func (e ErrStockNotFound) Error() string {
	return "stock not found for product " + e.ProductID.String() + " at warehouse " + e.WarehouseID.String()
}

// ErrConcurrentModification indicates optimistic lock failure on a stock row
type ErrConcurrentModification struct {
	StockID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for stock: " + e.StockID.String()
}

// Is matches any ErrConcurrentModification when the target carries a nil ID
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.StockID == uuid.Nil {
		return true
	}
	return e.StockID == t.StockID
}
