package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository reads the product and customer catalog. The catalog is seeded by
// migrations and read-only at runtime, so there are no write operations.
type Repository interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetAllProducts(ctx context.Context) ([]*Product, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrProductNotFound indicates missing product
type ErrProductNotFound struct {
	ProductID uuid.UUID
}

func (e ErrProductNotFound) Error() string {
	return "product not found: " + e.ProductID.String()
}

// Is matches any ErrProductNotFound when the target carries a nil ID
func (e ErrProductNotFound) Is(target error) bool {
	t, ok := target.(ErrProductNotFound)
	if !ok {
		return false
	}
	if t.ProductID == uuid.Nil {
		return true
	}
	return e.ProductID == t.ProductID
}

// ErrCustomerNotFound indicates missing customer
type ErrCustomerNotFound struct {
	CustomerID uuid.UUID
}

func (e ErrCustomerNotFound) Error() string {
	return "customer not found: " + e.CustomerID.String()
}

// Is matches any ErrCustomerNotFound when the target carries a nil ID
func (e ErrCustomerNotFound) Is(target error) bool {
	t, ok := target.(ErrCustomerNotFound)
	if !ok {
		return false
	}
	if t.CustomerID == uuid.Nil {
		return true
	}
	return e.CustomerID == t.CustomerID
}
