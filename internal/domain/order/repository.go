package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages order persistence. Update enforces the optimistic
// version check; a losing writer gets ErrConcurrentModification and must
// re-read or surface the conflict.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetLatestByCustomerID(ctx context.Context, customerID uuid.UUID) (*Order, error)
	Update(ctx context.Context, order *Order) error

	// SaveAllocations replaces the order's allocation rows
	SaveAllocations(ctx context.Context, order *Order) error

	// DeleteAllocations removes allocation rows, used by the cancellation
	// stock-restore step
	DeleteAllocations(ctx context.Context, orderID uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}

// ErrOrderNotFound indicates missing order
type ErrOrderNotFound struct {
	OrderID uuid.UUID
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID.String()
}

// Is matches any ErrOrderNotFound when the target carries a nil ID
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OrderID == uuid.Nil {
		return true
	}
	return e.OrderID == t.OrderID
}

// ErrConcurrentModification indicates optimistic lock failure on the order row
type ErrConcurrentModification struct {
	OrderID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for order: " + e.OrderID.String()
}

// Is matches any ErrConcurrentModification when the target carries a nil ID
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.OrderID == uuid.Nil {
		return true
	}
	return e.OrderID == t.OrderID
}
