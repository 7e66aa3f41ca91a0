package warehouse

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientStock = errors.New("insufficient stock across warehouses")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Warehouse is a physical stock location
type Warehouse struct {
	ID        uuid.UUID `json:"id"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Stock is the on-hand quantity of one product at one warehouse. Version
// backs optimistic locking so concurrent orders never double-allocate the
// same units.
type Stock struct {
	ID          uuid.UUID `json:"id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	ProductID   uuid.UUID `json:"product_id"`
	Quantity    int       `json:"quantity"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Take removes up to want units and returns how many were taken
func (s *Stock) Take(want int) (int, error) {
	if want <= 0 {
		return 0, ErrInvalidQuantity
	}
	taken := want
	if taken > s.Quantity {
		taken = s.Quantity
	}

	s.Quantity -= taken
	s.Version++
	s.UpdatedAt = time.Now()
	return taken, nil
}

// Restore puts units back, used by cancellation
func (s *Stock) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.Quantity += quantity
	s.Version++
	s.UpdatedAt = time.Now()
	return nil
}
