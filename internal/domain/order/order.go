package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrNotCancellable  = errors.New("order can only be cancelled while processing")
	ErrAlreadyFinal    = errors.New("order already reached a terminal state")
	ErrUnknownStatus   = errors.New("unknown order status")
)

// Allocation reserves a quantity of the order's product at one warehouse.
// Allocations are owned by their order: they are destroyed with the order or
// on cancellation's stock-restore step.
type Allocation struct {
	OrderID     uuid.UUID `json:"order_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
}

// Order is the saga's root entity, mutated by the orchestrator alone.
// Version backs optimistic locking so a racing cancellation and delivery
// status update settle into exactly one terminal state.
type Order struct {
	ID                   uuid.UUID    `json:"id"`
	CustomerID           uuid.UUID    `json:"customer_id"`
	ProductID            uuid.UUID    `json:"product_id"`
	Quantity             int          `json:"quantity"`
	TotalAmount          int64        `json:"total_amount"` // minor units
	Status               Status       `json:"status"`
	Allocations          []Allocation `json:"allocations,omitempty"`
	DeliveryAddress      string       `json:"delivery_address"`
	PaymentTransactionID string       `json:"payment_transaction_id,omitempty"`
	Version              int          `json:"version"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// New creates a PENDING order
func New(customerID, productID uuid.UUID, quantity int, totalAmount int64, deliveryAddress string) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	return &Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		ProductID:       productID,
		Quantity:        quantity,
		TotalAmount:     totalAmount,
		Status:          StatusPending,
		DeliveryAddress: deliveryAddress,
		Version:         1,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}, nil
}

// ApplyStatus transitions the order, enforcing the terminal-state guard.
// Callers treat ErrAlreadyFinal as a no-op towards the sender, not a fault.
func (o *Order) ApplyStatus(next Status) error {
	if !next.Valid() {
		return ErrUnknownStatus
	}
	if o.Status.Terminal() {
		return ErrAlreadyFinal
	}

	o.Status = next
	o.UpdatedAt = time.Now()
	o.Version++
	return nil
}

// Cancellable reports whether a cancellation request may proceed
func (o *Order) Cancellable() bool {
	return o.Status == StatusProcessing
}

// AddAllocation records a stock reservation at one warehouse
func (o *Order) AddAllocation(warehouseID uuid.UUID, quantity int) {
	o.Allocations = append(o.Allocations, Allocation{
		OrderID:     o.ID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
	})
}
