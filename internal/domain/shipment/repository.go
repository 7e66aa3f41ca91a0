package shipment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists shipment jobs. Update carries an optimistic version
// check so a worker advancing a shipment and a cancellation handler flagging
// it never overwrite each other blindly.
type Repository interface {
	Create(ctx context.Context, shipment *Shipment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipment, error)
	Update(ctx context.Context, shipment *Shipment) error

	// MarkCancelled sets the cancelled flag without touching the state
	// machine; workers consult it between stages
	MarkCancelled(ctx context.Context, orderID uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}

// ErrShipmentNotFound indicates missing shipment
type ErrShipmentNotFound struct {
	OrderID uuid.UUID
}

func (e ErrShipmentNotFound) Error() string {
	return "shipment not found for order: " + e.OrderID.String()
}

// Is matches any ErrShipmentNotFound when the target carries a nil ID
func (e ErrShipmentNotFound) Is(target error) bool {
	t, ok := target.(ErrShipmentNotFound)
	if !ok {
		return false
	}
	if t.OrderID == uuid.Nil {
		return true
	}
	return e.OrderID == t.OrderID
}

// ErrConcurrentModification indicates optimistic lock failure on the shipment
type ErrConcurrentModification struct {
	OrderID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for shipment: " + e.OrderID.String()
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
