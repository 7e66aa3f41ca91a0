package shipment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the shipment lifecycle as seen by the shipment processor
type State string

const (
	StateRequested State = "REQUESTED"  // accepted, preparation underway
	StateInTransit State = "IN_TRANSIT" // preparation done, package moving
	StateDelivered State = "DELIVERED"  // final
	StateLost      State = "LOST"       // final, simulated carrier loss
	StateCancelled State = "CANCELLED"  // final, cancelled before delivery
)

// Final reports whether the state accepts no further transitions
func (s State) Final() bool {
	switch s {
	case StateDelivered, StateLost, StateCancelled:
		return true
	}
	return false
}

// ErrAlreadyFinal rejects transitions on a finished shipment
var ErrAlreadyFinal = errors.New("shipment already reached a final state")

// Shipment tracks one delivery job, keyed by the order it serves. Cancelled
// is the authoritative cancellation flag: the in-memory hint set only speeds
// up the check, the persisted flag decides.
type Shipment struct {
	OrderID           uuid.UUID `json:"order_id"`
	WarehouseLocation string    `json:"warehouse_location"`
	DeliveryAddress   string    `json:"delivery_address"`
	State             State     `json:"state"`
	Cancelled         bool      `json:"cancelled"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	LastUpdateAt      time.Time `json:"last_update_at"`
}

// New creates a REQUESTED shipment
func New(orderID uuid.UUID, warehouseLocation, deliveryAddress string) *Shipment {
	now := time.Now()
	return &Shipment{
		OrderID:           orderID,
		WarehouseLocation: warehouseLocation,
		DeliveryAddress:   deliveryAddress,
		State:             StateRequested,
		Version:           1,
		CreatedAt:         now,
		LastUpdateAt:      now,
	}
}

// Advance moves the shipment to the next state unless it is already final
func (s *Shipment) Advance(next State) error {
	if s.State.Final() {
		return ErrAlreadyFinal
	}

	s.State = next
	s.Version++
	s.LastUpdateAt = time.Now()
	return nil
}

// Cancel marks the shipment cancelled. Cancellation applies until the
// shipment reaches a final state; a package already in transit is recalled.
func (s *Shipment) Cancel() error {
	if s.State.Final() {
		return ErrAlreadyFinal
	}

	s.Cancelled = true
	s.State = StateCancelled
	s.Version++
	s.LastUpdateAt = time.Now()
	return nil
}
