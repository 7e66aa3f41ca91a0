// Package contracts defines the wire-level message types exchanged between
// the store, ledger, shipping and notifier services. All messages are JSON
// encoded; the channel provides at-least-once delivery, so every consumer
// must tolerate duplicates.
package contracts

import "github.com/google/uuid"

// PaymentKind distinguishes the two money movements the store requests
type PaymentKind string

const (
	PaymentKindCharge PaymentKind = "CHARGE"
	PaymentKindRefund PaymentKind = "REFUND"
)

// PaymentRequest asks the ledger to move money for an order. Delivered via
// the correlated request/reply channel, bounded by the RPC timeout.
// IdempotencyKey is deterministic per order and kind so a retried request
// returns the original result instead of moving money twice.
type PaymentRequest struct {
	OrderID           uuid.UUID   `json:"order_id"`
	StoreAccountID    uuid.UUID   `json:"store_account_id"`
	CustomerAccountID uuid.UUID   `json:"customer_account_id"`
	Amount            int64       `json:"amount"` // minor units
	Kind              PaymentKind `json:"kind"`
	IdempotencyKey    string      `json:"idempotency_key"`
}

// PaymentResponse is the ledger's reply. Success false covers both business
// failures (insufficient funds) and transient ones (injected fault); the
// message carries the reason.
type PaymentResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	Success       bool      `json:"success"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Message       string    `json:"message"`
}

// DeliveryRequest asks the shipment processor to start a delivery.
// Fire-and-forget; the store only sends it after the order's PROCESSING
// transition has committed.
type DeliveryRequest struct {
	OrderID           uuid.UUID `json:"order_id"`
	WarehouseLocation string    `json:"warehouse_location"`
	DeliveryAddress   string    `json:"delivery_address"`
}

// DeliveryState enumerates the shipment states the processor reports
type DeliveryState string

const (
	DeliveryStateRequested DeliveryState = "REQUESTED"
	DeliveryStateInTransit DeliveryState = "IN_TRANSIT"
	DeliveryStateDelivered DeliveryState = "DELIVERED"
	DeliveryStateLost      DeliveryState = "LOST"
)

// DeliveryStatus reports a shipment state change back to the store.
// Republishing or duplicate delivery is harmless: the store only accepts the
// first transition into a terminal order state.
type DeliveryStatus struct {
	OrderID uuid.UUID     `json:"order_id"`
	State   DeliveryState `json:"state"`
	Note    string        `json:"note,omitempty"`
}

// CancelOrder is broadcast by the store so any in-flight shipment aborts
type CancelOrder struct {
	OrderID uuid.UUID `json:"order_id"`
}

// Notification is a fire-and-forget message to the notifier. Its content is
// outside the consistency model.
type Notification struct {
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
}
