package order

// Status is the order lifecycle state. Terminal states are immutable: once an
// order is DELIVERED, CANCELLED, FAILED or DELIVERY_LOST no further status
// update is accepted.
type Status string

const (
	StatusPending      Status = "PENDING"       // placed, payment not settled yet
	StatusProcessing   Status = "PROCESSING"    // paid, warehouse preparing delivery
	StatusDispatched   Status = "DISPATCHED"    // shipment processor accepted the request
	StatusInTransit    Status = "IN_TRANSIT"    // package on its way
	StatusDelivered    Status = "DELIVERED"     // delivered to customer
	StatusCancelled    Status = "CANCELLED"     // cancelled while PROCESSING, refunded
	StatusFailed       Status = "FAILED"        // payment or stock failure
	StatusDeliveryLost Status = "DELIVERY_LOST" // lost in transit, refunded without stock restore
)

// Terminal reports whether the status accepts no further transitions
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusFailed, StatusDeliveryLost:
		return true
	}
	return false
}

// Valid reports whether s is a known status value
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDispatched, StatusInTransit,
		StatusDelivered, StatusCancelled, StatusFailed, StatusDeliveryLost:
		return true
	}
	return false
}
