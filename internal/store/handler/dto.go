package handler

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	ProductID  string `json:"product_id" binding:"required,uuid"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// AllocationResponse represents one warehouse allocation in API responses
type AllocationResponse struct {
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID                   string               `json:"id"`
	CustomerID           string               `json:"customer_id"`
	ProductID            string               `json:"product_id"`
	Quantity             int                  `json:"quantity"`
	TotalAmount          int64                `json:"total_amount"`
	Status               string               `json:"status"`
	Allocations          []AllocationResponse `json:"allocations,omitempty"`
	DeliveryAddress      string               `json:"delivery_address"`
	PaymentTransactionID string               `json:"payment_transaction_id,omitempty"`
	CreatedAt            string               `json:"created_at"`
	UpdatedAt            string               `json:"updated_at"`
}
