package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item. Price is in minor currency units.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

// Customer links a shopper to the ledger account their payments draw from
type Customer struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	BankAccountID uuid.UUID `json:"bank_account_id"`
	CreatedAt     time.Time `json:"created_at"`
}
