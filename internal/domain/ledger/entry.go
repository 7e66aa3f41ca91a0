package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one side of a double-entry booking. Entries are append-only: the
// two entries produced by a successful transfer sum to zero, and an account's
// balance always equals its opening balance plus the sum of its entry deltas.
type Entry struct {
	ID           int64     `json:"id"`
	TransferID   uuid.UUID `json:"transfer_id"`
	AccountID    uuid.UUID `json:"account_id"`
	Delta        int64     `json:"delta"`         // signed, minor units
	BalanceAfter int64     `json:"balance_after"` // account balance after applying Delta
	CreatedAt    time.Time `json:"created_at"`
}
