package transfer

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages transfer persistence
type Repository interface {
	Create(ctx context.Context, transfer *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// GetByIdempotencyKey returns the stored record for a key, if any; the
	// transfer engine uses it to short-circuit retried requests
	GetByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)

	// GetLatestChargeByOrderID finds the succeeded CHARGE for an order so a
	// refund request can locate its original
	GetLatestChargeByOrderID(ctx context.Context, orderID uuid.UUID) (*Transfer, error)

	Update(ctx context.Context, transfer *Transfer) error
	WithTx(tx pgx.Tx) Repository
}

// ErrTransferNotFound indicates missing transfer
type ErrTransferNotFound struct {
	TransferID uuid.UUID
}

func (e ErrTransferNotFound) Error() string {
	return "transfer not found: " + e.TransferID.String()
}

// Is matches any ErrTransferNotFound when the target carries a nil ID
func (e ErrTransferNotFound) Is(target error) bool {
	t, ok := target.(ErrTransferNotFound)
	if !ok {
		return false
	}
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID
}
