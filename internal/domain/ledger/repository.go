package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the append-only ledger entries
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]*Entry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)

	// SumDeltasByAccountID supports the balance reconciliation invariant:
	// balance = opening balance + sum of deltas
	SumDeltasByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}
