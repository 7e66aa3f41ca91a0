package outbox

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository manages transactional outbox event persistence
type Repository interface {
	Create(ctx context.Context, event *Event) error

	// GetUnprocessed returns events with no processed_at, oldest first
	GetUnprocessed(ctx context.Context, limit int) ([]*Event, error)

	// MarkProcessed sets processed_at; called only after a publish ack
	MarkProcessed(ctx context.Context, id int64) error

	IncrementAttempts(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrEventNotFound indicates missing outbox event
type ErrEventNotFound struct {
	ID int64
}

func (e ErrEventNotFound) Error() string {
	return "outbox event not found: " + strconv.FormatInt(e.ID, 10)
}
