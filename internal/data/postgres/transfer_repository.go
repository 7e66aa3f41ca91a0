package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/transfer"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// TransferRepository implements the transfer.Repository interface for PostgreSQL
type TransferRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransferRepository creates a new PostgreSQL transfer repository
func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) transfer.Repository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *TransferRepository) WithTx(tx pgx.Tx) transfer.Repository {
	return &TransferRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new transfer. The idempotency key column carries a unique
// index; a duplicate insert surfaces as a constraint error and the caller
// falls back to GetByIdempotencyKey.
func (r *TransferRepository) Create(ctx context.Context, t *transfer.Transfer) error {
	query := `
		INSERT INTO transfers (id, correlation_id, idempotency_key, from_account_id, to_account_id,
			amount, status, kind, failure_reason, order_id, created_at, completed_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.CorrelationID,
		t.IdempotencyKey,
		t.FromAccountID,
		t.ToAccountID,
		t.Amount,
		t.Status,
		t.Kind,
		t.FailureReason,
		t.OrderID,
		t.CreatedAt,
		t.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transfer", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	query := selectTransfer + ` WHERE id = $1`

	t, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{TransferID: id}
		}
		r.logger.Error("Failed to get transfer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return t, nil
}

// GetByIdempotencyKey retrieves the transfer stored under an idempotency key
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	query := selectTransfer + ` WHERE idempotency_key = $1`

	t, err := r.scanOne(ctx, query, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{}
		}
		r.logger.Error("Failed to get transfer by idempotency key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}

	return t, nil
}

// GetLatestChargeByOrderID finds the most recent succeeded charge for an order
func (r *TransferRepository) GetLatestChargeByOrderID(ctx context.Context, orderID uuid.UUID) (*transfer.Transfer, error) {
	query := selectTransfer + `
		WHERE order_id = $1 AND kind = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`

	t, err := r.scanOne(ctx, query, orderID, transfer.KindCharge, transfer.StatusSucceeded)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{}
		}
		r.logger.Error("Failed to get charge for order", "order_id", orderID.String(), "error", err)
		return nil, fmt.Errorf("failed to get charge for order: %w", err)
	}

	return t, nil
}

// Update persists the transfer's terminal state
func (r *TransferRepository) Update(ctx context.Context, t *transfer.Transfer) error {
	query := `
		UPDATE transfers
		SET status = $1, failure_reason = $2, completed_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query,
		t.Status,
		t.FailureReason,
		t.CompletedAt,
		t.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update transfer", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transfer.ErrTransferNotFound{TransferID: t.ID}
	}

	return nil
}

const selectTransfer = `
		SELECT id, correlation_id, COALESCE(idempotency_key, ''), from_account_id, to_account_id,
			amount, status, kind, failure_reason, order_id, created_at, completed_at
		FROM transfers`

func (r *TransferRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*transfer.Transfer, error) {
	var t transfer.Transfer
	err := r.querier.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.CorrelationID,
		&t.IdempotencyKey,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Status,
		&t.Kind,
		&t.FailureReason,
		&t.OrderID,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
