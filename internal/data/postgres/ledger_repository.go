package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/domain/ledger"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// The ledger_entries table is append-only; there is no update path.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends one ledger entry
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (transfer_id, account_id, delta, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		entry.TransferID,
		entry.AccountID,
		entry.Delta,
		entry.BalanceAfter,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"transfer_id", entry.TransferID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByTransferID retrieves the entry pair written for one transfer
func (r *LedgerRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]*ledger.Entry, error) {
	query := `
		SELECT id, transfer_id, account_id, delta, balance_after, created_at
		FROM ledger_entries
		WHERE transfer_id = $1
		ORDER BY id ASC
	`

	rows, err := r.querier.Query(ctx, query, transferID)
	if err != nil {
		r.logger.Error("Failed to get ledger entries by transfer", "transfer_id", transferID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries by transfer: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByAccountID retrieves an account's entries newest first
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, transfer_id, account_id, delta, balance_after, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries by account", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries by account: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SumDeltasByAccountID totals an account's entry deltas for reconciliation
func (r *LedgerRepository) SumDeltasByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`

	var sum int64
	err := r.querier.QueryRow(ctx, query, accountID).Scan(&sum)
	if err != nil {
		r.logger.Error("Failed to sum ledger deltas", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum ledger deltas: %w", err)
	}

	return sum, nil
}

func scanEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.TransferID,
			&entry.AccountID,
			&entry.Delta,
			&entry.BalanceAfter,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}
