// Package service implements the ledger's transfer engine: idempotent,
// double-entry money movement executed inside one unit of work.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/account"
	"github.com/daxchui/orderflow/internal/domain/ledger"
	"github.com/daxchui/orderflow/internal/domain/outbox"
	"github.com/daxchui/orderflow/internal/domain/transfer"
	"github.com/daxchui/orderflow/internal/ledger/fault"
)

// EventTransferSettled is the outbox event type announcing a terminal
// transfer
const EventTransferSettled = "transfer.settled"

// settlementAuditRecipient receives the archived settlement announcements
const settlementAuditRecipient = "payments@orderflow.example"

// Refund precondition errors
var (
	ErrOriginalNotFound     = errors.New("original transfer not found")
	ErrOriginalNotSucceeded = errors.New("original transfer did not succeed")
)

// TxRunner runs a function inside one database transaction.
// *persistence.PostgresDB satisfies it.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransferCommand carries one requested money movement
type TransferCommand struct {
	CorrelationID  string
	IdempotencyKey string
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	Amount         int64
	Kind           transfer.Kind
	OrderID        uuid.UUID
}

// BankingService is the ledger engine. All mutations run inside ExecuteTx;
// a version conflict on either account aborts the whole unit of work and
// surfaces as a retryable failure.
type BankingService struct {
	logger         *slog.Logger
	db             TxRunner
	accounts       account.Repository
	transfers      transfer.Repository
	entries        ledger.Repository
	outboxRepo     outbox.Repository
	injector       *fault.Injector
	openingBalance int64
	currency       string
}

func NewBankingService(
	logger *slog.Logger,
	db TxRunner,
	accounts account.Repository,
	transfers transfer.Repository,
	entries ledger.Repository,
	outboxRepo outbox.Repository,
	injector *fault.Injector,
	openingBalance int64,
) *BankingService {
	return &BankingService{
		logger:         logger,
		db:             db,
		accounts:       accounts,
		transfers:      transfers,
		entries:        entries,
		outboxRepo:     outboxRepo,
		injector:       injector,
		openingBalance: openingBalance,
		currency:       "AUD",
	}
}

// CreateAccount opens an account with the fixed opening balance
func (s *BankingService) CreateAccount(ctx context.Context, ownerName string) (*account.Account, error) {
	acc, err := account.NewAccount(ownerName, s.openingBalance, s.currency)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "account_id", acc.ID.String(), "owner", ownerName, "balance", acc.Balance)
	return acc, nil
}

// GetAccount retrieves one account
func (s *BankingService) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// GetEntries lists an account's ledger entries newest first
func (s *BankingService) GetEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.entries.GetByAccountID(ctx, accountID, limit, offset)
}

// ReconcileResult reports an account's balance against its entry history
type ReconcileResult struct {
	AccountID      uuid.UUID `json:"account_id"`
	Balance        int64     `json:"balance"`
	OpeningBalance int64     `json:"opening_balance"`
	DeltaSum       int64     `json:"delta_sum"`
	Consistent     bool      `json:"consistent"`
}

// Reconcile checks that balance equals opening balance plus the sum of entry
// deltas
func (s *BankingService) Reconcile(ctx context.Context, accountID uuid.UUID) (*ReconcileResult, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sum, err := s.entries.SumDeltasByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &ReconcileResult{
		AccountID:      accountID,
		Balance:        acc.Balance,
		OpeningBalance: s.openingBalance,
		DeltaSum:       sum,
		Consistent:     acc.Balance == s.openingBalance+sum,
	}, nil
}

// Transfer executes one money movement. If the idempotency key already has a
// stored transfer the stored record is returned unchanged. Insufficient funds
// commits a terminal FAILED transfer and returns it; that is a normal
// outcome, not an error.
func (s *BankingService) Transfer(ctx context.Context, cmd TransferCommand) (*transfer.Transfer, error) {
	logger := s.logger
	if cmd.CorrelationID != "" {
		logger = logger.With("correlation_id", cmd.CorrelationID)
	}

	if cmd.Amount <= 0 {
		return nil, transfer.ErrInvalidAmount
	}

	if cmd.IdempotencyKey != "" {
		stored, err := s.transfers.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err == nil {
			logger.Info("Idempotent replay, returning stored transfer",
				"idempotency_key", cmd.IdempotencyKey,
				"transfer_id", stored.ID.String(),
			)
			return stored, nil
		}
		if !errors.Is(err, transfer.ErrTransferNotFound{}) {
			return nil, err
		}
	}

	// Fault seam fires before any mutation
	if err := s.injector.Check(); err != nil {
		logger.Warn("Fault injector fired", "order_id", cmd.OrderID.String())
		return nil, err
	}

	t, err := transfer.New(cmd.CorrelationID, cmd.IdempotencyKey, cmd.FromAccountID, cmd.ToAccountID, cmd.Amount, cmd.Kind, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.executeTransfer(ctx, tx, t, logger)
	})
	if err != nil {
		// Two carriers of the same key can both miss the pre-check; the loser
		// hits the unique index and the winner's record is the answer
		if cmd.IdempotencyKey != "" && isUniqueViolation(err) {
			stored, readErr := s.transfers.GetByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if readErr == nil {
				logger.Info("Concurrent idempotent replay, returning stored transfer",
					"idempotency_key", cmd.IdempotencyKey,
					"transfer_id", stored.ID.String(),
				)
				return stored, nil
			}
		}
		return nil, err
	}

	return t, nil
}

// isUniqueViolation reports whether err carries PostgreSQL error 23505
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Refund reverses a succeeded transfer: accounts swapped, same amount,
// kind REFUND. Re-enters the Transfer path, inheriting its invariants and
// idempotency behavior.
func (s *BankingService) Refund(ctx context.Context, originalTransferID uuid.UUID, correlationID, idempotencyKey string, orderID uuid.UUID) (*transfer.Transfer, error) {
	original, err := s.transfers.GetByID(ctx, originalTransferID)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			return nil, ErrOriginalNotFound
		}
		return nil, err
	}

	if original.Status != transfer.StatusSucceeded {
		return nil, ErrOriginalNotSucceeded
	}

	return s.Transfer(ctx, TransferCommand{
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		FromAccountID:  original.ToAccountID,
		ToAccountID:    original.FromAccountID,
		Amount:         original.Amount,
		Kind:           transfer.KindRefund,
		OrderID:        orderID,
	})
}

// FindCharge locates the succeeded CHARGE for an order, used by refund
// requests that reference an order instead of a transfer
func (s *BankingService) FindCharge(ctx context.Context, orderID uuid.UUID) (*transfer.Transfer, error) {
	t, err := s.transfers.GetLatestChargeByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			return nil, ErrOriginalNotFound
		}
		return nil, err
	}
	return t, nil
}

// executeTransfer runs the double-entry mutation inside tx. On insufficient
// funds the transfer commits FAILED with no account or entry changes.
func (s *BankingService) executeTransfer(ctx context.Context, tx pgx.Tx, t *transfer.Transfer, logger *slog.Logger) error {
	accounts := s.accounts.WithTx(tx)
	transfers := s.transfers.WithTx(tx)
	entries := s.entries.WithTx(tx)
	outboxRepo := s.outboxRepo.WithTx(tx)

	from, err := accounts.GetByID(ctx, t.FromAccountID)
	if err != nil {
		return err
	}
	to, err := accounts.GetByID(ctx, t.ToAccountID)
	if err != nil {
		return err
	}

	if !from.CanDebit(t.Amount) {
		t.MarkFailed(transfer.ReasonInsufficientFunds)
		if err := transfers.Create(ctx, t); err != nil {
			return err
		}
		logger.Info("Transfer failed, insufficient funds",
			"transfer_id", t.ID.String(),
			"from", from.ID.String(),
			"amount", t.Amount,
			"balance", from.Balance,
		)
		return s.appendResultEvent(ctx, outboxRepo, t)
	}

	if err := from.Debit(t.Amount); err != nil {
		return err
	}
	if err := to.Credit(t.Amount); err != nil {
		return err
	}

	// A losing version check aborts the whole transaction; nothing partial
	// ever commits
	if err := accounts.Update(ctx, from); err != nil {
		return err
	}
	if err := accounts.Update(ctx, to); err != nil {
		return err
	}

	t.MarkSucceeded()
	if err := transfers.Create(ctx, t); err != nil {
		return err
	}

	debitEntry := &ledger.Entry{
		TransferID:   t.ID,
		AccountID:    from.ID,
		Delta:        -t.Amount,
		BalanceAfter: from.Balance,
		CreatedAt:    t.CreatedAt,
	}
	creditEntry := &ledger.Entry{
		TransferID:   t.ID,
		AccountID:    to.ID,
		Delta:        t.Amount,
		BalanceAfter: to.Balance,
		CreatedAt:    t.CreatedAt,
	}
	if err := entries.Create(ctx, debitEntry); err != nil {
		return err
	}
	if err := entries.Create(ctx, creditEntry); err != nil {
		return err
	}

	logger.Info("Transfer succeeded",
		"transfer_id", t.ID.String(),
		"kind", string(t.Kind),
		"amount", t.Amount,
		"from_balance", from.Balance,
		"to_balance", to.Balance,
	)

	return s.appendResultEvent(ctx, outboxRepo, t)
}

// appendResultEvent writes the outbox announcement in the same transaction
// as the transfer itself. The payload is a notification the sweeper ships to
// the notifier, which archives every settlement.
func (s *BankingService) appendResultEvent(ctx context.Context, outboxRepo outbox.Repository, t *transfer.Transfer) error {
	subject := fmt.Sprintf("%s settled: %s", t.Kind, t.Status)
	body := fmt.Sprintf("transfer %s for order %s completed with status %s, amount %d minor units",
		t.ID.String(), t.OrderID.String(), t.Status, t.Amount)
	if t.FailureReason != "" {
		body += ", reason: " + t.FailureReason
	}

	orderID := t.OrderID
	payload := contracts.Notification{
		Recipient: settlementAuditRecipient,
		Subject:   subject,
		Body:      body,
		OrderID:   &orderID,
	}

	event, err := outbox.NewEvent("transfer", t.ID, EventTransferSettled, payload)
	if err != nil {
		return fmt.Errorf("failed to build transfer outbox event: %w", err)
	}
	return outboxRepo.Create(ctx, event)
}
