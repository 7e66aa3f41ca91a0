package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daxchui/orderflow/internal/domain/account"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}

	acc := &account.Account{
		ID:        uuid.New(),
		OwnerName: "Test User",
		Currency:  "AUD",
		Balance:   1_000_000,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO accounts \(id, owner_name, currency, balance, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(acc.ID, acc.OwnerName, acc.Currency, acc.Balance, acc.Version, acc.CreatedAt, acc.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, acc)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(acc.ID, acc.OwnerName, acc.Currency, acc.Balance, acc.Version, acc.CreatedAt, acc.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, acc)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create account")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}
	accID := uuid.New()
	now := time.Now()

	expectedAccount := &account.Account{
		ID:        accID,
		OwnerName: "Test User",
		Currency:  "AUD",
		Balance:   1_000_000,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		SELECT id, owner_name, currency, balance, version, created_at, updated_at
		FROM accounts
		WHERE id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "owner_name", "currency", "balance", "version", "created_at", "updated_at"}).
			AddRow(expectedAccount.ID, expectedAccount.OwnerName, expectedAccount.Currency, expectedAccount.Balance, expectedAccount.Version, expectedAccount.CreatedAt, expectedAccount.UpdatedAt)
		mock.ExpectQuery(query).WithArgs(accID).WillReturnRows(rows)

		acc, err := repo.GetByID(ctx, accID)
		assert.NoError(t, err)
		assert.Equal(t, expectedAccount, acc)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(accID).WillReturnError(pgx.ErrNoRows)

		acc, err := repo.GetByID(ctx, accID)
		assert.Error(t, err)
		assert.Nil(t, acc)
		var notFound account.ErrAccountNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, accID, notFound.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: logger}

	acc := &account.Account{
		ID:        uuid.New(),
		OwnerName: "Test User",
		Currency:  "AUD",
		Balance:   999_500,
		Version:   2,
		UpdatedAt: time.Now(),
	}

	query := `
		UPDATE accounts
		SET owner_name = \$1, currency = \$2, balance = \$3, version = \$4, updated_at = \$5
		WHERE id = \$6 AND version = \$7
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(acc.OwnerName, acc.Currency, acc.Balance, acc.Version, acc.UpdatedAt, acc.ID, acc.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, acc)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(acc.OwnerName, acc.Currency, acc.Balance, acc.Version, acc.UpdatedAt, acc.ID, acc.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, acc)
		assert.ErrorIs(t, err, account.ErrConcurrentModification{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
