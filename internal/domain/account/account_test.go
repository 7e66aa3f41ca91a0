package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		acc, err := NewAccount("Alice", 1_000_000, "AUD")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), acc.Balance)
		assert.Equal(t, "AUD", acc.Currency)
		assert.Equal(t, 1, acc.Version)
	})

	t.Run("empty owner", func(t *testing.T) {
		acc, err := NewAccount("", 100, "AUD")
		assert.ErrorIs(t, err, ErrEmptyOwnerName)
		assert.Nil(t, acc)
	})

	t.Run("negative opening balance", func(t *testing.T) {
		acc, err := NewAccount("Bob", -1, "AUD")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Nil(t, acc)
	})
}

func TestAccount_Debit(t *testing.T) {
	acc, err := NewAccount("Alice", 1000, "AUD")
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		require.NoError(t, acc.Debit(400))
		assert.Equal(t, int64(600), acc.Balance)
		assert.Equal(t, 2, acc.Version)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		err := acc.Debit(601)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(600), acc.Balance)
	})

	t.Run("exact balance", func(t *testing.T) {
		require.NoError(t, acc.Debit(600))
		assert.Equal(t, int64(0), acc.Balance)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		assert.ErrorIs(t, acc.Debit(0), ErrInvalidAmount)
		assert.ErrorIs(t, acc.Debit(-5), ErrInvalidAmount)
	})
}

func TestAccount_Credit(t *testing.T) {
	acc, err := NewAccount("Alice", 100, "AUD")
	require.NoError(t, err)

	require.NoError(t, acc.Credit(250))
	assert.Equal(t, int64(350), acc.Balance)

	assert.ErrorIs(t, acc.Credit(0), ErrInvalidAmount)
	assert.Equal(t, int64(350), acc.Balance)
}

func TestAccount_CanDebit(t *testing.T) {
	acc, err := NewAccount("Alice", 100, "AUD")
	require.NoError(t, err)

	assert.True(t, acc.CanDebit(100))
	assert.True(t, acc.CanDebit(99))
	assert.False(t, acc.CanDebit(101))
}
