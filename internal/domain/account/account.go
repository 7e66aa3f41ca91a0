package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyOwnerName    = errors.New("owner name cannot be empty")
)

// Account is a ledger account. Balance is stored in minor units and must
// never go negative; Version backs optimistic locking on every mutation.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OwnerName string    `json:"owner_name"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // minor units
	Version   int       `json:"version"` // optimistic lock
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount opens an account with the fixed opening balance
func NewAccount(ownerName string, openingBalance int64, currency string) (*Account, error) {
	if ownerName == "" {
		return nil, ErrEmptyOwnerName
	}
	if openingBalance < 0 {
		return nil, ErrInvalidAmount
	}

	return &Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		Currency:  currency,
		Balance:   openingBalance,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Credit adds the specified amount to the account balance
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	a.Balance += amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// Debit subtracts the specified amount from the account balance
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// CanDebit checks if the account has sufficient funds
func (a *Account) CanDebit(amount int64) bool {
	return a.Balance >= amount
}
