// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientFunds indicates that the account balance is lower than the debited amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConcurrentModification indicates that the stored balance changed since it was read.
	// The caller may retry the operation.
	ErrConcurrentModification = errors.New("account modified concurrently")
	// ErrInvalidAmount indicates zero, negative or malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrStoreUnavailable indicates an I/O failure of the underlying store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Account holds balance data of a single bank account.
type Account struct {
	ID        int64           `json:"id"`
	BankID    int64           `json:"bank_id"`
	Balance   decimal.Decimal `json:"balance"`
	OwnerID   int64           `json:"owner_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateAccountParams is the input data to register an account.
type CreateAccountParams struct {
	BankID  int64           `json:"bank_id"`
	Balance decimal.Decimal `json:"balance"`
	OwnerID int64           `json:"owner_id"`
}

// Bank is a reference entity shown next to accounts.
type Bank struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
