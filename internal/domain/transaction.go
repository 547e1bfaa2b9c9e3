package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionNotFound indicates that the ledger entry is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrLedgerWriteFailed indicates that the ledger entry could not be appended
	// and the balance change was compensated.
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)

// TransactionKind is derived from which side of a ledger entry is set.
type TransactionKind string

// Transaction kinds.
const (
	KindReplenishment TransactionKind = "replenishment"
	KindWithdrawal    TransactionKind = "withdrawal"
	KindTransfer      TransactionKind = "transfer"
)

// Transaction is an immutable ledger entry of one completed balance change.
//
// SenderID is 0 for pure credits (replenishment, interest) and ReceiverID is 0
// for pure debits (withdrawal).
type Transaction struct {
	ID         int64           `json:"id"`
	Amount     decimal.Decimal `json:"amount"` // always positive
	Timestamp  time.Time       `json:"time"`
	SenderID   int64           `json:"sender_id"`
	ReceiverID int64           `json:"receiver_id"`
}

// Kind reports what kind of balance change the entry records.
func (t Transaction) Kind() TransactionKind {
	switch {
	case t.SenderID == 0:
		return KindReplenishment
	case t.ReceiverID == 0:
		return KindWithdrawal
	default:
		return KindTransfer
	}
}

// Involves reports whether the account is a side of the entry.
func (t Transaction) Involves(accountID int64) bool {
	return t.SenderID == accountID || t.ReceiverID == accountID
}

// CreateTransactionParams is the input data to append a ledger entry.
type CreateTransactionParams struct {
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"time"`
	SenderID   int64           `json:"sender_id"`
	ReceiverID int64           `json:"receiver_id"`
}
