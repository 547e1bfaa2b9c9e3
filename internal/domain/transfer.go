package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrSenderNotFound indicates that the transfer sender account is not found.
	ErrSenderNotFound = errors.New("sender account not found")
	// ErrReceiverNotFound indicates that the transfer receiver account is not found.
	ErrReceiverNotFound = errors.New("receiver account not found")
	// ErrSameAccount indicates a transfer from an account to itself.
	ErrSameAccount = errors.New("sender and receiver are the same account")
	// ErrTransferFailed indicates that a transfer leg failed after the debit
	// and the completed legs were reversed.
	ErrTransferFailed = errors.New("transfer failed")
)

// CreateTransferParams is the input data for the transfer.
type CreateTransferParams struct {
	SenderID   int64           `json:"sender_id"`
	ReceiverID int64           `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// TransferResult is the result of the transfer.
type TransferResult struct {
	Transaction Transaction `json:"transaction"`
	Sender      Account     `json:"sender"`
	Receiver    Account     `json:"receiver"`
}
