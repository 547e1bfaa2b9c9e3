// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/internal/guard"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Mutator provides the balance mutation legs needed by the transfer service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Mutator interface {
	Get(ctx context.Context, accountID int64) (domain.Account, error)
	Adjust(ctx context.Context, accountID int64, delta decimal.Decimal) (domain.Account, error)
	Record(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error)
	Compensate(ctx context.Context, accountID int64, applied decimal.Decimal) error
}

// Service facilitates transfer service layer logic.
type Service struct {
	mutator Mutator
	guard   *guard.Guard
}

// New return transfer service struct to manage transfer bussines logic.
func New(m Mutator, g *guard.Guard) *Service {
	return &Service{
		mutator: m,
		guard:   g,
	}
}

type leg struct {
	accountID int64
	delta     decimal.Decimal
}

// Transfer moves the amount from the sender to the receiver and records a
// single ledger entry naming both.
//
// Either both balances change and the entry is written, or neither balance
// changes and no entry exists.
func (s *Service) Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx).With().
		Int64("sender_id", arg.SenderID).
		Int64("receiver_id", arg.ReceiverID).
		Str("amount", arg.Amount.String()).
		Logger()

	if !arg.Amount.IsPositive() {
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	if arg.SenderID == arg.ReceiverID {
		return domain.TransferResult{}, domain.ErrSameAccount
	}

	releaseAccrual := s.guard.Interactive()
	defer releaseAccrual()

	releaseTransfer := s.guard.Transfer()
	defer releaseTransfer()

	releaseAccounts := s.guard.LockAccounts(arg.SenderID, arg.ReceiverID)
	defer releaseAccounts()

	if err := s.validate(ctx, arg); err != nil {
		l.Info().Err(err).Msg("transfer rejected")
		return domain.TransferResult{}, err
	}

	var (
		result domain.TransferResult
		err    error
	)

	debit := leg{accountID: arg.SenderID, delta: arg.Amount.Neg()}
	credit := leg{accountID: arg.ReceiverID, delta: arg.Amount}

	result.Sender, err = s.mutator.Adjust(ctx, debit.accountID, debit.delta)
	if err != nil {
		l.Info().Err(err).Msg("debit failed")
		return domain.TransferResult{}, err
	}

	result.Receiver, err = s.mutator.Adjust(ctx, credit.accountID, credit.delta)
	if err != nil {
		l.Error().Err(err).Msg("credit failed, reversing debit")

		failure := fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)

		return domain.TransferResult{}, s.reverse(ctx, failure, debit)
	}

	result.Transaction, err = s.mutator.Record(ctx, domain.CreateTransactionParams{
		Amount:     arg.Amount,
		SenderID:   arg.SenderID,
		ReceiverID: arg.ReceiverID,
	})
	if err != nil {
		l.Error().Err(err).Msg("ledger append failed, reversing transfer")

		failure := fmt.Errorf("%w: %w: %w", domain.ErrTransferFailed, domain.ErrLedgerWriteFailed, err)

		return domain.TransferResult{}, s.reverse(ctx, failure, credit, debit)
	}

	l.Debug().Int64("transaction_id", result.Transaction.ID).Msg("transfer completed")

	return result, nil
}

func (s *Service) validate(ctx context.Context, arg domain.CreateTransferParams) error {
	sender, err := s.mutator.Get(ctx, arg.SenderID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrSenderNotFound
		}
		return err
	}

	if _, err := s.mutator.Get(ctx, arg.ReceiverID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrReceiverNotFound
		}
		return err
	}

	if sender.Balance.LessThan(arg.Amount) {
		return domain.ErrInsufficientFunds
	}

	return nil
}

// reverse compensates the applied legs in the given order and joins any
// compensation failure to the transfer failure.
func (s *Service) reverse(ctx context.Context, failure error, applied ...leg) error {
	errs := []error{failure}

	for _, lg := range applied {
		if err := s.mutator.Compensate(ctx, lg.accountID, lg.delta); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
