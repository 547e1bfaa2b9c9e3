// Package balanceservice implements the balance mutation primitive every
// money movement is built on.
//
// Service is the only writer of account balances and ledger entries: each
// mutation is a read, a compare-and-update and one ledger append, and a
// failed append is compensated by the inverse delta before returning.
package balanceservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/internal/guard"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// compensationAttempts bounds the re-read and retry cycles of an inverse delta.
const compensationAttempts = 3

// AccountRepo provides the account store interface needed by the balance service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package balanceservice
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
	CompareAndUpdate(ctx context.Context, id int64, expected, next decimal.Decimal) (domain.Account, error)
}

// LedgerRepo provides the ledger store interface needed by the balance service.
type LedgerRepo interface {
	Append(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error)
}

// Service facilitates balance mutations.
type Service struct {
	accounts AccountRepo
	ledger   LedgerRepo
	guard    *guard.Guard
	now      func() time.Time
}

// New returns balance service struct to manage balance mutations.
func New(ar AccountRepo, lr LedgerRepo, g *guard.Guard) *Service {
	return &Service{
		accounts: ar,
		ledger:   lr,
		guard:    g,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Replenish credits the account with a positive amount.
func (s *Service) Replenish(ctx context.Context, accountID int64, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	release := s.guard.Interactive()
	defer release()

	return s.ApplyDelta(ctx, accountID, amount)
}

// Withdraw debits the account with a positive amount.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	release := s.guard.Interactive()
	defer release()

	return s.ApplyDelta(ctx, accountID, amount.Neg())
}

// ApplyDelta adds a signed delta to the account balance and records one
// ledger entry for it: a credit has no sender, a debit has no receiver.
//
// Only the account lock is taken here; callers decide which global lock
// the call runs under. On any error the balance is left at its value before
// the call and no ledger entry exists for it.
func (s *Service) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (domain.Transaction, error) {
	if delta.IsZero() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	release := s.guard.LockAccounts(accountID)
	defer release()

	l := zerolog.Ctx(ctx).With().Int64("account_id", accountID).Str("delta", delta.String()).Logger()

	if _, err := s.Adjust(ctx, accountID, delta); err != nil {
		l.Info().Err(err).Msg("balance not changed")
		return domain.Transaction{}, err
	}

	arg := domain.CreateTransactionParams{
		Amount: delta.Abs(),
	}
	if delta.IsPositive() {
		arg.ReceiverID = accountID
	} else {
		arg.SenderID = accountID
	}

	t, err := s.Record(ctx, arg)
	if err != nil {
		l.Error().Err(err).Msg("ledger append failed, compensating")

		if cErr := s.Compensate(ctx, accountID, delta); cErr != nil {
			return domain.Transaction{}, errors.Join(fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err), cErr)
		}

		return domain.Transaction{}, fmt.Errorf("%w: %w", domain.ErrLedgerWriteFailed, err)
	}

	l.Debug().Int64("transaction_id", t.ID).Msg("balance changed")

	return t, nil
}

// Get returns the current state of the account.
func (s *Service) Get(ctx context.Context, accountID int64) (domain.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

// Adjust re-reads the account and moves its balance by delta with a
// compare-and-update. It writes no ledger entry.
//
// The caller must hold the account lock.
func (s *Service) Adjust(ctx context.Context, accountID int64, delta decimal.Decimal) (domain.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}

	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	return s.accounts.CompareAndUpdate(ctx, accountID, account.Balance, next)
}

// Record appends a ledger entry stamped with the current time.
func (s *Service) Record(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	if arg.Timestamp.IsZero() {
		arg.Timestamp = s.now()
	}

	return s.ledger.Append(ctx, arg)
}

// Compensate undoes an applied delta by applying its inverse. Conflicting
// updates are re-read and retried a bounded number of times.
//
// The caller must hold the account lock.
func (s *Service) Compensate(ctx context.Context, accountID int64, applied decimal.Decimal) error {
	l := zerolog.Ctx(ctx)

	// The undo must run even if the caller's context is already done.
	ctx = context.WithoutCancel(ctx)

	var err error

	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		_, err = s.Adjust(ctx, accountID, applied.Neg())
		if err == nil {
			return nil
		}

		if !errors.Is(err, domain.ErrConcurrentModification) {
			break
		}
	}

	l.Error().Err(err).
		Int64("account_id", accountID).
		Str("delta", applied.Neg().String()).
		Msg("compensation failed, balance left inconsistent")

	return fmt.Errorf("compensate account %d: %w", accountID, err)
}
