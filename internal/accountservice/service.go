// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
)

// ErrInvalidPeriod indicates an unknown statement period.
var ErrInvalidPeriod = errors.New("period must be one of month, year, all")

// Statement periods.
const (
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// AccountRepo provides the account store interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
}

// LedgerRepo provides the ledger store interface needed by account service layer.
type LedgerRepo interface {
	Query(ctx context.Context, accountID int64, since time.Time) iter.Seq2[domain.Transaction, error]
}

// Service facilitates account service layer logic.
type Service struct {
	accounts AccountRepo
	ledger   LedgerRepo
}

// New returns account service struct to manage account bussines logic.
func New(ar AccountRepo, lr LedgerRepo) *Service {
	return &Service{
		accounts: ar,
		ledger:   lr,
	}
}

// Get returns account for the given account ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.accounts.Get(ctx, id)
}

// Statement returns the account together with its ledger entries made at or
// after since, oldest first.
func (s *Service) Statement(ctx context.Context, id int64, since time.Time) (domain.Account, []domain.Transaction, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return domain.Account{}, nil, err
	}

	txs := make([]domain.Transaction, 0)

	for t, err := range s.ledger.Query(ctx, id, since) {
		if err != nil {
			return domain.Account{}, nil, err
		}

		txs = append(txs, t)
	}

	return account, txs, nil
}

// PeriodStart returns the first instant of the statement period containing
// now. PeriodAll starts at the zero time.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodAll, "":
		return time.Time{}, nil
	}

	return time.Time{}, ErrInvalidPeriod
}
