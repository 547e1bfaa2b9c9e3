// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/dbpkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const createQuery = `
INSERT INTO
    accounts (bank_id, balance, user_id)
VALUES
    ($1, $2, $3)
RETURNING id, bank_id, balance, user_id, created_at
`

// Create creates the account and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, arg.BankID, arg.Balance, arg.OwnerID)

	a, err := scanAccount(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx context.Context, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_balance_check" {
			return a, domain.ErrInsufficientFunds
		}

		return a, domain.ErrStoreUnavailable
	}

	return a, nil
}

const getQuery = `
SELECT
	id, bank_id, balance, user_id, created_at
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Int64("account_id", id).Send()

		return a, domain.ErrStoreUnavailable
	}

	return a, nil
}

const compareAndUpdateQuery = `
UPDATE accounts
SET balance = $3
WHERE id = $1 AND balance = $2
RETURNING id, bank_id, balance, user_id, created_at
`

// CompareAndUpdate sets the account balance to next only if the stored balance
// still equals expected.
func (r *RepoPGS) CompareAndUpdate(ctx context.Context, id int64, expected, next decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, compareAndUpdateQuery, id, expected, next)

	a, err := scanAccount(row)
	if err == nil {
		return a, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_balance_check" {
		return a, domain.ErrInsufficientFunds
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Int64("account_id", id).Send()
		return a, domain.ErrStoreUnavailable
	}

	// Nothing matched: either the account is gone or its balance moved.
	if _, err := r.Get(ctx, id); err != nil {
		return a, err
	}

	return a, domain.ErrConcurrentModification
}

const listQuery = `
SELECT
	id, bank_id, balance, user_id, created_at
FROM accounts
ORDER BY id
`

// List returns all accounts ordered by id.
func (r *RepoPGS) List(ctx context.Context) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStoreUnavailable
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, domain.ErrStoreUnavailable
		}

		items = append(items, a)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStoreUnavailable
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStoreUnavailable
	}

	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account

	err := s.Scan(
		&a.ID,
		&a.BankID,
		&a.Balance,
		&a.OwnerID,
		&a.CreatedAt,
	)

	return a, err
}
