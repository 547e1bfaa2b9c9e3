// Package transactionrepo manages repository layer of the transaction ledger.
package transactionrepo

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/dbpkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const appendQuery = `
INSERT INTO
    transactions (amount, time, sender_id, receiver_id)
VALUES
    ($1, $2, $3, $4)
RETURNING id, amount, time, sender_id, receiver_id
`

// Append inserts the ledger entry and then returns it.
func (r *RepoPGS) Append(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	ts := arg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	row := r.db.QueryRowContext(ctx, appendQuery,
		arg.Amount,
		ts.UTC(),
		nullID(arg.SenderID),
		nullID(arg.ReceiverID),
	)

	t, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Msgf("Append(ctx context.Context, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "transactions_sender_id_fkey", "transactions_receiver_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transactions_amount_check":
				return t, domain.ErrInvalidAmount
			}
		}

		return t, domain.ErrStoreUnavailable
	}

	return t, nil
}

const getQuery = `
SELECT id, amount, time, sender_id, receiver_id FROM transactions
WHERE id = $1 LIMIT 1
`

// Get returns the ledger entry with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, domain.ErrStoreUnavailable
	}

	return t, nil
}

const queryQuery = `
SELECT id, amount, time, sender_id, receiver_id FROM transactions
WHERE
    (sender_id = $1 OR receiver_id = $1)
    AND time >= $2
ORDER BY time, id
`

// Query yields the ledger entries of the account made at or after since,
// ordered by time. Rows are read lazily while the caller ranges over the
// sequence; breaking out of the loop releases them.
func (r *RepoPGS) Query(ctx context.Context, accountID int64, since time.Time) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		l := zerolog.Ctx(ctx)

		rows, err := r.db.QueryContext(ctx, queryQuery, accountID, since.UTC())
		if err != nil {
			l.Error().Err(err).Send()
			yield(domain.Transaction{}, domain.ErrStoreUnavailable)

			return
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				l.Error().Err(err).Send()
				yield(domain.Transaction{}, domain.ErrStoreUnavailable)

				return
			}

			if !yield(t, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			l.Error().Err(err).Send()
			yield(domain.Transaction{}, domain.ErrStoreUnavailable)
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		senderID, receiverID sql.NullInt64
	)

	err := s.Scan(
		&t.ID,
		&t.Amount,
		&t.Timestamp,
		&senderID,
		&receiverID,
	)

	t.SenderID = senderID.Int64
	t.ReceiverID = receiverID.Int64

	return t, err
}

// nullID stores the "no counterparty" id 0 as NULL.
func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
