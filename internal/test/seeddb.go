// Package test provides shared test helpers.
package test

import (
	"context"
	"testing"

	"github.com/go-petr/clever-bank/internal/accountrepo"
	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/dbpkg"
	"github.com/go-petr/clever-bank/pkg/randompkg"
	"github.com/shopspring/decimal"
)

const seedBankQuery = `INSERT INTO banks (name) VALUES ($1) RETURNING id, name`

// SeedBank creates a random Bank inside a test transaction.
func SeedBank(t *testing.T, tx dbpkg.SQLInterface) domain.Bank {
	t.Helper()

	var b domain.Bank

	row := tx.QueryRowContext(context.Background(), seedBankQuery, randompkg.Name())
	if err := row.Scan(&b.ID, &b.Name); err != nil {
		t.Fatalf("seeding bank returned error: %v", err)
	}

	return b
}

const seedUserQuery = `INSERT INTO users (name) VALUES ($1) RETURNING id, name`

// SeedUser creates a random User inside a test transaction.
func SeedUser(t *testing.T, tx dbpkg.SQLInterface) domain.User {
	t.Helper()

	var u domain.User

	row := tx.QueryRowContext(context.Background(), seedUserQuery, randompkg.Name())
	if err := row.Scan(&u.ID, &u.Name); err != nil {
		t.Fatalf("seeding user returned error: %v", err)
	}

	return u
}

// SeedAccount creates an Account with the given balance, owned by a fresh
// user of a fresh bank, inside a test transaction.
func SeedAccount(t *testing.T, tx dbpkg.SQLInterface, balance string) domain.Account {
	t.Helper()

	arg := domain.CreateAccountParams{
		BankID:  SeedBank(t, tx).ID,
		Balance: decimal.RequireFromString(balance),
		OwnerID: SeedUser(t, tx).ID,
	}

	account, err := accountrepo.NewRepoPGS(tx).Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("accountRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return account
}
