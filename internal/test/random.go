package test

import (
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/pkg/randompkg"
	"github.com/shopspring/decimal"
)

// RandomAccount returns random account with a balance between 1000 and 10000.
func RandomAccount() domain.Account {
	return domain.Account{
		ID:        int64(randompkg.IntBetween(1, 1000)),
		BankID:    int64(randompkg.IntBetween(1, 10)),
		Balance:   decimal.RequireFromString(randompkg.MoneyAmountBetween(1000, 10_000)),
		OwnerID:   int64(randompkg.IntBetween(1, 1000)),
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}
