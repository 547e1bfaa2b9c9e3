// Package memstore keeps accounts and the transaction ledger in process memory.
//
// It satisfies the same contracts as the Postgres repositories and is used for
// development (STORE_BACKEND=memory) and tests.
package memstore

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is an in-memory AccountStore and LedgerStore.
type Store struct {
	mu sync.RWMutex

	accounts      map[int64]domain.Account
	lastAccountID int64

	transactions []domain.Transaction
	lastTxID     int64

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[int64]domain.Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create registers the account and then returns it.
func (s *Store) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	if arg.Balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAccountID++

	a := domain.Account{
		ID:        s.lastAccountID,
		BankID:    arg.BankID,
		Balance:   arg.Balance,
		OwnerID:   arg.OwnerID,
		CreatedAt: s.now().Truncate(time.Second),
	}
	s.accounts[a.ID] = a

	return a, nil
}

// Get returns the account with the given id.
func (s *Store) Get(ctx context.Context, id int64) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

// List returns all accounts ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		items = append(items, a)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// CompareAndUpdate sets the balance to next only if it still equals expected.
func (s *Store) CompareAndUpdate(ctx context.Context, id int64, expected, next decimal.Decimal) (domain.Account, error) {
	if next.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	if !a.Balance.Equal(expected) {
		return domain.Account{}, domain.ErrConcurrentModification
	}

	a.Balance = next
	s.accounts[id] = a

	return a, nil
}

// Append adds the ledger entry and then returns it with the assigned id.
func (s *Store) Append(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	if !arg.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []int64{arg.SenderID, arg.ReceiverID} {
		if _, ok := s.accounts[id]; id != 0 && !ok {
			return domain.Transaction{}, domain.ErrAccountNotFound
		}
	}

	s.lastTxID++

	t := domain.Transaction{
		ID:         s.lastTxID,
		Amount:     arg.Amount,
		Timestamp:  arg.Timestamp,
		SenderID:   arg.SenderID,
		ReceiverID: arg.ReceiverID,
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}

	s.transactions = append(s.transactions, t)

	return t, nil
}

// GetTransaction returns the ledger entry with the given id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.transactions {
		if t.ID == id {
			return t, nil
		}
	}

	return domain.Transaction{}, domain.ErrTransactionNotFound
}

// Query yields the ledger entries of the account made at or after since,
// ordered by timestamp. A zero since yields the whole history.
//
// The entries are snapshotted when iteration starts.
func (s *Store) Query(ctx context.Context, accountID int64, since time.Time) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		s.mu.RLock()
		items := make([]domain.Transaction, 0)
		for _, t := range s.transactions {
			if t.Involves(accountID) && !t.Timestamp.Before(since) {
				items = append(items, t)
			}
		}
		s.mu.RUnlock()

		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Timestamp.Equal(items[j].Timestamp) {
				return items[i].ID < items[j].ID
			}
			return items[i].Timestamp.Before(items[j].Timestamp)
		})

		for _, t := range items {
			if err := ctx.Err(); err != nil {
				yield(domain.Transaction{}, err)
				return
			}

			if !yield(t, nil) {
				return
			}
		}
	}
}

// Transactions returns a copy of the whole ledger in append order.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Transaction(nil), s.transactions...)
}
