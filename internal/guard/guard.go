// Package guard implements the locking discipline shared by balance
// mutations, transfers and interest accrual.
//
// Locks are always acquired in this order:
//
//	accrual (shared or exclusive) -> transfer -> accounts (ascending id)
//
// Interactive operations hold the accrual lock in shared mode, so they run in
// parallel with each other and never overlap an accrual pass, which holds it
// exclusively.
package guard

import (
	"sort"
	"sync"
)

// Guard holds the named locks. The zero value is not usable, use New.
type Guard struct {
	accrual  sync.RWMutex
	transfer sync.Mutex

	mu       sync.Mutex
	accounts map[int64]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// New returns a ready to use Guard.
func New() *Guard {
	return &Guard{
		accounts: make(map[int64]*accountLock),
	}
}

// Interactive holds the global accrual lock in shared mode.
// It must not be called again before the returned release is invoked.
func (g *Guard) Interactive() (release func()) {
	g.accrual.RLock()
	return g.accrual.RUnlock
}

// Accrual holds the global accrual lock exclusively.
func (g *Guard) Accrual() (release func()) {
	g.accrual.Lock()
	return g.accrual.Unlock
}

// Transfer holds the transfer lock.
func (g *Guard) Transfer() (release func()) {
	g.transfer.Lock()
	return g.transfer.Unlock
}

// LockAccounts locks every given account, deduplicated and in ascending id
// order. The returned release unlocks them in reverse order.
func (g *Guard) LockAccounts(ids ...int64) (release func()) {
	ordered := sortedUnique(ids)

	locks := make([]*accountLock, len(ordered))
	for i, id := range ordered {
		locks[i] = g.acquire(id)
	}

	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			locks[i].mu.Unlock()
			g.forget(ordered[i], locks[i])
		}
	}
}

func (g *Guard) acquire(id int64) *accountLock {
	g.mu.Lock()
	l, ok := g.accounts[id]
	if !ok {
		l = &accountLock{}
		g.accounts[id] = l
	}
	// Counted before waiting so the entry outlives every waiter.
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()

	return l
}

func (g *Guard) forget(id int64, l *accountLock) {
	g.mu.Lock()
	defer g.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(g.accounts, id)
	}
}

// tracked returns the number of account locks currently held or awaited.
func (g *Guard) tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.accounts)
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
