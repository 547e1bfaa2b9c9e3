// Package accrualservice periodically credits interest to every account.
package accrualservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/internal/guard"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInterval indicates a non-positive accrual interval.
	ErrInvalidInterval = errors.New("accrual interval must be positive")
	// ErrInvalidRate indicates a negative accrual rate.
	ErrInvalidRate = errors.New("accrual rate must not be negative")
)

// AccountLister provides the account listing needed by the accrual loop.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accrualservice
type AccountLister interface {
	List(ctx context.Context) ([]domain.Account, error)
}

// Mutator provides the balance mutation needed by the accrual loop.
type Mutator interface {
	ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (domain.Transaction, error)
}

// Loop credits interest to all accounts, one pass per tick.
type Loop struct {
	accounts AccountLister
	mutator  Mutator
	guard    *guard.Guard
}

// New returns an accrual loop.
func New(al AccountLister, m Mutator, g *guard.Guard) *Loop {
	return &Loop{
		accounts: al,
		mutator:  m,
		guard:    g,
	}
}

// Interest returns balance*ratePercent/100 rounded to cents.
func Interest(balance, ratePercent decimal.Decimal) decimal.Decimal {
	return balance.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}

// PassResult summarizes one accrual pass.
type PassResult struct {
	Credited    int
	Skipped     int
	Failed      int
	Interrupted bool
}

// RunPass credits every account once with its interest at ratePercent.
//
// The pass excludes every interactive operation for its whole duration.
// A failure on one account is logged and counted, the pass goes on with the
// next one. Cancellation is honored between accounts only.
func (l *Loop) RunPass(ctx context.Context, ratePercent decimal.Decimal) (PassResult, error) {
	var res PassResult

	logger := zerolog.Ctx(ctx)

	releaseAccrual := l.guard.Accrual()
	defer releaseAccrual()

	releaseTransfer := l.guard.Transfer()
	defer releaseTransfer()

	accounts, err := l.accounts.List(ctx)
	if err != nil {
		return res, err
	}

	for _, a := range accounts {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		interest := Interest(a.Balance, ratePercent)
		if !interest.IsPositive() {
			res.Skipped++
			continue
		}

		if _, err := l.mutator.ApplyDelta(context.WithoutCancel(ctx), a.ID, interest); err != nil {
			logger.Error().Err(err).
				Int64("account_id", a.ID).
				Str("interest", interest.String()).
				Msg("interest not credited")

			res.Failed++

			continue
		}

		res.Credited++
	}

	logger.Info().
		Int("credited", res.Credited).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Bool("interrupted", res.Interrupted).
		Msg("accrual pass finished")

	return res, nil
}

// State reports the lifecycle of a running loop.
type State int32

// Loop states.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Handle controls a started loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	state  atomic.Int32
	passes atomic.Int64
}

// Stop cancels the loop and waits until the current pass, if any, returns.
// It is safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State returns the current loop state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Passes returns the number of completed passes.
func (h *Handle) Passes() int64 {
	return h.passes.Load()
}

// Start runs one pass per interval until ctx is done or Stop is called.
//
// Ticks that fire while a pass is running are dropped, so a slow pass never
// leads to back to back passes crediting twice for one interval.
func (l *Loop) Start(ctx context.Context, interval time.Duration, ratePercent decimal.Decimal) (*Handle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	if ratePercent.IsNegative() {
		return nil, ErrInvalidRate
	}

	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.state.Store(int32(StateIdle))

	go func() {
		defer close(h.done)
		defer h.state.Store(int32(StateStopped))

		logger := zerolog.Ctx(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			h.state.Store(int32(StateRunning))

			if _, err := l.RunPass(ctx, ratePercent); err != nil {
				logger.Error().Err(err).Msg("accrual pass failed")
			} else {
				h.passes.Add(1)
			}

			h.state.Store(int32(StateIdle))
		}
	}()

	return h, nil
}
