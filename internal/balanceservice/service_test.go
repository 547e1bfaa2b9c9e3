package balanceservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-petr/clever-bank/internal/domain"
	"github.com/go-petr/clever-bank/internal/guard"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type decimalMatcher struct {
	want decimal.Decimal
}

func (m decimalMatcher) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return "is decimal " + m.want.String()
}

func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: decimal.RequireFromString(s)}
}

func testAccount(id int64, balance string) domain.Account {
	return domain.Account{
		ID:        id,
		BankID:    1,
		Balance:   decimal.RequireFromString(balance),
		OwnerID:   1,
		CreatedAt: time.Now().Truncate(time.Second).UTC(),
	}
}

func TestApplyDelta(t *testing.T) {
	testAcc := testAccount(7, "100")
	errStore := domain.ErrStoreUnavailable

	testCases := []struct {
		name          string
		delta         string
		buildStubs    func(accounts *MockAccountRepo, ledger *MockLedgerRepo)
		checkResponse func(t *testing.T, res domain.Transaction, err error)
	}{
		{
			name:  "ZeroDelta",
			delta: "0",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
			},
		},
		{
			name:  "AccountNotFound",
			delta: "10",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountNotFound)
				accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrAccountNotFound)
			},
		},
		{
			name:  "InsufficientFunds",
			delta: "-1000",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(testAcc, nil)
				accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			},
		},
		{
			name:  "ConcurrentModification",
			delta: "-30",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(testAcc, nil)
				accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("70")).
					Times(1).
					Return(domain.Account{}, domain.ErrConcurrentModification)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrConcurrentModification)
			},
		},
		{
			name:  "StoreUnavailable",
			delta: "5",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(domain.Account{}, errStore)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrStoreUnavailable)
			},
		},
		{
			name:  "LedgerWriteFailedCompensated",
			delta: "-30",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				gomock.InOrder(
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAcc, nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("70")).
						Return(testAccount(testAcc.ID, "70"), nil),
					ledger.EXPECT().Append(gomock.Any(), gomock.Any()).
						Return(domain.Transaction{}, errStore),
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAccount(testAcc.ID, "70"), nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("70"), decEq("100")).
						Return(testAcc, nil),
				)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrLedgerWriteFailed)
			},
		},
		{
			name:  "CompensationRetriesConflict",
			delta: "20",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				gomock.InOrder(
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAcc, nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("120")).
						Return(testAccount(testAcc.ID, "120"), nil),
					ledger.EXPECT().Append(gomock.Any(), gomock.Any()).
						Return(domain.Transaction{}, errStore),
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAccount(testAcc.ID, "120"), nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("120"), decEq("100")).
						Return(domain.Account{}, domain.ErrConcurrentModification),
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAccount(testAcc.ID, "125"), nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("125"), decEq("105")).
						Return(testAccount(testAcc.ID, "105"), nil),
				)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrLedgerWriteFailed)
			},
		},
		{
			name:  "CompensationFailed",
			delta: "-30",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				gomock.InOrder(
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(testAcc, nil),
					accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("70")).
						Return(testAccount(testAcc.ID, "70"), nil),
					ledger.EXPECT().Append(gomock.Any(), gomock.Any()).
						Return(domain.Transaction{}, errStore),
					accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
						Return(domain.Account{}, errStore),
				)
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.Empty(t, res)
				require.ErrorIs(t, err, domain.ErrLedgerWriteFailed)
				require.ErrorIs(t, err, domain.ErrStoreUnavailable)
			},
		},
		{
			name:  "OKDebit",
			delta: "-30",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(testAcc, nil)
				accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("70")).
					Times(1).
					Return(testAccount(testAcc.ID, "70"), nil)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(_ context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
						return domain.Transaction{
							ID:         1,
							Amount:     arg.Amount,
							Timestamp:  arg.Timestamp,
							SenderID:   arg.SenderID,
							ReceiverID: arg.ReceiverID,
						}, nil
					})
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.NoError(t, err)
				require.Equal(t, int64(1), res.ID)
				require.True(t, res.Amount.Equal(decimal.NewFromInt(30)))
				require.Equal(t, testAcc.ID, res.SenderID)
				require.Zero(t, res.ReceiverID)
				require.Equal(t, domain.KindWithdrawal, res.Kind())
				require.WithinDuration(t, time.Now(), res.Timestamp, time.Second)
			},
		},
		{
			name:  "OKCredit",
			delta: "12.34",
			buildStubs: func(accounts *MockAccountRepo, ledger *MockLedgerRepo) {
				accounts.EXPECT().Get(gomock.Any(), gomock.Eq(testAcc.ID)).
					Times(1).
					Return(testAcc, nil)
				accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Eq(testAcc.ID), decEq("100"), decEq("112.34")).
					Times(1).
					Return(testAccount(testAcc.ID, "112.34"), nil)
				ledger.EXPECT().Append(gomock.Any(), gomock.Any()).
					Times(1).
					DoAndReturn(func(_ context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
						return domain.Transaction{ID: 2, Amount: arg.Amount, SenderID: arg.SenderID, ReceiverID: arg.ReceiverID}, nil
					})
			},
			checkResponse: func(t *testing.T, res domain.Transaction, err error) {
				require.NoError(t, err)
				require.True(t, res.Amount.Equal(decimal.RequireFromString("12.34")))
				require.Zero(t, res.SenderID)
				require.Equal(t, testAcc.ID, res.ReceiverID)
				require.Equal(t, domain.KindReplenishment, res.Kind())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			accounts := NewMockAccountRepo(ctrl)
			ledger := NewMockLedgerRepo(ctrl)
			tc.buildStubs(accounts, ledger)

			s := New(accounts, ledger, guard.New())

			res, err := s.ApplyDelta(context.Background(), testAcc.ID, decimal.RequireFromString(tc.delta))
			tc.checkResponse(t, res, err)
		})
	}
}

func TestReplenishWithdrawInvalidAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountRepo(ctrl)
	ledger := NewMockLedgerRepo(ctrl)
	accounts.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	s := New(accounts, ledger, guard.New())

	for _, amount := range []string{"0", "-10"} {
		_, err := s.Replenish(context.Background(), 1, decimal.RequireFromString(amount))
		require.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = s.Withdraw(context.Background(), 1, decimal.RequireFromString(amount))
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
}

func TestCompensateGivesUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountRepo(ctrl)
	accounts.EXPECT().Get(gomock.Any(), gomock.Any()).
		Times(compensationAttempts).
		Return(testAccount(1, "50"), nil)
	accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Times(compensationAttempts).
		Return(domain.Account{}, domain.ErrConcurrentModification)

	s := New(accounts, NewMockLedgerRepo(ctrl), guard.New())

	err := s.Compensate(context.Background(), 1, decimal.NewFromInt(10))
	require.True(t, errors.Is(err, domain.ErrConcurrentModification))
}

func TestCompensateIgnoresCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountRepo(ctrl)
	accounts.EXPECT().Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, id int64) (domain.Account, error) {
			require.NoError(t, ctx.Err())
			return testAccount(id, "50"), nil
		})
	accounts.EXPECT().CompareAndUpdate(gomock.Any(), gomock.Any(), decEq("50"), decEq("40")).
		Return(testAccount(1, "40"), nil)

	s := New(accounts, NewMockLedgerRepo(ctrl), guard.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Compensate(ctx, 1, decimal.NewFromInt(10)))
}
