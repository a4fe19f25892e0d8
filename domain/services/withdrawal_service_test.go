package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/testhelpers"
)

type withdrawalFixture struct {
	withdrawals *testhelpers.MockWithdrawalRepository
	users       *testhelpers.MockUserRepository
	history     *testhelpers.MockBalanceHistoryRepository
	publisher   *testhelpers.RecordingPublisher
	clock       *testhelpers.FixedClock
}

func newWithdrawalFixture() *withdrawalFixture {
	return &withdrawalFixture{
		withdrawals: new(testhelpers.MockWithdrawalRepository),
		users:       new(testhelpers.MockUserRepository),
		history:     new(testhelpers.MockBalanceHistoryRepository),
		publisher:   &testhelpers.RecordingPublisher{},
		clock:       &testhelpers.FixedClock{T: stakeEpoch},
	}
}

func (f *withdrawalFixture) service() *withdrawalService {
	limits := WithdrawalLimits{Min: testhelpers.Dec("10"), Max: testhelpers.Dec("50000")}
	return NewWithdrawalService(f.withdrawals, f.users, f.history, f.publisher, f.clock, entities.DefaultRateSchedule(), limits).(*withdrawalService)
}

func hashedPassword(t *testing.T, pw string) *string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(hash)
	return &s
}

func TestWithdrawalService_RequestWithdrawal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		amount      string
		password    string
		user        func(t *testing.T) *entities.User
		setupMocks  func(f *withdrawalFixture)
		wantErr     error
		errContains string
	}{
		{
			name:   "deducts amount plus five percent",
			amount: "100",
			user: func(t *testing.T) *entities.User {
				return &entities.User{ID: 3, WalletBalance: testhelpers.Dec("200")}
			},
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("Create", mock.Anything, mock.MatchedBy(func(w *entities.Withdrawal) bool {
					return w.Fee.Equal(testhelpers.Dec("5")) && w.TotalDeduction.Equal(testhelpers.Dec("105")) &&
						w.Status == entities.WithdrawalStatusPending
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*entities.Withdrawal).ID = 12
				}).Return(nil)
				f.users.On("AddWalletBalance", mock.Anything, int64(3), testhelpers.DecEq("-105")).Return(testhelpers.Dec("95"), nil)
				f.history.On("Record", mock.Anything, mock.MatchedBy(func(h *entities.BalanceHistory) bool {
					return h.TransactionType == entities.TransactionTypeWithdrawal && h.BalanceBefore.Equal(testhelpers.Dec("200"))
				})).Return(nil)
				f.users.On("AddTotalUSDT", mock.Anything, int64(3), testhelpers.DecEq("-105")).Return(nil)
			},
		},
		{
			name:     "accepts the matching security password",
			amount:   "10",
			password: "hunter2",
			user: func(t *testing.T) *entities.User {
				return &entities.User{ID: 3, WalletBalance: testhelpers.Dec("10.50"), SecurityPasswordHash: hashedPassword(t, "hunter2")}
			},
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("Create", mock.Anything, mock.Anything).Return(nil)
				f.users.On("AddWalletBalance", mock.Anything, int64(3), testhelpers.DecEq("-10.50")).Return(testhelpers.Dec("0"), nil)
				f.history.On("Record", mock.Anything, mock.Anything).Return(nil)
				f.users.On("AddTotalUSDT", mock.Anything, int64(3), mock.Anything).Return(nil)
			},
		},
		{
			name:     "rejects a wrong security password",
			amount:   "100",
			password: "guess",
			user: func(t *testing.T) *entities.User {
				return &entities.User{ID: 3, WalletBalance: testhelpers.Dec("500"), SecurityPasswordHash: hashedPassword(t, "hunter2")}
			},
			setupMocks:  func(f *withdrawalFixture) {},
			wantErr:     domain.ErrValidation,
			errContains: "security password",
		},
		{
			name:   "fee pushes it over the balance",
			amount: "100",
			user: func(t *testing.T) *entities.User {
				return &entities.User{ID: 3, WalletBalance: testhelpers.Dec("104.99")}
			},
			setupMocks: func(f *withdrawalFixture) {},
			wantErr:    domain.ErrInsufficientBalance,
		},
		{
			name:        "below minimum",
			amount:      "9.99",
			setupMocks:  func(f *withdrawalFixture) {},
			wantErr:     domain.ErrValidation,
			errContains: "between",
		},
		{
			name:       "above maximum",
			amount:     "50000.01",
			setupMocks: func(f *withdrawalFixture) {},
			wantErr:    domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newWithdrawalFixture()
			if tt.user != nil {
				f.users.On("GetByIDForUpdate", mock.Anything, int64(3)).Return(tt.user(t), nil)
			}
			tt.setupMocks(f)

			w, err := f.service().RequestWithdrawal(context.Background(), 3, testhelpers.Dec(tt.amount), tt.password)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				f.withdrawals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				f.users.AssertNotCalled(t, "AddWalletBalance", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, entities.WithdrawalStatusPending, w.Status)
			assert.Len(t, f.publisher.OfType(events.EventTypeWithdrawalRequested), 1)
			f.users.AssertExpectations(t)
			f.withdrawals.AssertExpectations(t)
			f.history.AssertExpectations(t)
		})
	}
}

func pendingWithdrawal() *entities.Withdrawal {
	return &entities.Withdrawal{
		ID:             12,
		UserID:         3,
		Amount:         testhelpers.Dec("100"),
		Fee:            testhelpers.Dec("5"),
		TotalDeduction: testhelpers.Dec("105"),
		Status:         entities.WithdrawalStatusPending,
		CreatedAt:      stakeEpoch,
	}
}

func TestWithdrawalService_ResolveWithdrawal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		decision   entities.WithdrawalDecision
		setupMocks func(f *withdrawalFixture)
		wantStatus entities.WithdrawalStatus
		wantRefund string
		wantErr    error
	}{
		{
			name:     "reject refunds the full deduction",
			decision: entities.WithdrawalDecisionReject,
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(pendingWithdrawal(), nil)
				f.withdrawals.On("Resolve", mock.Anything, int64(12), entities.WithdrawalStatusRejected, stakeEpoch).Return(true, nil)
				f.users.On("AddWalletBalance", mock.Anything, int64(3), testhelpers.DecEq("105")).Return(testhelpers.Dec("200"), nil)
				f.history.On("Record", mock.Anything, mock.MatchedBy(func(h *entities.BalanceHistory) bool {
					return h.TransactionType == entities.TransactionTypeWithdrawalRefund
				})).Return(nil)
				f.users.On("AddTotalUSDT", mock.Anything, int64(3), testhelpers.DecEq("105")).Return(nil)
			},
			wantStatus: entities.WithdrawalStatusRejected,
			wantRefund: "105.00",
		},
		{
			name:     "hold refunds the full deduction",
			decision: entities.WithdrawalDecisionHold,
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(pendingWithdrawal(), nil)
				f.withdrawals.On("Resolve", mock.Anything, int64(12), entities.WithdrawalStatusOnHold, stakeEpoch).Return(true, nil)
				f.users.On("AddWalletBalance", mock.Anything, int64(3), testhelpers.DecEq("105")).Return(testhelpers.Dec("105"), nil)
				f.history.On("Record", mock.Anything, mock.Anything).Return(nil)
				f.users.On("AddTotalUSDT", mock.Anything, int64(3), testhelpers.DecEq("105")).Return(nil)
			},
			wantStatus: entities.WithdrawalStatusOnHold,
			wantRefund: "105.00",
		},
		{
			name:     "approve leaves the wallet alone",
			decision: entities.WithdrawalDecisionApprove,
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(pendingWithdrawal(), nil)
				f.withdrawals.On("Resolve", mock.Anything, int64(12), entities.WithdrawalStatusApproved, stakeEpoch).Return(true, nil)
			},
			wantStatus: entities.WithdrawalStatusApproved,
			wantRefund: "0.00",
		},
		{
			name:     "already resolved",
			decision: entities.WithdrawalDecisionReject,
			setupMocks: func(f *withdrawalFixture) {
				w := pendingWithdrawal()
				w.Status = entities.WithdrawalStatusApproved
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(w, nil)
			},
			wantErr: domain.ErrStateConflict,
		},
		{
			name:     "resolved concurrently",
			decision: entities.WithdrawalDecisionReject,
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(pendingWithdrawal(), nil)
				f.withdrawals.On("Resolve", mock.Anything, int64(12), mock.Anything, mock.Anything).Return(false, nil)
			},
			wantErr: domain.ErrStateConflict,
		},
		{
			name:       "unknown decision",
			decision:   entities.WithdrawalDecision("escalate"),
			setupMocks: func(f *withdrawalFixture) {},
			wantErr:    domain.ErrValidation,
		},
		{
			name:     "missing withdrawal",
			decision: entities.WithdrawalDecisionApprove,
			setupMocks: func(f *withdrawalFixture) {
				f.withdrawals.On("GetByID", mock.Anything, int64(12)).Return(nil, nil)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newWithdrawalFixture()
			tt.setupMocks(f)

			w, err := f.service().ResolveWithdrawal(context.Background(), 12, tt.decision)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				f.users.AssertNotCalled(t, "AddWalletBalance", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, w.Status)
			resolved := f.publisher.OfType(events.EventTypeWithdrawalResolved)
			require.Len(t, resolved, 1)
			assert.Equal(t, tt.wantRefund, resolved[0].(events.WithdrawalResolvedEvent).Refunded.StringFixed(2))
			f.users.AssertExpectations(t)
			f.withdrawals.AssertExpectations(t)
		})
	}
}
