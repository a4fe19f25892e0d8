package application

import (
	"context"
	"time"

	"stakehub/domain/interfaces"
	"stakehub/domain/testhelpers"
)

// mockUnitOfWork hands out the same mock repositories for every unit of work
// so a test can set expectations once
type mockUnitOfWork struct {
	users       *testhelpers.MockUserRepository
	deposits    *testhelpers.MockDepositRepository
	stakes      *testhelpers.MockStakeRepository
	trades      *testhelpers.MockTradeRepository
	ledger      *testhelpers.MockCommissionLedgerRepository
	withdrawals *testhelpers.MockWithdrawalRepository
	history     *testhelpers.MockBalanceHistoryRepository
	runs        *testhelpers.MockAccrualRunRepository
	bus         *testhelpers.RecordingPublisher

	begun, committed, rolledBack int
	beginErr                     error
}

func newMockUnitOfWork() *mockUnitOfWork {
	return &mockUnitOfWork{
		users:       new(testhelpers.MockUserRepository),
		deposits:    new(testhelpers.MockDepositRepository),
		stakes:      new(testhelpers.MockStakeRepository),
		trades:      new(testhelpers.MockTradeRepository),
		ledger:      new(testhelpers.MockCommissionLedgerRepository),
		withdrawals: new(testhelpers.MockWithdrawalRepository),
		history:     new(testhelpers.MockBalanceHistoryRepository),
		runs:        new(testhelpers.MockAccrualRunRepository),
		bus:         &testhelpers.RecordingPublisher{},
	}
}

func (u *mockUnitOfWork) Begin(ctx context.Context) error {
	u.begun++
	return u.beginErr
}

func (u *mockUnitOfWork) Commit() error {
	u.committed++
	return nil
}

func (u *mockUnitOfWork) Rollback() error {
	u.rolledBack++
	return nil
}

func (u *mockUnitOfWork) UserRepository() interfaces.UserRepository { return u.users }
func (u *mockUnitOfWork) DepositRepository() interfaces.DepositRepository { return u.deposits }
func (u *mockUnitOfWork) StakeRepository() interfaces.StakeRepository { return u.stakes }
func (u *mockUnitOfWork) TradeRepository() interfaces.TradeRepository { return u.trades }
func (u *mockUnitOfWork) WithdrawalRepository() interfaces.WithdrawalRepository {
	return u.withdrawals
}
func (u *mockUnitOfWork) CommissionLedgerRepository() interfaces.CommissionLedgerRepository {
	return u.ledger
}
func (u *mockUnitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	return u.history
}
func (u *mockUnitOfWork) AccrualRunRepository() interfaces.AccrualRunRepository { return u.runs }
func (u *mockUnitOfWork) EventBus() interfaces.EventPublisher { return u.bus }

type mockUnitOfWorkFactory struct {
	uow     *mockUnitOfWork
	created int
}

func (f *mockUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	f.created++
	return f.uow
}

// fakeSweepLock grants or refuses the lease
type fakeSweepLock struct {
	grant    bool
	err      error
	acquired int
	released int
}

func (l *fakeSweepLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if !l.grant {
		return nil, false, nil
	}
	l.acquired++
	return func() { l.released++ }, true, nil
}
