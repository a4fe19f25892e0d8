package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/testhelpers"
)

func entryFor(earnerID int64, commissionType entities.CommissionType) any {
	return mock.MatchedBy(func(e *entities.CommissionEntry) bool {
		return e.UserID == earnerID && e.Type == commissionType
	})
}

// Depositor 10 at level 2 under 20 (level 3) under 30 (level 1)
func setupUpline(uow *mockUnitOfWork) {
	a, b := int64(20), int64(30)
	uow.users.On("GetByID", mock.Anything, int64(10)).Return(&entities.User{ID: 10, Level: 2, ReferredBy: &a}, nil)
	uow.users.On("GetByID", mock.Anything, int64(20)).Return(&entities.User{ID: 20, Level: 3, ReferralUnlocked: true, ReferredBy: &b}, nil)
	uow.users.On("GetByID", mock.Anything, int64(30)).Return(&entities.User{ID: 30, Level: 1, ReferralUnlocked: true}, nil)
}

func TestCommissionFanOut_IsolatesFailures(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	factory := &mockUnitOfWorkFactory{uow: uow}
	setupUpline(uow)

	uow.ledger.On("Append", mock.Anything, entryFor(20, entities.CommissionTypeIndirectNear)).Return(true, nil)
	uow.ledger.On("Append", mock.Anything, entryFor(20, entities.CommissionTypeLeaderBonus)).Return(true, nil)
	uow.ledger.On("Append", mock.Anything, entryFor(30, entities.CommissionTypeLeaderBonus)).Return(false, errors.New("deadlock detected"))

	uow.users.On("AddWalletBalance", mock.Anything, int64(20), testhelpers.DecEq("0.90")).Return(testhelpers.Dec("0.90"), nil)
	uow.users.On("AddWalletBalance", mock.Anything, int64(20), testhelpers.DecEq("0.05")).Return(testhelpers.Dec("0.95"), nil)
	uow.users.On("AddCommission", mock.Anything, int64(20), mock.Anything).Return(nil)
	uow.history.On("Record", mock.Anything, mock.Anything).Return(nil)

	fanOut := NewCommissionFanOut(factory, entities.DefaultRateSchedule())
	depositID := int64(99)

	result, err := fanOut.Run(context.Background(), 10, &depositID, testhelpers.Dec("150"), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Planned)
	assert.Len(t, result.Credited, 2)
	assert.Zero(t, result.Skipped)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, int64(30), result.Failures[0].EarnerID)
	assert.Equal(t, entities.CommissionTypeLeaderBonus, result.Failures[0].Type)
	assert.True(t, result.TotalCredited().Equal(testhelpers.Dec("0.95")))

	credited := uow.bus.OfType(events.EventTypeCommissionCredited)
	assert.Len(t, credited, 2)
}

func TestCommissionFanOut_DuplicatesAreSkipped(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	factory := &mockUnitOfWorkFactory{uow: uow}
	setupUpline(uow)

	uow.ledger.On("Append", mock.Anything, mock.Anything).Return(false, nil)

	fanOut := NewCommissionFanOut(factory, entities.DefaultRateSchedule())
	depositID := int64(99)

	result, err := fanOut.Run(context.Background(), 10, &depositID, testhelpers.Dec("150"), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Skipped)
	assert.Empty(t, result.Credited)
	assert.Empty(t, result.Failures)
	uow.users.AssertNotCalled(t, "AddWalletBalance", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, uow.bus.Events)
}

func TestCommissionFanOut_BelowMinimum(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	factory := &mockUnitOfWorkFactory{uow: uow}

	fanOut := NewCommissionFanOut(factory, entities.DefaultRateSchedule())
	result, err := fanOut.Run(context.Background(), 10, nil, testhelpers.Dec("99.99"), 0)
	require.NoError(t, err)

	assert.Zero(t, result.Planned)
	assert.Zero(t, factory.created)
}

func TestCommissionFanOut_UnknownDepositor(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	factory := &mockUnitOfWorkFactory{uow: uow}
	uow.users.On("GetByID", mock.Anything, int64(404)).Return(nil, nil)

	fanOut := NewCommissionFanOut(factory, entities.DefaultRateSchedule())
	_, err := fanOut.Run(context.Background(), 404, nil, testhelpers.Dec("150"), 0)
	require.Error(t, err)
	assert.Equal(t, 1, uow.rolledBack)
}
