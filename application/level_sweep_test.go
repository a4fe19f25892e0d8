package application

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/testhelpers"
)

func directs(n, level int, total string) []*entities.User {
	out := make([]*entities.User, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &entities.User{ID: int64(500 + i), Level: level, TotalUSDT: testhelpers.Dec(total)})
	}
	return out
}

func newLevelRefresh(uow *mockUnitOfWork) (*LevelRefreshHandler, *mockUnitOfWorkFactory) {
	factory := &mockUnitOfWorkFactory{uow: uow}
	clock := &testhelpers.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewLevelRefreshHandler(factory, clock, entities.DefaultRateSchedule()), factory
}

// getByIDOrder returns the users GetByID was asked for, in call order
func getByIDOrder(users *testhelpers.MockUserRepository) []int64 {
	var ids []int64
	for _, call := range users.Calls {
		if call.Method == "GetByID" {
			ids = append(ids, call.Arguments.Get(1).(int64))
		}
	}
	return slices.Compact(ids)
}

func TestLevelSweeper_NewestFirstWithIsolatedFailures(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	refresh, factory := newLevelRefresh(uow)
	root := int64(1)

	uow.users.On("ListIDs", mock.Anything).Return([]int64{1, 2, 3}, nil)
	uow.users.On("GetByID", mock.Anything, int64(1)).Return(&entities.User{ID: 1, TotalUSDT: testhelpers.Dec("100")}, nil)
	uow.users.On("GetByID", mock.Anything, int64(2)).Return(&entities.User{ID: 2, TotalUSDT: testhelpers.Dec("100"), ReferredBy: &root}, nil)
	uow.users.On("GetByID", mock.Anything, int64(3)).Return(nil, errors.New("connection reset"))
	uow.users.On("GetDirectReferrals", mock.Anything, int64(1)).Return([]*entities.User{{ID: 2, TotalUSDT: testhelpers.Dec("100")}}, nil)
	uow.users.On("GetDirectReferrals", mock.Anything, int64(2)).Return(directs(5, 0, "100"), nil)
	uow.users.On("UpdateLevel", mock.Anything, int64(2), 1, mock.Anything).Return(true, nil)

	summary, err := NewLevelSweeper(factory, refresh).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.UsersProcessed)
	assert.Equal(t, 1, summary.LevelsRaised)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(3), summary.Failures[0].UserID)

	assert.Equal(t, []int64{3, 2, 1}, getByIDOrder(uow.users))
	uow.users.AssertNotCalled(t, "UpdateLevel", mock.Anything, int64(1), mock.Anything, mock.Anything)

	advanced := uow.bus.OfType(events.EventTypeLevelAdvanced)
	require.Len(t, advanced, 1)
	assert.Equal(t, events.LevelAdvancedEvent{UserID: 2, OldLevel: 0, NewLevel: 1}, advanced[0])
}

func TestLevelSweeper_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	refresh, factory := newLevelRefresh(uow)
	uow.users.On("ListIDs", mock.Anything).Return([]int64{1, 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLevelSweeper(factory, refresh).Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	uow.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestLevelRefreshHandler_AdvanceRaisesReferrer(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	refresh, _ := newLevelRefresh(uow)
	parent := int64(1)

	// User 2 already holds level 1; its referrer now has two level-1 directs
	uow.users.On("GetByID", mock.Anything, int64(2)).Return(&entities.User{ID: 2, Level: 1, TotalUSDT: testhelpers.Dec("100"), ReferredBy: &parent}, nil)
	uow.users.On("GetDirectReferrals", mock.Anything, int64(2)).Return(directs(5, 0, "100"), nil)
	uow.users.On("GetByID", mock.Anything, int64(1)).Return(&entities.User{ID: 1, Level: 1, TotalUSDT: testhelpers.Dec("100")}, nil)
	uow.users.On("GetDirectReferrals", mock.Anything, int64(1)).Return(append(directs(2, 1, "100"), directs(3, 0, "100")...), nil)
	uow.users.On("UpdateLevel", mock.Anything, int64(1), 2, mock.Anything).Return(true, nil)

	err := refresh.HandleLevelAdvanced(context.Background(), events.LevelAdvancedEvent{UserID: 2, OldLevel: 0, NewLevel: 1})
	require.NoError(t, err)

	uow.users.AssertNotCalled(t, "UpdateLevel", mock.Anything, int64(2), mock.Anything, mock.Anything)
	advanced := uow.bus.OfType(events.EventTypeLevelAdvanced)
	require.Len(t, advanced, 1)
	assert.Equal(t, events.LevelAdvancedEvent{UserID: 1, OldLevel: 1, NewLevel: 2}, advanced[0])
}

func TestLevelRefreshHandler_RootStopsClimb(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	refresh, factory := newLevelRefresh(uow)

	uow.users.On("GetByID", mock.Anything, int64(1)).Return(&entities.User{ID: 1, Level: 2, TotalUSDT: testhelpers.Dec("100")}, nil)
	uow.users.On("GetDirectReferrals", mock.Anything, int64(1)).Return(directs(5, 0, "100"), nil)

	require.NoError(t, refresh.HandleLevelAdvanced(context.Background(), events.LevelAdvancedEvent{UserID: 1, OldLevel: 1, NewLevel: 2}))
	assert.Equal(t, 1, factory.created, "a user without upline recomputes only itself")
	assert.Empty(t, uow.bus.Events)
}

func TestLevelRefreshHandler_RejectsWrongEvent(t *testing.T) {
	t.Parallel()

	uow := newMockUnitOfWork()
	refresh, factory := newLevelRefresh(uow)

	err := refresh.HandleLevelAdvanced(context.Background(), events.DepositConfirmedEvent{UserID: 1})
	require.Error(t, err)
	assert.Zero(t, factory.created)
}
