package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/domain/entities"
	"stakehub/repository/testutil"
)

func TestStakeRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewStakeRepository(testDB.DB)
	ctx := context.Background()

	owner := mustCreateUser(t, users, "staker", nil)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	stake := testutil.CreateTestStake(owner.ID, entities.Money("1000"), 7, start)
	require.NoError(t, repo.Create(ctx, stake))
	require.NotZero(t, stake.ID)

	loaded, err := repo.GetByID(ctx, stake.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Active)
	assert.Equal(t, 7, loaded.LockDays)
	assert.Nil(t, loaded.LastDailyPaidAt)
	assertDec(t, "0.013", loaded.DailyRate)
	assert.True(t, loaded.LockedUntil.Equal(start.Add(7*24*time.Hour)))

	t.Run("accrual advances watermark", func(t *testing.T) {
		watermark := start.Add(3 * 24 * time.Hour)
		require.NoError(t, repo.RecordAccrual(ctx, stake.ID, 3, entities.Money("39"), watermark))

		loaded, err := repo.GetByID(ctx, stake.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.PaidDays)
		assertDec(t, "39", loaded.AccruedProfit)
		require.NotNil(t, loaded.LastDailyPaidAt)
		assert.True(t, loaded.LastDailyPaidAt.Equal(watermark))
	})

	t.Run("active listings", func(t *testing.T) {
		ids, err := repo.ListActiveIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{stake.ID}, ids)

		ids, err = repo.ListActiveIDsByUser(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{stake.ID}, ids)
	})

	t.Run("deactivate only once", func(t *testing.T) {
		closedAt := start.Add(8 * 24 * time.Hour)

		done, err := repo.Deactivate(ctx, stake.ID, entities.Money("91"), closedAt)
		require.NoError(t, err)
		assert.True(t, done)

		done, err = repo.Deactivate(ctx, stake.ID, entities.Money("91"), closedAt)
		require.NoError(t, err)
		assert.False(t, done)

		loaded, err := repo.GetByID(ctx, stake.ID)
		require.NoError(t, err)
		assert.False(t, loaded.Active)
		assertDec(t, "0", loaded.Amount)
		assertDec(t, "1000", loaded.Principal)
		assert.Equal(t, 7, loaded.PaidDays)
		assertDec(t, "91", loaded.AccruedProfit)
		require.NotNil(t, loaded.ClosedAt)

		ids, err := repo.ListActiveIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("accrual on closed stake fails", func(t *testing.T) {
		err := repo.RecordAccrual(ctx, stake.ID, 1, entities.Money("13"), start)
		assert.Error(t, err)
	})
}

func TestTradeRepository_Lifecycle(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewTradeRepository(testDB.DB)
	ctx := context.Background()

	owner := mustCreateUser(t, users, "trader", nil)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	trade := testutil.CreateTestTrade(owner.ID, entities.Money("50"), start)
	require.NoError(t, repo.Create(ctx, trade))

	watermark := start.Add(3 * 24 * time.Hour)
	require.NoError(t, repo.RecordAccrual(ctx, trade.ID, entities.Money("1.80"), watermark))

	active, err := repo.ListActiveByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assertDec(t, "1.80", active[0].TotalEarned)
	assertDec(t, "51.80", active[0].Payout())

	done, err := repo.Deactivate(ctx, trade.ID, watermark)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.Deactivate(ctx, trade.ID, watermark)
	require.NoError(t, err)
	assert.False(t, done)

	active, err = repo.ListActiveByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	missing, err := repo.GetByIDForUpdate(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
