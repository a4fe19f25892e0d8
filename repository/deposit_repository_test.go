package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/repository/testutil"
)

func TestDepositRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewDepositRepository(testDB.DB)
	ctx := context.Background()

	owner := mustCreateUser(t, users, "depositor", nil)

	deposit := testutil.CreateTestDeposit(owner.ID, entities.Money("150"), "0xabc")
	require.NoError(t, repo.Create(ctx, deposit))

	t.Run("hash is unique", func(t *testing.T) {
		dup := testutil.CreateTestDeposit(owner.ID, entities.Money("10"), "0xabc")
		err := repo.Create(ctx, dup)
		assert.True(t, errors.Is(err, domain.ErrStateConflict), "got %v", err)
	})

	t.Run("find by hash", func(t *testing.T) {
		found, err := repo.FindByHash(ctx, "0xabc")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, deposit.ID, found.ID)
		assert.True(t, found.IsPending())

		missing, err := repo.FindByHash(ctx, "0xmissing")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("resolve only from pending", func(t *testing.T) {
		now := time.Now().UTC()

		done, err := repo.Resolve(ctx, deposit.ID, entities.DepositStatusConfirmed, now)
		require.NoError(t, err)
		assert.True(t, done)

		done, err = repo.Resolve(ctx, deposit.ID, entities.DepositStatusRejected, now)
		require.NoError(t, err)
		assert.False(t, done)

		loaded, err := repo.GetByID(ctx, deposit.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.DepositStatusConfirmed, loaded.Status)
		assert.NotNil(t, loaded.ResolvedAt)
	})
}

func TestWithdrawalRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewWithdrawalRepository(testDB.DB)
	ctx := context.Background()

	owner := mustCreateUser(t, users, "withdrawer", nil)

	fee, total := entities.WithdrawalFee(entities.Money("100"), entities.Money("5"))
	withdrawal := &entities.Withdrawal{
		UserID:         owner.ID,
		Amount:         entities.Money("100"),
		Fee:            fee,
		TotalDeduction: total,
		Status:         entities.WithdrawalStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, withdrawal))

	loaded, err := repo.GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assertDec(t, "5", loaded.Fee)
	assertDec(t, "105", loaded.TotalDeduction)
	assert.Equal(t, entities.WithdrawalStatusPending, loaded.Status)

	done, err := repo.Resolve(ctx, withdrawal.ID, entities.WithdrawalStatusOnHold, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.Resolve(ctx, withdrawal.ID, entities.WithdrawalStatusApproved, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, done)

	missing, err := repo.GetByID(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
