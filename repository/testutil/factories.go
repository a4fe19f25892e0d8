package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"stakehub/domain/entities"
)

// CreateTestUser creates an unsaved user, optionally under a referrer
func CreateTestUser(username string, referredBy *int64) *entities.User {
	return &entities.User{
		Username:   username,
		ReferredBy: referredBy,
	}
}

// CreateTestDeposit creates an unsaved pending deposit
func CreateTestDeposit(userID int64, amount decimal.Decimal, txHash string) *entities.Deposit {
	return &entities.Deposit{
		UserID:    userID,
		Amount:    amount,
		TxHash:    txHash,
		Status:    entities.DepositStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// CreateTestStake creates an unsaved active stake starting at createdAt
func CreateTestStake(userID int64, principal decimal.Decimal, lockDays int, createdAt time.Time) *entities.Stake {
	rate, _ := entities.DefaultRateSchedule().StakeDailyRate(lockDays)
	return &entities.Stake{
		UserID:      userID,
		Amount:      principal,
		Principal:   principal,
		LockDays:    lockDays,
		DailyRate:   rate,
		LockedUntil: createdAt.Add(time.Duration(lockDays) * 24 * time.Hour),
		Active:      true,
		CreatedAt:   createdAt,
	}
}

// CreateTestTrade creates an unsaved active trade starting at createdAt
func CreateTestTrade(userID int64, amount decimal.Decimal, createdAt time.Time) *entities.Trade {
	schedule := entities.DefaultRateSchedule()
	return &entities.Trade{
		UserID:      userID,
		Amount:      amount,
		DailyRate:   schedule.TradeDailyRate,
		LockedUntil: createdAt.Add(schedule.TradeLockDuration),
		Active:      true,
		CreatedAt:   createdAt,
	}
}

// CreateTestCommission creates an unsaved indirect commission entry
func CreateTestCommission(earnerID, sourceID int64, depositID *int64, layer int, amount decimal.Decimal) *entities.CommissionEntry {
	schedule := entities.DefaultRateSchedule()
	return &entities.CommissionEntry{
		UserID:       earnerID,
		SourceUserID: sourceID,
		DepositID:    depositID,
		Type:         schedule.IndirectType(layer),
		Layer:        &layer,
		Percentage:   entities.Money("0.6"),
		Amount:       amount,
	}
}

// CreateTestAccrualRun creates an unsaved sweep record
func CreateTestAccrualRun(runDate time.Time) *entities.AccrualRun {
	return &entities.AccrualRun{
		RunDate:         runDate,
		StakesProcessed: 12,
		StakesUnlocked:  3,
		TotalCredited:   entities.Money("145.50"),
		ExecutionSummary: map[string]any{
			"failed_stake_ids": []any{},
			"duration_ms":      float64(420),
		},
	}
}
