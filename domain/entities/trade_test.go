package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrade_AccrualDue_ThreeDays(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	trade := &Trade{
		Amount:      Money("50"),
		DailyRate:   Money("0.012"),
		LockedUntil: created.Add(24 * time.Hour),
		Active:      true,
		TotalEarned: Money("0"),
		CreatedAt:   created,
	}

	days, profit := trade.AccrualDue(created.Add(3*24*time.Hour + 2*time.Hour))

	assert.Equal(t, 3, days)
	assert.Equal(t, "1.80", profit.StringFixed(2))
}

func TestTrade_PayoutAndUnlock(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	trade := &Trade{
		Amount:      Money("50"),
		TotalEarned: Money("1.80"),
		LockedUntil: created.Add(24 * time.Hour),
		CreatedAt:   created,
	}

	assert.Equal(t, "51.80", trade.Payout().StringFixed(2))
	assert.False(t, trade.CanUnlock(created.Add(23*time.Hour)))
	assert.True(t, trade.CanUnlock(created.Add(24*time.Hour)))
}
