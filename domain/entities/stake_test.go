package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newThirtyDayStake(created time.Time) *Stake {
	return &Stake{
		ID:          1,
		UserID:      10,
		Amount:      Money("100"),
		Principal:   Money("100"),
		LockDays:    30,
		DailyRate:   Money("0.015"),
		LockedUntil: created.Add(30 * 24 * time.Hour),
		Active:      true,
		CreatedAt:   created,
	}
}

func TestStake_FullTermProfit(t *testing.T) {
	t.Parallel()

	stake := newThirtyDayStake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "45.00", stake.FullTermProfit().StringFixed(2))
}

func TestStake_AccrualDue(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		paidDays   int
		watermark  *time.Time
		now        time.Time
		wantDays   int
		wantProfit string
	}{
		{
			name:       "less than a day",
			now:        created.Add(23 * time.Hour),
			wantDays:   0,
			wantProfit: "0.00",
		},
		{
			name:       "three whole days from creation",
			now:        created.Add(3*24*time.Hour + 5*time.Hour),
			wantDays:   3,
			wantProfit: "4.50",
		},
		{
			name:       "watermark used when set",
			watermark:  ptrTime(created.Add(10 * 24 * time.Hour)),
			paidDays:   10,
			now:        created.Add(12 * 24 * time.Hour),
			wantDays:   2,
			wantProfit: "3.00",
		},
		{
			name:       "capped at remaining term",
			watermark:  ptrTime(created.Add(28 * 24 * time.Hour)),
			paidDays:   28,
			now:        created.Add(40 * 24 * time.Hour),
			wantDays:   2,
			wantProfit: "3.00",
		},
		{
			name:       "fully paid",
			paidDays:   30,
			now:        created.Add(40 * 24 * time.Hour),
			wantDays:   0,
			wantProfit: "0.00",
		},
		{
			name:       "clock behind watermark",
			now:        created.Add(-time.Hour),
			wantDays:   0,
			wantProfit: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stake := newThirtyDayStake(created)
			stake.PaidDays = tt.paidDays
			stake.LastDailyPaidAt = tt.watermark

			days, profit := stake.AccrualDue(tt.now)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.wantProfit, profit.StringFixed(2))
		})
	}
}

func TestStake_CanUnlock(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stake := newThirtyDayStake(created)

	assert.False(t, stake.CanUnlock(stake.LockedUntil.Add(-time.Second)))
	assert.True(t, stake.CanUnlock(stake.LockedUntil))
	assert.True(t, stake.CanUnlock(stake.LockedUntil.Add(time.Hour)))
}

func TestWholeDaysBetween(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, WholeDaysBetween(base, base))
	assert.Equal(t, 0, WholeDaysBetween(base, base.Add(24*time.Hour-time.Nanosecond)))
	assert.Equal(t, 1, WholeDaysBetween(base, base.Add(24*time.Hour)))
	assert.Equal(t, 7, WholeDaysBetween(base, base.Add(7*24*time.Hour+time.Minute)))
	assert.Equal(t, 0, WholeDaysBetween(base, base.Add(-48*time.Hour)))
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
