package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stake is a fixed-term position. Profit is simple interest on Principal.
// Daily accrual streams it into the wallet one whole day at a time, and
// unlock pays the days that were not streamed yet, so PaidDays never
// exceeds LockDays.
type Stake struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	Amount          decimal.Decimal `db:"amount"`
	Principal       decimal.Decimal `db:"principal"`
	LockDays        int             `db:"lock_days"`
	DailyRate       decimal.Decimal `db:"daily_rate"`
	LockedUntil     time.Time       `db:"locked_until"`
	Active          bool            `db:"active"`
	LastDailyPaidAt *time.Time      `db:"last_daily_paid_at"`
	PaidDays        int             `db:"paid_days"`
	AccruedProfit   decimal.Decimal `db:"accrued_profit"`
	CreatedAt       time.Time       `db:"created_at"`
	ClosedAt        *time.Time      `db:"closed_at"`
}

// Watermark is the point accrual was last settled to
func (s *Stake) Watermark() time.Time {
	if s.LastDailyPaidAt != nil {
		return *s.LastDailyPaidAt
	}
	return s.CreatedAt
}

// RemainingDays is the number of term days not yet credited
func (s *Stake) RemainingDays() int {
	if s.PaidDays >= s.LockDays {
		return 0
	}
	return s.LockDays - s.PaidDays
}

// DailyProfit is the simple interest for one day
func (s *Stake) DailyProfit() decimal.Decimal {
	return s.Principal.Mul(s.DailyRate)
}

// AccrualDue returns how many whole days can be credited at now and the
// profit for them, capped at the remaining term.
func (s *Stake) AccrualDue(now time.Time) (int, decimal.Decimal) {
	days := WholeDaysBetween(s.Watermark(), now)
	if remaining := s.RemainingDays(); days > remaining {
		days = remaining
	}
	if days <= 0 {
		return 0, decimal.Zero
	}
	return days, RoundMoney(s.DailyProfit().Mul(decimal.NewFromInt(int64(days))))
}

// FullTermProfit is principal × dailyRate × lockDays
func (s *Stake) FullTermProfit() decimal.Decimal {
	return RoundMoney(s.DailyProfit().Mul(decimal.NewFromInt(int64(s.LockDays))))
}

// CanUnlock reports whether the lock period is over
func (s *Stake) CanUnlock(now time.Time) bool {
	return !now.Before(s.LockedUntil)
}

// StakeUnlockResult describes an unstake. Profit and TotalRefund are the
// full-term figures; CreditedNow is what this unlock put in the wallet after
// subtracting profit already streamed by daily accrual.
type StakeUnlockResult struct {
	StakeID       int64
	UserID        int64
	Principal     decimal.Decimal
	Profit        decimal.Decimal
	TotalRefund   decimal.Decimal
	CreditedNow   decimal.Decimal
	WalletBalance decimal.Decimal
}

// WholeDaysBetween counts complete 24h periods from since to now
func WholeDaysBetween(since, now time.Time) int {
	if !now.After(since) {
		return 0
	}
	return int(now.Sub(since) / (24 * time.Hour))
}
