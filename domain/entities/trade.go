package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an AI trading position. Profit accumulates in TotalEarned and is
// paid out together with the principal on unlock.
type Trade struct {
	ID             int64           `db:"id"`
	UserID         int64           `db:"user_id"`
	Amount         decimal.Decimal `db:"amount"`
	DailyRate      decimal.Decimal `db:"daily_rate"`
	LockedUntil    time.Time       `db:"locked_until"`
	Active         bool            `db:"active"`
	TotalEarned    decimal.Decimal `db:"total_earned"`
	LastProfitCalc *time.Time      `db:"last_profit_calc"`
	CreatedAt      time.Time       `db:"created_at"`
	ClosedAt       *time.Time      `db:"closed_at"`
}

// Watermark is the point profit was last calculated to
func (t *Trade) Watermark() time.Time {
	if t.LastProfitCalc != nil {
		return *t.LastProfitCalc
	}
	return t.CreatedAt
}

// AccrualDue returns the whole days elapsed since the watermark and the
// profit they earn
func (t *Trade) AccrualDue(now time.Time) (int, decimal.Decimal) {
	days := WholeDaysBetween(t.Watermark(), now)
	if days <= 0 {
		return 0, decimal.Zero
	}
	return days, RoundMoney(t.Amount.Mul(t.DailyRate).Mul(decimal.NewFromInt(int64(days))))
}

// CanUnlock reports whether the 24h lock is over
func (t *Trade) CanUnlock(now time.Time) bool {
	return !now.Before(t.LockedUntil)
}

// Payout is principal plus everything earned
func (t *Trade) Payout() decimal.Decimal {
	return t.Amount.Add(t.TotalEarned)
}

type TradeUnlockResult struct {
	TradeID       int64
	UserID        int64
	Payout        decimal.Decimal
	WalletBalance decimal.Decimal
}
