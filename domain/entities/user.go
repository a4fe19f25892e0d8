package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a platform account. Level only ever rises and ReferredBy is fixed
// at registration.
type User struct {
	ID                    int64           `db:"id"`
	Username              string          `db:"username"`
	WalletBalance         decimal.Decimal `db:"wallet_balance"`
	TotalStakes           decimal.Decimal `db:"total_stakes"`
	TotalCommissionEarned decimal.Decimal `db:"total_commission_earned"`
	LifetimeDeposits      decimal.Decimal `db:"lifetime_deposits"`
	TotalUSDT             decimal.Decimal `db:"total_usdt"`
	Level                 int             `db:"level"`
	ReferredBy            *int64          `db:"referred_by"`
	ReferralUnlocked      bool            `db:"referral_unlocked"`
	FirstDepositDone      bool            `db:"first_deposit_done"`
	SecurityPasswordHash  *string         `db:"security_password_hash"`
	LevelUpdatedAt        *time.Time      `db:"level_updated_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// HasUpline reports whether the user was referred by someone
func (u *User) HasUpline() bool {
	return u.ReferredBy != nil
}

// CanAfford checks the wallet against an amount
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.WalletBalance.GreaterThanOrEqual(amount)
}

// IsLeader reports whether the user qualifies for the flat leader bonus
func (u *User) IsLeader(minLevel int) bool {
	return u.ReferralUnlocked && u.Level >= minLevel
}

// HasSecurityPassword reports whether withdrawals must be confirmed with a password
func (u *User) HasSecurityPassword() bool {
	return u.SecurityPasswordHash != nil && *u.SecurityPasswordHash != ""
}

// ReferralSnapshot is the slice of a direct referral the level engine reads
type ReferralSnapshot struct {
	UserID    int64
	TotalUSDT decimal.Decimal
	Level     int
}

// Snapshot captures the fields the level engine needs
func (u *User) Snapshot() ReferralSnapshot {
	return ReferralSnapshot{UserID: u.ID, TotalUSDT: u.TotalUSDT, Level: u.Level}
}
