package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus is the lifecycle state of a deposit
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusRejected  DepositStatus = "rejected"
)

// Deposit is an on-chain transfer into a user's wallet. TxHash is unique, so
// the same transaction can never be credited twice.
type Deposit struct {
	ID         int64           `db:"id"`
	UserID     int64           `db:"user_id"`
	Amount     decimal.Decimal `db:"amount"`
	TxHash     string          `db:"tx_hash"`
	Status     DepositStatus   `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	ResolvedAt *time.Time      `db:"resolved_at"`
}

// IsPending reports whether the deposit can still be confirmed or rejected
func (d *Deposit) IsPending() bool {
	return d.Status == DepositStatusPending
}

// DepositConfirmation is what the deposit service hands to the commission
// fan-out once a deposit has been credited.
type DepositConfirmation struct {
	Deposit        *Deposit
	UserLevel      int
	WalletBalance  decimal.Decimal
	ReferralUnlock bool // the deposit crossed the unlock threshold
}
