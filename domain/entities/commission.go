package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionType classifies a ledger entry
type CommissionType string

const (
	CommissionTypeDirectDaily  CommissionType = "DIRECT_DAILY"
	CommissionTypeIndirectNear CommissionType = "INDIRECT_L1_3"
	CommissionTypeIndirectFar  CommissionType = "INDIRECT_L4_6"
	CommissionTypeLeaderBonus  CommissionType = "LEADER_BONUS"
)

// IsIndirect reports whether the type is a layered deposit commission
func (t CommissionType) IsIndirect() bool {
	return t == CommissionTypeIndirectNear || t == CommissionTypeIndirectFar
}

// TransactionType maps the entry to the balance history type it credits under
func (t CommissionType) TransactionType() TransactionType {
	if t == CommissionTypeLeaderBonus {
		return TransactionTypeLeaderBonus
	}
	return TransactionTypeCommission
}

// CommissionEntry is an immutable commission ledger row. There is at most one
// per (UserID, SourceUserID, DepositID, Type) and Amount is always positive.
type CommissionEntry struct {
	ID           int64           `db:"id"`
	UserID       int64           `db:"user_id"`
	SourceUserID int64           `db:"source_user_id"`
	DepositID    *int64          `db:"deposit_id"`
	Type         CommissionType  `db:"type"`
	Layer        *int            `db:"layer"`
	Percentage   decimal.Decimal `db:"percentage"`
	Amount       decimal.Decimal `db:"amount"`
	Note         string          `db:"note"`
	CreatedAt    time.Time       `db:"created_at"`
}
