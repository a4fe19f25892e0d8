package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeDeposit    RelatedType = "deposit"
	RelatedTypeStake      RelatedType = "stake"
	RelatedTypeTrade      RelatedType = "trade"
	RelatedTypeWithdrawal RelatedType = "withdrawal"
	RelatedTypeCommission RelatedType = "commission"
)

// BalanceHistory is one audited wallet change
type BalanceHistory struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	ChangeAmount    decimal.Decimal `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	Metadata        map[string]any  `db:"metadata"`
	RelatedID       *int64          `db:"related_id"`
	RelatedType     *RelatedType    `db:"related_type"`
	CreatedAt       time.Time       `db:"created_at"`
}

// IsPositiveChange returns true if the change amount is positive
func (bh *BalanceHistory) IsPositiveChange() bool {
	return bh.ChangeAmount.IsPositive()
}

// Balanced reports whether before + change == after
func (bh *BalanceHistory) Balanced() bool {
	return bh.BalanceBefore.Add(bh.ChangeAmount).Equal(bh.BalanceAfter)
}

// NewBalanceHistory builds an entry from the post-change balance
func NewBalanceHistory(userID int64, after, change decimal.Decimal, txType TransactionType, relatedType RelatedType, relatedID int64) *BalanceHistory {
	return &BalanceHistory{
		UserID:          userID,
		BalanceBefore:   after.Sub(change),
		BalanceAfter:    after,
		ChangeAmount:    change,
		TransactionType: txType,
		Metadata:        map[string]any{},
		RelatedID:       &relatedID,
		RelatedType:     &relatedType,
	}
}
