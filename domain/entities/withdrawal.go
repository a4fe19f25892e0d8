package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the lifecycle state of a withdrawal
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusOnHold   WithdrawalStatus = "on_hold"
)

// WithdrawalDecision is an admin's resolution of a pending withdrawal
type WithdrawalDecision string

const (
	WithdrawalDecisionApprove WithdrawalDecision = "approve"
	WithdrawalDecisionReject  WithdrawalDecision = "reject"
	WithdrawalDecisionHold    WithdrawalDecision = "hold"
)

// Status returns the terminal status a decision leads to
func (d WithdrawalDecision) Status() (WithdrawalStatus, bool) {
	switch d {
	case WithdrawalDecisionApprove:
		return WithdrawalStatusApproved, true
	case WithdrawalDecisionReject:
		return WithdrawalStatusRejected, true
	case WithdrawalDecisionHold:
		return WithdrawalStatusOnHold, true
	default:
		return "", false
	}
}

// RefundsFunds reports whether the decision returns the held deduction
func (d WithdrawalDecision) RefundsFunds() bool {
	return d == WithdrawalDecisionReject || d == WithdrawalDecisionHold
}

// Withdrawal holds Amount + Fee out of the wallet from request time until an
// admin resolves it.
type Withdrawal struct {
	ID             int64            `db:"id"`
	UserID         int64            `db:"user_id"`
	Amount         decimal.Decimal  `db:"amount"`
	Fee            decimal.Decimal  `db:"fee"`
	TotalDeduction decimal.Decimal  `db:"total_deduction"`
	Status         WithdrawalStatus `db:"status"`
	CreatedAt      time.Time        `db:"created_at"`
	ResolvedAt     *time.Time       `db:"resolved_at"`
}

// WithdrawalFee returns the fee and the total wallet deduction for amount
func WithdrawalFee(amount, feePercent decimal.Decimal) (fee, total decimal.Decimal) {
	fee = PercentOf(amount, feePercent)
	return fee, amount.Add(fee)
}
