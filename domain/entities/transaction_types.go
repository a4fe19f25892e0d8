package entities

// TransactionType represents the type of wallet balance change
type TransactionType string

const (
	// Funding
	TransactionTypeDeposit          TransactionType = "deposit"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
	TransactionTypeWithdrawalRefund TransactionType = "withdrawal_refund"

	// Positions
	TransactionTypeStakeLock    TransactionType = "stake_lock"
	TransactionTypeStakeAccrual TransactionType = "stake_accrual"
	TransactionTypeStakeUnlock  TransactionType = "stake_unlock"
	TransactionTypeTradeOpen    TransactionType = "trade_open"
	TransactionTypeTradeUnlock  TransactionType = "trade_unlock"

	// Referral earnings
	TransactionTypeCommission  TransactionType = "commission"
	TransactionTypeLeaderBonus TransactionType = "leader_bonus"
)

// IsCredit returns true for types that add to the wallet
func (tt TransactionType) IsCredit() bool {
	switch tt {
	case TransactionTypeDeposit, TransactionTypeWithdrawalRefund,
		TransactionTypeStakeAccrual, TransactionTypeStakeUnlock,
		TransactionTypeTradeUnlock, TransactionTypeCommission, TransactionTypeLeaderBonus:
		return true
	}
	return false
}

// IsReferralEarning returns true for commission credits
func (tt TransactionType) IsReferralEarning() bool {
	return tt == TransactionTypeCommission || tt == TransactionTypeLeaderBonus
}

// IsEarning returns true for credits that raise the user's valuation
// rather than move their own money around
func (tt TransactionType) IsEarning() bool {
	return tt.IsReferralEarning() || tt == TransactionTypeStakeAccrual
}
