package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLevel is the highest qualification level a user can reach
const MaxLevel = 6

// LevelRequirement is the downline condition for reaching one level: at least
// MinReferrals direct referrals whose level is >= MinReferralLevel and whose
// totalUSDT is >= the qualifying amount.
type LevelRequirement struct {
	MinReferrals     int
	MinReferralLevel int
}

// RateSchedule carries every rate and threshold the engines use. It is
// built once and handed to services by value.
type RateSchedule struct {
	// Staking
	StakeDailyRates map[int]decimal.Decimal // lock days -> daily rate as a fraction
	MinStakeAmount  decimal.Decimal

	// AI trading
	TradeDailyRate    decimal.Decimal
	TradeLockDuration time.Duration
	MinTradeAmount    decimal.Decimal

	// Referral unlock and qualification
	ReferralUnlockThreshold decimal.Decimal
	LevelQualifyingUSDT     decimal.Decimal
	LevelRequirements       [MaxLevel + 1]LevelRequirement // index 0 unused

	// Commissions, percentages are in percent units (0.4 means 0.4%)
	MinQualifyingDeposit decimal.Decimal
	IndirectLayers       int
	NearLayerCutoff      int // layers 1..NearLayerCutoff use NearLayerPercent
	NearLayerPercent     [MaxLevel + 1]decimal.Decimal
	FarLayerPercent      [MaxLevel + 1]decimal.Decimal
	LeaderBonusAmount    decimal.Decimal
	LeaderMinLevel       int
	MaxUplineHops        int
	RegistrationLayers   int

	// Withdrawals
	WithdrawalFeePercent decimal.Decimal
}

// DefaultRateSchedule returns the production schedule
func DefaultRateSchedule() RateSchedule {
	return RateSchedule{
		StakeDailyRates: map[int]decimal.Decimal{
			7:  Money("0.013"),
			15: Money("0.014"),
			30: Money("0.015"),
		},
		MinStakeAmount: Money("50"),

		TradeDailyRate:    Money("0.012"),
		TradeLockDuration: 24 * time.Hour,
		MinTradeAmount:    Money("10"),

		ReferralUnlockThreshold: Money("100"),
		LevelQualifyingUSDT:     Money("100"),
		LevelRequirements: [MaxLevel + 1]LevelRequirement{
			{},
			{MinReferrals: 5, MinReferralLevel: 0},
			{MinReferrals: 2, MinReferralLevel: 1},
			{MinReferrals: 2, MinReferralLevel: 2},
			{MinReferrals: 2, MinReferralLevel: 3},
			{MinReferrals: 2, MinReferralLevel: 4},
			{MinReferrals: 3, MinReferralLevel: 5},
		},

		MinQualifyingDeposit: Money("100"),
		IndirectLayers:       6,
		NearLayerCutoff:      3,
		NearLayerPercent: [MaxLevel + 1]decimal.Decimal{
			Money("0"), Money("0.4"), Money("0.5"), Money("0.6"), Money("0.7"), Money("0.8"), Money("0.9"),
		},
		FarLayerPercent: [MaxLevel + 1]decimal.Decimal{
			Money("0"), Money("0.3"), Money("0.4"), Money("0.5"), Money("0.6"), Money("0.7"), Money("0.8"),
		},
		LeaderBonusAmount:  Money("0.05"),
		LeaderMinLevel:     1,
		MaxUplineHops:      10,
		RegistrationLayers: 3,

		WithdrawalFeePercent: Money("5"),
	}
}

// StakeDailyRate looks up the daily rate for a lock period
func (s RateSchedule) StakeDailyRate(lockDays int) (decimal.Decimal, bool) {
	rate, ok := s.StakeDailyRates[lockDays]
	return rate, ok
}

// IndirectPercent returns the commission percentage an earner at level
// receives for a deposit layer hops below them. Zero means no commission.
func (s RateSchedule) IndirectPercent(level, layer int) decimal.Decimal {
	if level < 0 || level > MaxLevel || layer < 1 || layer > s.IndirectLayers {
		return decimal.Zero
	}
	if layer <= s.NearLayerCutoff {
		return s.NearLayerPercent[level]
	}
	return s.FarLayerPercent[level]
}

// IndirectType returns the ledger entry type used for a layer
func (s RateSchedule) IndirectType(layer int) CommissionType {
	if layer <= s.NearLayerCutoff {
		return CommissionTypeIndirectNear
	}
	return CommissionTypeIndirectFar
}
