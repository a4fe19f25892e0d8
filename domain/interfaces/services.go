package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stakehub/domain/entities"
	"stakehub/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// Clock abstracts time for accrual and lock checks
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// LevelService computes and persists qualification levels
type LevelService interface {
	// ComputeLevel evaluates the level rules against a snapshot
	ComputeLevel(ownTotalUSDT decimal.Decimal, referrals []entities.ReferralSnapshot) int
	// RecomputeLevel re-evaluates a user and returns the resulting level,
	// never lower than the stored one. Unknown users return 0 and no error.
	RecomputeLevel(ctx context.Context, userID int64) (int, error)
}

// CommissionService plans and applies deposit commissions
type CommissionService interface {
	BuildUpline(ctx context.Context, userID int64) ([]*entities.User, error)
	PlanFanOut(depositorID int64, depositID *int64, amount decimal.Decimal, depositorLevel int, upline []*entities.User) []*entities.CommissionEntry
	// ApplyCredit appends entry to the ledger and credits the earner. It
	// returns false without crediting when the entry already exists.
	ApplyCredit(ctx context.Context, entry *entities.CommissionEntry) (bool, error)
}

// StakingService manages stakes and their accrual
type StakingService interface {
	CreateStake(ctx context.Context, userID int64, amount decimal.Decimal, lockDays int) (*entities.Stake, error)
	SettleStake(ctx context.Context, stakeID int64) (decimal.Decimal, error)
	Unstake(ctx context.Context, stakeID int64) (*entities.StakeUnlockResult, error)
	// SettleOrUnlock unstakes a matured stake and accrues any other active stake
	SettleOrUnlock(ctx context.Context, stakeID int64) (*StakeSweepOutcome, error)
	SettleUserStakes(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// StakeSweepOutcome is the result of one stake in a sweep
type StakeSweepOutcome struct {
	StakeID  int64
	Unlocked bool
	Credited decimal.Decimal
}

// TradingService manages AI trading positions
type TradingService interface {
	CreateTrade(ctx context.Context, userID int64, amount decimal.Decimal) (*entities.Trade, error)
	SettleTrade(ctx context.Context, tradeID int64) (decimal.Decimal, error)
	UnlockTrade(ctx context.Context, tradeID int64) (*entities.TradeUnlockResult, error)
	SettleUserTrades(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// WithdrawalService handles withdrawal requests and their resolution
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, securityPassword string) (*entities.Withdrawal, error)
	ResolveWithdrawal(ctx context.Context, withdrawalID int64, decision entities.WithdrawalDecision) (*entities.Withdrawal, error)
}

// DepositService handles deposit intake and confirmation
type DepositService interface {
	CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, txHash string) (*entities.Deposit, error)
	ConfirmDeposit(ctx context.Context, depositID int64) (*entities.DepositConfirmation, error)
	RejectDeposit(ctx context.Context, depositID int64) error
}

// ReferralService registers users into the referral tree
type ReferralService interface {
	Register(ctx context.Context, username string, referredBy *int64, securityPassword string) (*entities.User, error)
}

// WalletService builds wallet summaries, settling pending profit first
type WalletService interface {
	Summary(ctx context.Context, userID int64) (*WalletSummary, error)
}

// WalletSummary is the settled view of a user's funds
type WalletSummary struct {
	UserID                int64
	WalletBalance         decimal.Decimal
	TotalStakes           decimal.Decimal
	ActiveTradePrincipal  decimal.Decimal
	ActiveTradeEarned     decimal.Decimal
	TotalCommissionEarned decimal.Decimal
	CommissionByType      map[entities.CommissionType]decimal.Decimal
	TotalUSDT             decimal.Decimal
	Level                 int
	SettledStakeProfit    decimal.Decimal
	SettledTradeProfit    decimal.Decimal
}
