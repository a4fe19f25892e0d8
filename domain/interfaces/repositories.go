package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stakehub/domain/entities"
)

// UserRepository is the user directory. Counter updates are atomic
// increments so concurrent credits to the same user never lose a write.
type UserRepository interface {
	// Create inserts the user and fills in ID and timestamps
	Create(ctx context.Context, user *entities.User) error
	// GetByID returns nil, nil when the user does not exist
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	// GetByIDForUpdate is GetByID with a row lock held until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetDirectReferrals(ctx context.Context, id int64) ([]*entities.User, error)
	ListIDs(ctx context.Context) ([]int64, error)

	// UpdateLevel raises the stored level; it reports false when the stored
	// level is already >= level.
	UpdateLevel(ctx context.Context, id int64, level int, at time.Time) (bool, error)

	// AddWalletBalance adds delta and returns the new balance. A debit that
	// would take the wallet below zero fails with an insufficient_balance
	// domain error and changes nothing.
	AddWalletBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error)
	// AddCommission raises totalCommissionEarned and totalUSDT by amount
	AddCommission(ctx context.Context, id int64, amount decimal.Decimal) error
	AddTotalStakes(ctx context.Context, id int64, delta decimal.Decimal) error
	AddTotalUSDT(ctx context.Context, id int64, delta decimal.Decimal) error
	// RecordDeposit adds to lifetime deposits and totalUSDT, marks the first
	// deposit and flips referralUnlocked once lifetime deposits reach threshold.
	RecordDeposit(ctx context.Context, id int64, amount, unlockThreshold decimal.Decimal) error
}

// DepositRepository defines the interface for deposit data access
type DepositRepository interface {
	Create(ctx context.Context, deposit *entities.Deposit) error
	GetByID(ctx context.Context, id int64) (*entities.Deposit, error)
	FindByHash(ctx context.Context, txHash string) (*entities.Deposit, error)
	// Resolve moves a pending deposit to status. It reports false when the
	// deposit was not pending.
	Resolve(ctx context.Context, id int64, status entities.DepositStatus, at time.Time) (bool, error)
}

// StakeRepository defines the interface for stake data access
type StakeRepository interface {
	Create(ctx context.Context, stake *entities.Stake) error
	GetByID(ctx context.Context, id int64) (*entities.Stake, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Stake, error)
	ListActiveIDs(ctx context.Context) ([]int64, error)
	ListActiveIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	// RecordAccrual advances the watermark and adds days/profit to the paid totals
	RecordAccrual(ctx context.Context, id int64, days int, profit decimal.Decimal, watermark time.Time) error
	// Deactivate zeroes the stake and marks it inactive, only if still
	// active. It reports whether this call did the transition.
	Deactivate(ctx context.Context, id int64, accruedProfit decimal.Decimal, at time.Time) (bool, error)
}

// TradeRepository defines the interface for AI trading positions
type TradeRepository interface {
	Create(ctx context.Context, trade *entities.Trade) error
	GetByID(ctx context.Context, id int64) (*entities.Trade, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Trade, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]*entities.Trade, error)
	RecordAccrual(ctx context.Context, id int64, earned decimal.Decimal, watermark time.Time) error
	Deactivate(ctx context.Context, id int64, at time.Time) (bool, error)
}

// CommissionLedgerRepository is the append-only commission ledger
type CommissionLedgerRepository interface {
	// Append inserts entry. A duplicate (earner, source, deposit, type)
	// tuple is ignored and reported as inserted == false.
	Append(ctx context.Context, entry *entities.CommissionEntry) (bool, error)
	AggregateByUser(ctx context.Context, userID int64) (decimal.Decimal, error)
	AggregateByType(ctx context.Context, userID int64) (map[entities.CommissionType]decimal.Decimal, error)
	GetByDeposit(ctx context.Context, depositID int64) ([]*entities.CommissionEntry, error)
}

// WithdrawalRepository defines the interface for withdrawal data access
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *entities.Withdrawal) error
	GetByID(ctx context.Context, id int64) (*entities.Withdrawal, error)
	// Resolve moves a pending withdrawal to status, reporting false when it
	// was already resolved.
	Resolve(ctx context.Context, id int64, status entities.WithdrawalStatus, at time.Time) (bool, error)
}

// BalanceHistoryRepository defines the interface for wallet audit data access
type BalanceHistoryRepository interface {
	Record(ctx context.Context, history *entities.BalanceHistory) error
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error)
}

// AccrualRunRepository defines the interface for scheduled sweep records
type AccrualRunRepository interface {
	// GetByDate returns the run for the UTC day of date, or nil
	GetByDate(ctx context.Context, date time.Time) (*entities.AccrualRun, error)
	Create(ctx context.Context, run *entities.AccrualRun) error
}
