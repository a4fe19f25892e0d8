package interfaces

import "context"

// TransactionalEventPublisher holds events until the surrounding transaction
// commits
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// UnitOfWork groups repository calls into one database transaction. Events
// published through EventBus are delivered only after Commit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	DepositRepository() DepositRepository
	StakeRepository() StakeRepository
	TradeRepository() TradeRepository
	CommissionLedgerRepository() CommissionLedgerRepository
	WithdrawalRepository() WithdrawalRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	AccrualRunRepository() AccrualRunRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
