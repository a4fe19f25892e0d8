package events

import (
	"github.com/shopspring/decimal"

	"stakehub/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeUserRegistered      EventType = "user_registered"
	EventTypeDepositConfirmed    EventType = "deposit_confirmed"
	EventTypeCommissionCredited  EventType = "commission_credited"
	EventTypeLevelAdvanced       EventType = "level_advanced"
	EventTypeStakeUnlocked       EventType = "stake_unlocked"
	EventTypeTradeUnlocked       EventType = "trade_unlocked"
	EventTypeWithdrawalRequested EventType = "withdrawal_requested"
	EventTypeWithdrawalResolved  EventType = "withdrawal_resolved"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is published for every recorded wallet change
type BalanceChangeEvent struct {
	UserID          int64
	OldBalance      decimal.Decimal
	NewBalance      decimal.Decimal
	ChangeAmount    decimal.Decimal
	TransactionType entities.TransactionType
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

type UserRegisteredEvent struct {
	UserID     int64
	Username   string
	ReferredBy *int64
}

func (e UserRegisteredEvent) Type() EventType {
	return EventTypeUserRegistered
}

// DepositConfirmedEvent is published once per deposit, after the wallet credit commits
type DepositConfirmedEvent struct {
	DepositID int64
	UserID    int64
	Amount    decimal.Decimal
	UserLevel int
	TxHash    string
}

func (e DepositConfirmedEvent) Type() EventType {
	return EventTypeDepositConfirmed
}

type CommissionCreditedEvent struct {
	EarnerID       int64
	SourceUserID   int64
	DepositID      *int64
	CommissionType entities.CommissionType
	Amount         decimal.Decimal
}

func (e CommissionCreditedEvent) Type() EventType {
	return EventTypeCommissionCredited
}

type LevelAdvancedEvent struct {
	UserID   int64
	OldLevel int
	NewLevel int
}

func (e LevelAdvancedEvent) Type() EventType {
	return EventTypeLevelAdvanced
}

type StakeUnlockedEvent struct {
	StakeID     int64
	UserID      int64
	Principal   decimal.Decimal
	Profit      decimal.Decimal
	CreditedNow decimal.Decimal
}

func (e StakeUnlockedEvent) Type() EventType {
	return EventTypeStakeUnlocked
}

type TradeUnlockedEvent struct {
	TradeID int64
	UserID  int64
	Payout  decimal.Decimal
}

func (e TradeUnlockedEvent) Type() EventType {
	return EventTypeTradeUnlocked
}

type WithdrawalRequestedEvent struct {
	WithdrawalID   int64
	UserID         int64
	Amount         decimal.Decimal
	TotalDeduction decimal.Decimal
}

func (e WithdrawalRequestedEvent) Type() EventType {
	return EventTypeWithdrawalRequested
}

type WithdrawalResolvedEvent struct {
	WithdrawalID int64
	UserID       int64
	Status       entities.WithdrawalStatus
	Refunded     decimal.Decimal
}

func (e WithdrawalResolvedEvent) Type() EventType {
	return EventTypeWithdrawalResolved
}
