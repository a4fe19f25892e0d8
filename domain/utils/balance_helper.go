package utils

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
)

// BalanceChange describes one wallet movement
type BalanceChange struct {
	UserID          int64
	Amount          decimal.Decimal // signed, negative debits
	TransactionType entities.TransactionType
	RelatedType     entities.RelatedType
	RelatedID       int64
	Metadata        map[string]any
}

// ApplyBalanceChange moves the wallet and records the change. It is the
// single entry point for wallet mutations and must run inside the caller's
// transaction.
func ApplyBalanceChange(ctx context.Context, userRepo interfaces.UserRepository, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher, change BalanceChange) (decimal.Decimal, error) {
	after, err := userRepo.AddWalletBalance(ctx, change.UserID, change.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	history := entities.NewBalanceHistory(change.UserID, after, change.Amount, change.TransactionType, change.RelatedType, change.RelatedID)
	for k, v := range change.Metadata {
		history.Metadata[k] = v
	}

	if err := RecordBalanceChange(ctx, balanceHistoryRepo, eventPublisher, history); err != nil {
		return decimal.Zero, err
	}
	return after, nil
}

// RecordBalanceChange records a balance history entry and emits the change event
func RecordBalanceChange(ctx context.Context, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher, history *entities.BalanceHistory) error {
	if err := balanceHistoryRepo.Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		ChangeAmount:    history.ChangeAmount,
		TransactionType: history.TransactionType,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"oldBalance":      event.OldBalance.StringFixed(2),
		"newBalance":      event.NewBalance.StringFixed(2),
		"transactionType": event.TransactionType,
		"changeAmount":    event.ChangeAmount.StringFixed(2),
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}
