package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/domain/utils"
)

// WithdrawalLimits bounds a single withdrawal request, inclusive
type WithdrawalLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

type withdrawalService struct {
	withdrawalRepo     interfaces.WithdrawalRepository
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	clock              interfaces.Clock
	schedule           entities.RateSchedule
	limits             WithdrawalLimits
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(
	withdrawalRepo interfaces.WithdrawalRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
	limits WithdrawalLimits,
) interfaces.WithdrawalService {
	return &withdrawalService{
		withdrawalRepo:     withdrawalRepo,
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		clock:              clock,
		schedule:           schedule,
		limits:             limits,
	}
}

// RequestWithdrawal takes amount plus fee out of the wallet and leaves the
// withdrawal pending for an admin decision.
func (s *withdrawalService) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, securityPassword string) (*entities.Withdrawal, error) {
	if amount.LessThan(s.limits.Min) || amount.GreaterThan(s.limits.Max) {
		return nil, domain.Validation("withdrawal must be between %s and %s", s.limits.Min.StringFixed(2), s.limits.Max.StringFixed(2))
	}
	if !amount.Equal(entities.RoundMoney(amount)) {
		return nil, domain.Validation("amount %s has more than two decimal places", amount)
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}

	if user.HasSecurityPassword() {
		err := bcrypt.CompareHashAndPassword([]byte(*user.SecurityPasswordHash), []byte(securityPassword))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.Validation("security password does not match")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to verify security password: %w", err)
		}
	}

	fee, total := entities.WithdrawalFee(amount, s.schedule.WithdrawalFeePercent)
	if !user.CanAfford(total) {
		return nil, domain.Insufficient("withdrawal of %s needs %s including fee, wallet holds %s",
			amount.StringFixed(2), total.StringFixed(2), user.WalletBalance.StringFixed(2))
	}

	withdrawal := &entities.Withdrawal{
		UserID:         userID,
		Amount:         amount,
		Fee:            fee,
		TotalDeduction: total,
		Status:         entities.WithdrawalStatusPending,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	if _, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          userID,
		Amount:          total.Neg(),
		TransactionType: entities.TransactionTypeWithdrawal,
		RelatedType:     entities.RelatedTypeWithdrawal,
		RelatedID:       withdrawal.ID,
		Metadata:        map[string]any{"fee": fee.StringFixed(2)},
	}); err != nil {
		return nil, fmt.Errorf("failed to debit withdrawal: %w", err)
	}

	if err := s.userRepo.AddTotalUSDT(ctx, userID, total.Neg()); err != nil {
		return nil, fmt.Errorf("failed to update total USDT: %w", err)
	}

	if err := s.eventPublisher.Publish(events.WithdrawalRequestedEvent{
		WithdrawalID:   withdrawal.ID,
		UserID:         userID,
		Amount:         amount,
		TotalDeduction: total,
	}); err != nil {
		log.WithError(err).Error("Failed to publish withdrawal requested event")
	}

	log.WithFields(log.Fields{
		"userID":       userID,
		"withdrawalID": withdrawal.ID,
		"amount":       amount.StringFixed(2),
		"fee":          fee.StringFixed(2),
	}).Info("Withdrawal requested")

	return withdrawal, nil
}

// ResolveWithdrawal applies an admin decision to a pending withdrawal.
// Reject and hold give back the full deduction, fee included.
func (s *withdrawalService) ResolveWithdrawal(ctx context.Context, withdrawalID int64, decision entities.WithdrawalDecision) (*entities.Withdrawal, error) {
	status, ok := decision.Status()
	if !ok {
		return nil, domain.Validation("unknown withdrawal decision %q", decision)
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", withdrawalID, err)
	}
	if withdrawal == nil {
		return nil, domain.NotFound("withdrawal %d not found", withdrawalID)
	}
	if withdrawal.Status != entities.WithdrawalStatusPending {
		return nil, domain.Conflict("withdrawal %d is already %s", withdrawalID, withdrawal.Status)
	}

	now := s.clock.Now()
	resolved, err := s.withdrawalRepo.Resolve(ctx, withdrawalID, status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve withdrawal %d: %w", withdrawalID, err)
	}
	if !resolved {
		return nil, domain.Conflict("withdrawal %d is no longer pending", withdrawalID)
	}
	withdrawal.Status = status
	withdrawal.ResolvedAt = &now

	refunded := decimal.Zero
	if decision.RefundsFunds() {
		refunded = withdrawal.TotalDeduction
		if _, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
			UserID:          withdrawal.UserID,
			Amount:          refunded,
			TransactionType: entities.TransactionTypeWithdrawalRefund,
			RelatedType:     entities.RelatedTypeWithdrawal,
			RelatedID:       withdrawalID,
			Metadata:        map[string]any{"decision": string(decision)},
		}); err != nil {
			return nil, fmt.Errorf("failed to refund withdrawal: %w", err)
		}
		if err := s.userRepo.AddTotalUSDT(ctx, withdrawal.UserID, refunded); err != nil {
			return nil, fmt.Errorf("failed to update total USDT: %w", err)
		}
	}

	if err := s.eventPublisher.Publish(events.WithdrawalResolvedEvent{
		WithdrawalID: withdrawalID,
		UserID:       withdrawal.UserID,
		Status:       status,
		Refunded:     refunded,
	}); err != nil {
		log.WithError(err).Error("Failed to publish withdrawal resolved event")
	}

	log.WithFields(log.Fields{
		"withdrawalID": withdrawalID,
		"userID":       withdrawal.UserID,
		"status":       status,
		"refunded":     refunded.StringFixed(2),
	}).Info("Withdrawal resolved")

	return withdrawal, nil
}
