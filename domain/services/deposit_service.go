package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/domain/utils"
)

type depositService struct {
	depositRepo        interfaces.DepositRepository
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	clock              interfaces.Clock
	schedule           entities.RateSchedule
}

// NewDepositService creates a new deposit service
func NewDepositService(
	depositRepo interfaces.DepositRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
) interfaces.DepositService {
	return &depositService{
		depositRepo:        depositRepo,
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		clock:              clock,
		schedule:           schedule,
	}
}

func (s *depositService) CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, txHash string) (*entities.Deposit, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, domain.Validation("transaction hash is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Validation("deposit amount must be positive")
	}
	if !amount.Equal(entities.RoundMoney(amount)) {
		return nil, domain.Validation("amount %s has more than two decimal places", amount)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}

	existing, err := s.depositRepo.FindByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction hash: %w", err)
	}
	if existing != nil {
		return nil, domain.Conflict("transaction %s was already submitted", txHash)
	}

	deposit := &entities.Deposit{
		UserID:    userID,
		Amount:    amount,
		TxHash:    txHash,
		Status:    entities.DepositStatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.depositRepo.Create(ctx, deposit); err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"depositID": deposit.ID,
		"amount":    amount.StringFixed(2),
	}).Info("Deposit submitted")

	return deposit, nil
}

// ConfirmDeposit credits a pending deposit. The returned confirmation carries
// the depositor's level at the time of the deposit for the commission fan-out.
func (s *depositService) ConfirmDeposit(ctx context.Context, depositID int64) (*entities.DepositConfirmation, error) {
	deposit, err := s.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %d: %w", depositID, err)
	}
	if deposit == nil {
		return nil, domain.NotFound("deposit %d not found", depositID)
	}
	if !deposit.IsPending() {
		return nil, domain.Conflict("deposit %d is already %s", depositID, deposit.Status)
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, deposit.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", deposit.UserID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", deposit.UserID)
	}

	now := s.clock.Now()
	resolved, err := s.depositRepo.Resolve(ctx, depositID, entities.DepositStatusConfirmed, now)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm deposit %d: %w", depositID, err)
	}
	if !resolved {
		return nil, domain.Conflict("deposit %d is no longer pending", depositID)
	}
	deposit.Status = entities.DepositStatusConfirmed
	deposit.ResolvedAt = &now

	walletBalance, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          deposit.UserID,
		Amount:          deposit.Amount,
		TransactionType: entities.TransactionTypeDeposit,
		RelatedType:     entities.RelatedTypeDeposit,
		RelatedID:       depositID,
		Metadata:        map[string]any{"tx_hash": deposit.TxHash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit deposit: %w", err)
	}

	if err := s.userRepo.RecordDeposit(ctx, deposit.UserID, deposit.Amount, s.schedule.ReferralUnlockThreshold); err != nil {
		return nil, fmt.Errorf("failed to record deposit totals: %w", err)
	}

	unlocks := !user.ReferralUnlocked &&
		user.LifetimeDeposits.Add(deposit.Amount).GreaterThanOrEqual(s.schedule.ReferralUnlockThreshold)

	if err := s.eventPublisher.Publish(events.DepositConfirmedEvent{
		DepositID: depositID,
		UserID:    deposit.UserID,
		Amount:    deposit.Amount,
		UserLevel: user.Level,
		TxHash:    deposit.TxHash,
	}); err != nil {
		log.WithError(err).Error("Failed to publish deposit confirmed event")
	}

	log.WithFields(log.Fields{
		"userID":         deposit.UserID,
		"depositID":      depositID,
		"amount":         deposit.Amount.StringFixed(2),
		"referralUnlock": unlocks,
	}).Info("Deposit confirmed")

	return &entities.DepositConfirmation{
		Deposit:        deposit,
		UserLevel:      user.Level,
		WalletBalance:  walletBalance,
		ReferralUnlock: unlocks,
	}, nil
}

func (s *depositService) RejectDeposit(ctx context.Context, depositID int64) error {
	deposit, err := s.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return fmt.Errorf("failed to get deposit %d: %w", depositID, err)
	}
	if deposit == nil {
		return domain.NotFound("deposit %d not found", depositID)
	}

	resolved, err := s.depositRepo.Resolve(ctx, depositID, entities.DepositStatusRejected, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to reject deposit %d: %w", depositID, err)
	}
	if !resolved {
		return domain.Conflict("deposit %d is already %s", depositID, deposit.Status)
	}

	log.WithField("depositID", depositID).Info("Deposit rejected")
	return nil
}
