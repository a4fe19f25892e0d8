package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/domain/utils"
)

type stakingService struct {
	stakeRepo          interfaces.StakeRepository
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	clock              interfaces.Clock
	schedule           entities.RateSchedule
}

// NewStakingService creates a new staking service
func NewStakingService(
	stakeRepo interfaces.StakeRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
) interfaces.StakingService {
	return &stakingService{
		stakeRepo:          stakeRepo,
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		clock:              clock,
		schedule:           schedule,
	}
}

// CreateStake moves amount from the wallet into a new stake
func (s *stakingService) CreateStake(ctx context.Context, userID int64, amount decimal.Decimal, lockDays int) (*entities.Stake, error) {
	if amount.LessThan(s.schedule.MinStakeAmount) {
		return nil, domain.Validation("minimum stake is %s", s.schedule.MinStakeAmount.StringFixed(2))
	}
	if !amount.Equal(entities.RoundMoney(amount)) {
		return nil, domain.Validation("amount %s has more than two decimal places", amount)
	}
	rate, ok := s.schedule.StakeDailyRate(lockDays)
	if !ok {
		return nil, domain.Validation("unsupported lock period of %d days", lockDays)
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}
	if !user.CanAfford(amount) {
		return nil, domain.Insufficient("wallet balance %s is below %s", user.WalletBalance.StringFixed(2), amount.StringFixed(2))
	}

	now := s.clock.Now()
	stake := &entities.Stake{
		UserID:        userID,
		Amount:        amount,
		Principal:     amount,
		LockDays:      lockDays,
		DailyRate:     rate,
		LockedUntil:   now.AddDate(0, 0, lockDays),
		Active:        true,
		AccruedProfit: decimal.Zero,
		CreatedAt:     now,
	}
	if err := s.stakeRepo.Create(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to create stake: %w", err)
	}

	if _, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          userID,
		Amount:          amount.Neg(),
		TransactionType: entities.TransactionTypeStakeLock,
		RelatedType:     entities.RelatedTypeStake,
		RelatedID:       stake.ID,
		Metadata:        map[string]any{"lock_days": lockDays},
	}); err != nil {
		return nil, fmt.Errorf("failed to debit stake amount: %w", err)
	}

	if err := s.userRepo.AddTotalStakes(ctx, userID, amount); err != nil {
		return nil, fmt.Errorf("failed to update total stakes: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   userID,
		"stakeID":  stake.ID,
		"amount":   amount.StringFixed(2),
		"lockDays": lockDays,
	}).Info("Stake created")

	return stake, nil
}

// SettleStake credits the whole days elapsed since the stake's watermark.
// Inactive stakes settle to zero.
func (s *stakingService) SettleStake(ctx context.Context, stakeID int64) (decimal.Decimal, error) {
	stake, err := s.stakeRepo.GetByIDForUpdate(ctx, stakeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get stake %d: %w", stakeID, err)
	}
	if stake == nil {
		return decimal.Zero, domain.NotFound("stake %d not found", stakeID)
	}
	return s.accrue(ctx, stake)
}

func (s *stakingService) accrue(ctx context.Context, stake *entities.Stake) (decimal.Decimal, error) {
	if !stake.Active {
		return decimal.Zero, nil
	}

	now := s.clock.Now()
	days, profit := stake.AccrualDue(now)
	if days == 0 {
		return decimal.Zero, nil
	}

	if err := s.stakeRepo.RecordAccrual(ctx, stake.ID, days, profit, now); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record accrual for stake %d: %w", stake.ID, err)
	}
	stake.PaidDays += days
	stake.AccruedProfit = stake.AccruedProfit.Add(profit)
	stake.LastDailyPaidAt = &now

	if !profit.IsPositive() {
		return decimal.Zero, nil
	}

	if _, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          stake.UserID,
		Amount:          profit,
		TransactionType: entities.TransactionTypeStakeAccrual,
		RelatedType:     entities.RelatedTypeStake,
		RelatedID:       stake.ID,
		Metadata:        map[string]any{"days": days},
	}); err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit stake accrual: %w", err)
	}
	if err := s.userRepo.AddTotalUSDT(ctx, stake.UserID, profit); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update total USDT: %w", err)
	}

	log.WithFields(log.Fields{
		"stakeID": stake.ID,
		"userID":  stake.UserID,
		"days":    days,
		"profit":  profit.StringFixed(2),
	}).Debug("Stake accrual credited")

	return profit, nil
}

// Unstake closes a matured stake. The wallet receives the principal plus
// whatever part of the full-term profit daily accrual has not paid yet.
func (s *stakingService) Unstake(ctx context.Context, stakeID int64) (*entities.StakeUnlockResult, error) {
	stake, err := s.stakeRepo.GetByIDForUpdate(ctx, stakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stake %d: %w", stakeID, err)
	}
	if stake == nil {
		return nil, domain.NotFound("stake %d not found", stakeID)
	}
	return s.unlock(ctx, stake)
}

func (s *stakingService) unlock(ctx context.Context, stake *entities.Stake) (*entities.StakeUnlockResult, error) {
	if !stake.Active {
		return nil, domain.Conflict("stake %d is already unlocked", stake.ID)
	}
	now := s.clock.Now()
	if !stake.CanUnlock(now) {
		return nil, domain.Conflict("stake %d is locked until %s", stake.ID, stake.LockedUntil.Format("2006-01-02 15:04:05 MST"))
	}

	fullProfit := stake.FullTermProfit()
	remainingProfit := fullProfit.Sub(stake.AccruedProfit)
	if remainingProfit.IsNegative() {
		remainingProfit = decimal.Zero
	}
	creditedNow := stake.Principal.Add(remainingProfit)

	deactivated, err := s.stakeRepo.Deactivate(ctx, stake.ID, fullProfit, now)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate stake %d: %w", stake.ID, err)
	}
	if !deactivated {
		return nil, domain.Conflict("stake %d is already unlocked", stake.ID)
	}

	walletBalance, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          stake.UserID,
		Amount:          creditedNow,
		TransactionType: entities.TransactionTypeStakeUnlock,
		RelatedType:     entities.RelatedTypeStake,
		RelatedID:       stake.ID,
		Metadata: map[string]any{
			"principal":        stake.Principal.StringFixed(2),
			"remaining_profit": remainingProfit.StringFixed(2),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit stake unlock: %w", err)
	}

	if err := s.userRepo.AddTotalStakes(ctx, stake.UserID, stake.Principal.Neg()); err != nil {
		return nil, fmt.Errorf("failed to update total stakes: %w", err)
	}
	if remainingProfit.IsPositive() {
		if err := s.userRepo.AddTotalUSDT(ctx, stake.UserID, remainingProfit); err != nil {
			return nil, fmt.Errorf("failed to update total USDT: %w", err)
		}
	}

	result := &entities.StakeUnlockResult{
		StakeID:       stake.ID,
		UserID:        stake.UserID,
		Principal:     stake.Principal,
		Profit:        fullProfit,
		TotalRefund:   stake.Principal.Add(fullProfit),
		CreditedNow:   creditedNow,
		WalletBalance: walletBalance,
	}

	if err := s.eventPublisher.Publish(events.StakeUnlockedEvent{
		StakeID:     stake.ID,
		UserID:      stake.UserID,
		Principal:   stake.Principal,
		Profit:      fullProfit,
		CreditedNow: creditedNow,
	}); err != nil {
		log.WithError(err).Error("Failed to publish stake unlocked event")
	}

	log.WithFields(log.Fields{
		"stakeID":     stake.ID,
		"userID":      stake.UserID,
		"profit":      fullProfit.StringFixed(2),
		"creditedNow": creditedNow.StringFixed(2),
	}).Info("Stake unlocked")

	return result, nil
}

// SettleOrUnlock is the per-stake step of the sweep
func (s *stakingService) SettleOrUnlock(ctx context.Context, stakeID int64) (*interfaces.StakeSweepOutcome, error) {
	stake, err := s.stakeRepo.GetByIDForUpdate(ctx, stakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stake %d: %w", stakeID, err)
	}
	if stake == nil {
		return nil, domain.NotFound("stake %d not found", stakeID)
	}

	outcome := &interfaces.StakeSweepOutcome{StakeID: stakeID, Credited: decimal.Zero}
	if !stake.Active {
		// Unstaked manually between listing and locking
		return outcome, nil
	}

	if stake.CanUnlock(s.clock.Now()) {
		result, err := s.unlock(ctx, stake)
		if err != nil {
			return nil, err
		}
		outcome.Unlocked = true
		outcome.Credited = result.CreditedNow
		return outcome, nil
	}

	credited, err := s.accrue(ctx, stake)
	if err != nil {
		return nil, err
	}
	outcome.Credited = credited
	return outcome, nil
}

// SettleUserStakes accrues every active stake the user holds
func (s *stakingService) SettleUserStakes(ctx context.Context, userID int64) (decimal.Decimal, error) {
	ids, err := s.stakeRepo.ListActiveIDsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list stakes for user %d: %w", userID, err)
	}

	total := decimal.Zero
	for _, id := range ids {
		credited, err := s.SettleStake(ctx, id)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(credited)
	}
	return total, nil
}
