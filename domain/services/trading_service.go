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

type tradingService struct {
	tradeRepo          interfaces.TradeRepository
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	clock              interfaces.Clock
	schedule           entities.RateSchedule
}

// NewTradingService creates a new trading service
func NewTradingService(
	tradeRepo interfaces.TradeRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
) interfaces.TradingService {
	return &tradingService{
		tradeRepo:          tradeRepo,
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		clock:              clock,
		schedule:           schedule,
	}
}

func (s *tradingService) CreateTrade(ctx context.Context, userID int64, amount decimal.Decimal) (*entities.Trade, error) {
	if amount.LessThan(s.schedule.MinTradeAmount) {
		return nil, domain.Validation("minimum trade is %s", s.schedule.MinTradeAmount.StringFixed(2))
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
	if !user.CanAfford(amount) {
		return nil, domain.Insufficient("wallet balance %s is below %s", user.WalletBalance.StringFixed(2), amount.StringFixed(2))
	}

	now := s.clock.Now()
	trade := &entities.Trade{
		UserID:      userID,
		Amount:      amount,
		DailyRate:   s.schedule.TradeDailyRate,
		LockedUntil: now.Add(s.schedule.TradeLockDuration),
		Active:      true,
		TotalEarned: decimal.Zero,
		CreatedAt:   now,
	}
	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	if _, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          userID,
		Amount:          amount.Neg(),
		TransactionType: entities.TransactionTypeTradeOpen,
		RelatedType:     entities.RelatedTypeTrade,
		RelatedID:       trade.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to debit trade amount: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"tradeID": trade.ID,
		"amount":  amount.StringFixed(2),
	}).Info("Trade opened")

	return trade, nil
}

// SettleTrade adds the profit of whole elapsed days to the trade's earnings.
// The wallet only sees it on unlock.
func (s *tradingService) SettleTrade(ctx context.Context, tradeID int64) (decimal.Decimal, error) {
	trade, err := s.tradeRepo.GetByIDForUpdate(ctx, tradeID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get trade %d: %w", tradeID, err)
	}
	if trade == nil {
		return decimal.Zero, domain.NotFound("trade %d not found", tradeID)
	}
	return s.accrue(ctx, trade)
}

func (s *tradingService) accrue(ctx context.Context, trade *entities.Trade) (decimal.Decimal, error) {
	if !trade.Active {
		return decimal.Zero, nil
	}

	now := s.clock.Now()
	days, earned := trade.AccrualDue(now)
	if days == 0 {
		return decimal.Zero, nil
	}

	if err := s.tradeRepo.RecordAccrual(ctx, trade.ID, earned, now); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record accrual for trade %d: %w", trade.ID, err)
	}
	trade.TotalEarned = trade.TotalEarned.Add(earned)
	trade.LastProfitCalc = &now

	if earned.IsPositive() {
		if err := s.userRepo.AddTotalUSDT(ctx, trade.UserID, earned); err != nil {
			return decimal.Zero, fmt.Errorf("failed to update total USDT: %w", err)
		}
	}
	return earned, nil
}

// UnlockTrade settles outstanding profit and pays principal plus earnings
func (s *tradingService) UnlockTrade(ctx context.Context, tradeID int64) (*entities.TradeUnlockResult, error) {
	trade, err := s.tradeRepo.GetByIDForUpdate(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", tradeID, err)
	}
	if trade == nil || !trade.Active {
		return nil, domain.NotFound("trade %d not found or already unlocked", tradeID)
	}

	now := s.clock.Now()
	if !trade.CanUnlock(now) {
		return nil, domain.Conflict("trade %d is locked until %s", tradeID, trade.LockedUntil.Format("2006-01-02 15:04:05 MST"))
	}

	if _, err := s.accrue(ctx, trade); err != nil {
		return nil, err
	}

	deactivated, err := s.tradeRepo.Deactivate(ctx, tradeID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate trade %d: %w", tradeID, err)
	}
	if !deactivated {
		return nil, domain.NotFound("trade %d not found or already unlocked", tradeID)
	}

	payout := trade.Payout()
	walletBalance, err := utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          trade.UserID,
		Amount:          payout,
		TransactionType: entities.TransactionTypeTradeUnlock,
		RelatedType:     entities.RelatedTypeTrade,
		RelatedID:       tradeID,
		Metadata:        map[string]any{"earned": trade.TotalEarned.StringFixed(2)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit trade payout: %w", err)
	}

	if err := s.eventPublisher.Publish(events.TradeUnlockedEvent{
		TradeID: tradeID,
		UserID:  trade.UserID,
		Payout:  payout,
	}); err != nil {
		log.WithError(err).Error("Failed to publish trade unlocked event")
	}

	log.WithFields(log.Fields{
		"tradeID": tradeID,
		"userID":  trade.UserID,
		"payout":  payout.StringFixed(2),
	}).Info("Trade unlocked")

	return &entities.TradeUnlockResult{
		TradeID:       tradeID,
		UserID:        trade.UserID,
		Payout:        payout,
		WalletBalance: walletBalance,
	}, nil
}

func (s *tradingService) SettleUserTrades(ctx context.Context, userID int64) (decimal.Decimal, error) {
	trades, err := s.tradeRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list trades for user %d: %w", userID, err)
	}

	total := decimal.Zero
	for _, t := range trades {
		earned, err := s.SettleTrade(ctx, t.ID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(earned)
	}
	return total, nil
}
