package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"stakehub/domain"
	"stakehub/domain/interfaces"
)

type walletService struct {
	userRepo       interfaces.UserRepository
	tradeRepo      interfaces.TradeRepository
	ledgerRepo     interfaces.CommissionLedgerRepository
	stakingService interfaces.StakingService
	tradingService interfaces.TradingService
}

// NewWalletService creates a new wallet service
func NewWalletService(
	userRepo interfaces.UserRepository,
	tradeRepo interfaces.TradeRepository,
	ledgerRepo interfaces.CommissionLedgerRepository,
	stakingService interfaces.StakingService,
	tradingService interfaces.TradingService,
) interfaces.WalletService {
	return &walletService{
		userRepo:       userRepo,
		tradeRepo:      tradeRepo,
		ledgerRepo:     ledgerRepo,
		stakingService: stakingService,
		tradingService: tradingService,
	}
}

// Summary settles the user's open positions and then reads the figures, so
// the numbers returned include every whole day that has elapsed.
func (s *walletService) Summary(ctx context.Context, userID int64) (*interfaces.WalletSummary, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}

	stakeProfit, err := s.stakingService.SettleUserStakes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to settle stakes: %w", err)
	}
	tradeProfit, err := s.tradingService.SettleUserTrades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to settle trades: %w", err)
	}

	// Re-read after settlement moved the counters
	user, err = s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}

	trades, err := s.tradeRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	principal, earned := decimal.Zero, decimal.Zero
	for _, t := range trades {
		principal = principal.Add(t.Amount)
		earned = earned.Add(t.TotalEarned)
	}

	byType, err := s.ledgerRepo.AggregateByType(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate commissions: %w", err)
	}

	return &interfaces.WalletSummary{
		UserID:                userID,
		WalletBalance:         user.WalletBalance,
		TotalStakes:           user.TotalStakes,
		ActiveTradePrincipal:  principal,
		ActiveTradeEarned:     earned,
		TotalCommissionEarned: user.TotalCommissionEarned,
		CommissionByType:      byType,
		TotalUSDT:             user.TotalUSDT,
		Level:                 user.Level,
		SettledStakeProfit:    stakeProfit,
		SettledTradeProfit:    tradeProfit,
	}, nil
}
