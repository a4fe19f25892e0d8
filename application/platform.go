package application

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"stakehub/domain/entities"
	"stakehub/domain/interfaces"
	"stakehub/domain/services"
	"stakehub/infrastructure/observability"
)

// Platform is the entry point an API layer or scheduler calls. Every
// operation runs in its own unit of work; events are delivered after commit.
type Platform struct {
	uowFactory interfaces.UnitOfWorkFactory
	clock      interfaces.Clock
	schedule   entities.RateSchedule
	limits     services.WithdrawalLimits
	fanOut     *CommissionFanOut
	sweeper    *StakeSweeper
	levels     *LevelRefreshHandler
	levelSweep *LevelSweeper
	summaries  singleflight.Group
}

// ConfirmDepositResult is a committed deposit confirmation and the commission
// fan-out it triggered
type ConfirmDepositResult struct {
	Confirmation *entities.DepositConfirmation
	FanOut       *FanOutResult
}

// NewPlatform creates a new Platform
func NewPlatform(
	uowFactory interfaces.UnitOfWorkFactory,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
	limits services.WithdrawalLimits,
) *Platform {
	p := &Platform{
		uowFactory: uowFactory,
		clock:      clock,
		schedule:   schedule,
		limits:     limits,
	}
	p.fanOut = NewCommissionFanOut(uowFactory, schedule)
	p.sweeper = NewStakeSweeper(uowFactory, clock, schedule)
	p.levels = NewLevelRefreshHandler(uowFactory, clock, schedule)
	p.levelSweep = NewLevelSweeper(uowFactory, p.levels)
	return p
}

// Sweeper exposes the stake sweep shared with the scheduled worker
func (p *Platform) Sweeper() *StakeSweeper {
	return p.sweeper
}

// LevelSweeper exposes the level sweep shared with the scheduled worker
func (p *Platform) LevelSweeper() *LevelSweeper {
	return p.levelSweep
}

// LevelRefresh is the handler to register for events that move a user's
// totalUSDT or level
func (p *Platform) LevelRefresh() *LevelRefreshHandler {
	return p.levels
}

// OnDepositConfirmed pays the upline commissions for a confirmed deposit.
// Partial failures are reported in the result, not as an error.
func (p *Platform) OnDepositConfirmed(ctx context.Context, userID, depositID int64, amount decimal.Decimal, userLevelAtDeposit int) (*FanOutResult, error) {
	return p.fanOut.Run(ctx, userID, &depositID, amount, userLevelAtDeposit)
}

// RecomputeLevel re-evaluates a user's level and returns the stored result
func (p *Platform) RecomputeLevel(ctx context.Context, userID int64) (int, error) {
	var level int
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		level, err = p.levelService(uow).RecomputeLevel(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return level, nil
}

// RecomputeAllLevels re-evaluates every user's level once
func (p *Platform) RecomputeAllLevels(ctx context.Context) (*LevelSweepSummary, error) {
	return p.levelSweep.Sweep(ctx)
}

// SettleStakeAccrual credits the whole days a stake has earned since it was
// last settled
func (p *Platform) SettleStakeAccrual(ctx context.Context, stakeID int64) (decimal.Decimal, error) {
	credited := decimal.Zero
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		credited, err = p.stakingService(uow).SettleStake(ctx, stakeID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return credited, nil
}

// SettleAllActiveStakes runs the stake sweep on demand. It takes no lock and
// writes no run record.
func (p *Platform) SettleAllActiveStakes(ctx context.Context) (*SweepSummary, error) {
	return p.sweeper.Sweep(ctx, observability.TriggerManual)
}

// Unstake releases a matured stake
func (p *Platform) Unstake(ctx context.Context, stakeID int64) (*entities.StakeUnlockResult, error) {
	var result *entities.StakeUnlockResult
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = p.stakingService(uow).Unstake(ctx, stakeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleTradeAccrual adds the whole days a trade has earned to its total
func (p *Platform) SettleTradeAccrual(ctx context.Context, tradeID int64) (decimal.Decimal, error) {
	earned := decimal.Zero
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		earned, err = p.tradingService(uow).SettleTrade(ctx, tradeID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return earned, nil
}

// UnlockTrade pays out a trade whose lock is over
func (p *Platform) UnlockTrade(ctx context.Context, tradeID int64) (*entities.TradeUnlockResult, error) {
	var result *entities.TradeUnlockResult
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = p.tradingService(uow).UnlockTrade(ctx, tradeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RequestWithdrawal holds amount plus fee and returns the withdrawal id
func (p *Platform) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, securityPassword string) (int64, error) {
	var withdrawal *entities.Withdrawal
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		withdrawal, err = p.withdrawalService(uow).RequestWithdrawal(ctx, userID, amount, securityPassword)
		return err
	})
	if err != nil {
		return 0, err
	}
	return withdrawal.ID, nil
}

// ResolveWithdrawal approves, rejects or holds a pending withdrawal
func (p *Platform) ResolveWithdrawal(ctx context.Context, withdrawalID int64, decision entities.WithdrawalDecision) error {
	return p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		_, err := p.withdrawalService(uow).ResolveWithdrawal(ctx, withdrawalID, decision)
		return err
	})
}

// RegisterUser creates a user under referredBy
func (p *Platform) RegisterUser(ctx context.Context, username string, referredBy *int64, securityPassword string) (*entities.User, error) {
	var user *entities.User
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		user, err = p.referralService(uow).Register(ctx, username, referredBy, securityPassword)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (p *Platform) CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, txHash string) (*entities.Deposit, error) {
	var deposit *entities.Deposit
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		deposit, err = p.depositService(uow).CreateDeposit(ctx, userID, amount, txHash)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// ConfirmDeposit credits a pending deposit and, once that has committed,
// runs the commission fan-out for it exactly once. A deposit that is no
// longer pending fails with state_conflict before any fan-out.
func (p *Platform) ConfirmDeposit(ctx context.Context, depositID int64) (*ConfirmDepositResult, error) {
	var confirmation *entities.DepositConfirmation
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		confirmation, err = p.depositService(uow).ConfirmDeposit(ctx, depositID)
		return err
	})
	if err != nil {
		return nil, err
	}

	deposit := confirmation.Deposit
	fanOut, err := p.OnDepositConfirmed(ctx, deposit.UserID, deposit.ID, deposit.Amount, confirmation.UserLevel)
	if err != nil {
		// The credit is committed; the fan-out can be replayed safely
		log.WithFields(log.Fields{
			"depositID": deposit.ID,
			"userID":    deposit.UserID,
			"error":     err,
		}).Error("Commission fan-out failed after deposit confirmation")
		return &ConfirmDepositResult{Confirmation: confirmation}, fmt.Errorf("failed to fan out commissions for deposit %d: %w", deposit.ID, err)
	}

	return &ConfirmDepositResult{Confirmation: confirmation, FanOut: fanOut}, nil
}

func (p *Platform) RejectDeposit(ctx context.Context, depositID int64) error {
	return p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		return p.depositService(uow).RejectDeposit(ctx, depositID)
	})
}

// CreateStake moves amount from the wallet into a stake of lockDays
func (p *Platform) CreateStake(ctx context.Context, userID int64, amount decimal.Decimal, lockDays int) (*entities.Stake, error) {
	var stake *entities.Stake
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		stake, err = p.stakingService(uow).CreateStake(ctx, userID, amount, lockDays)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stake, nil
}

// CreateTrade moves amount from the wallet into a 24h trading position
func (p *Platform) CreateTrade(ctx context.Context, userID int64, amount decimal.Decimal) (*entities.Trade, error) {
	var trade *entities.Trade
	err := p.inUnitOfWork(ctx, func(uow interfaces.UnitOfWork) error {
		var err error
		trade, err = p.tradingService(uow).CreateTrade(ctx, userID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// WalletSummary settles the user's open positions and returns the settled
// figures. Concurrent calls for the same user share one settlement, which
// runs detached from any single caller's cancellation.
func (p *Platform) WalletSummary(ctx context.Context, userID int64) (*interfaces.WalletSummary, error) {
	ch := p.summaries.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		settleCtx := context.WithoutCancel(ctx)
		var summary *interfaces.WalletSummary
		err := p.inUnitOfWork(settleCtx, func(uow interfaces.UnitOfWork) error {
			var err error
			summary, err = p.walletService(uow).Summary(settleCtx, userID)
			return err
		})
		return summary, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.WithField("userID", userID).Debug("Wallet summary shared with a concurrent caller")
		}
		return copyWalletSummary(res.Val.(*interfaces.WalletSummary)), nil
	}
}

// copyWalletSummary gives each caller its own CommissionByType map
func copyWalletSummary(s *interfaces.WalletSummary) *interfaces.WalletSummary {
	c := *s
	c.CommissionByType = maps.Clone(s.CommissionByType)
	return &c
}

// inUnitOfWork runs fn in a fresh unit of work and commits when fn succeeds
func (p *Platform) inUnitOfWork(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	return withUnitOfWork(ctx, p.uowFactory, fn)
}

func withUnitOfWork(ctx context.Context, uowFactory interfaces.UnitOfWorkFactory, fn func(uow interfaces.UnitOfWork) error) error {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
