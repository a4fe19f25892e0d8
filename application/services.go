package application

import (
	"stakehub/domain/entities"
	"stakehub/domain/interfaces"
	"stakehub/domain/services"
)

// Services are built per unit of work so they share its transaction and
// its post-commit event bus.

func (p *Platform) levelService(uow interfaces.UnitOfWork) interfaces.LevelService {
	return services.NewLevelService(uow.UserRepository(), uow.EventBus(), p.clock, p.schedule)
}

func (p *Platform) referralService(uow interfaces.UnitOfWork) interfaces.ReferralService {
	return services.NewReferralService(
		uow.UserRepository(),
		p.levelService(uow),
		uow.EventBus(),
		p.clock,
		p.schedule,
	)
}

func (p *Platform) depositService(uow interfaces.UnitOfWork) interfaces.DepositService {
	return services.NewDepositService(
		uow.DepositRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		p.clock,
		p.schedule,
	)
}

func (p *Platform) stakingService(uow interfaces.UnitOfWork) interfaces.StakingService {
	return newStakingService(uow, p.clock, p.schedule)
}

func (p *Platform) tradingService(uow interfaces.UnitOfWork) interfaces.TradingService {
	return services.NewTradingService(
		uow.TradeRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		p.clock,
		p.schedule,
	)
}

func (p *Platform) withdrawalService(uow interfaces.UnitOfWork) interfaces.WithdrawalService {
	return services.NewWithdrawalService(
		uow.WithdrawalRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		p.clock,
		p.schedule,
		p.limits,
	)
}

func (p *Platform) walletService(uow interfaces.UnitOfWork) interfaces.WalletService {
	return services.NewWalletService(
		uow.UserRepository(),
		uow.TradeRepository(),
		uow.CommissionLedgerRepository(),
		p.stakingService(uow),
		p.tradingService(uow),
	)
}

func newStakingService(uow interfaces.UnitOfWork, clock interfaces.Clock, schedule entities.RateSchedule) interfaces.StakingService {
	return services.NewStakingService(
		uow.StakeRepository(),
		uow.UserRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		clock,
		schedule,
	)
}
