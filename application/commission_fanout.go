package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain/entities"
	"stakehub/domain/interfaces"
	"stakehub/domain/services"
	"stakehub/infrastructure/observability"
)

// FanOutFailure is one planned credit that could not be applied
type FanOutFailure struct {
	EarnerID int64
	Type     entities.CommissionType
	Amount   decimal.Decimal
	Err      error
}

// FanOutResult summarizes the commission credits of one deposit
type FanOutResult struct {
	Planned  int
	Credited []*entities.CommissionEntry
	Skipped  int // already in the ledger
	Failures []FanOutFailure
}

// TotalCredited sums the amounts actually paid
func (r *FanOutResult) TotalCredited() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range r.Credited {
		total = total.Add(entry.Amount)
	}
	return total
}

// CommissionFanOut pays upline commissions for confirmed deposits. Each
// credit runs in its own unit of work so one earner's failure never blocks
// the others.
type CommissionFanOut struct {
	uowFactory interfaces.UnitOfWorkFactory
	schedule   entities.RateSchedule
}

// NewCommissionFanOut creates a new commission fan-out
func NewCommissionFanOut(uowFactory interfaces.UnitOfWorkFactory, schedule entities.RateSchedule) *CommissionFanOut {
	return &CommissionFanOut{
		uowFactory: uowFactory,
		schedule:   schedule,
	}
}

// Run plans and applies the commissions for a deposit of amount by
// depositorID. Deposits below the qualifying minimum return an empty result.
// Calling Run again for the same deposit credits nothing new.
func (f *CommissionFanOut) Run(ctx context.Context, depositorID int64, depositID *int64, amount decimal.Decimal, depositorLevel int) (*FanOutResult, error) {
	result := &FanOutResult{}
	if amount.LessThan(f.schedule.MinQualifyingDeposit) {
		log.WithFields(log.Fields{
			"userID": depositorID,
			"amount": amount.StringFixed(2),
		}).Debug("Deposit below qualifying minimum, no commissions")
		return result, nil
	}

	plan, err := f.plan(ctx, depositorID, depositID, amount, depositorLevel)
	if err != nil {
		return nil, err
	}
	result.Planned = len(plan)

	for _, entry := range plan {
		credited, err := f.apply(ctx, entry)
		if err != nil {
			log.WithFields(log.Fields{
				"earnerID":     entry.UserID,
				"sourceUserID": depositorID,
				"type":         entry.Type,
				"amount":       entry.Amount.StringFixed(2),
				"error":        err,
			}).Error("Failed to credit commission, continuing with remaining upline")
			result.Failures = append(result.Failures, FanOutFailure{
				EarnerID: entry.UserID,
				Type:     entry.Type,
				Amount:   entry.Amount,
				Err:      err,
			})
			continue
		}

		observability.GetMetrics().RecordCommission(string(entry.Type), entry.Amount, credited)
		if credited {
			result.Credited = append(result.Credited, entry)
		} else {
			result.Skipped++
		}
	}

	fields := log.Fields{
		"userID":        depositorID,
		"planned":       result.Planned,
		"credited":      len(result.Credited),
		"skipped":       result.Skipped,
		"failed":        len(result.Failures),
		"totalCredited": result.TotalCredited().StringFixed(2),
	}
	if depositID != nil {
		fields["depositID"] = *depositID
	}
	log.WithFields(fields).Info("Commission fan-out completed")

	return result, nil
}

// plan reads the upline in a read-only unit of work
func (f *CommissionFanOut) plan(ctx context.Context, depositorID int64, depositID *int64, amount decimal.Decimal, depositorLevel int) ([]*entities.CommissionEntry, error) {
	uow := f.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	commissionService := f.commissionService(uow)
	upline, err := commissionService.BuildUpline(ctx, depositorID)
	if err != nil {
		return nil, fmt.Errorf("failed to build upline for user %d: %w", depositorID, err)
	}

	return commissionService.PlanFanOut(depositorID, depositID, amount, depositorLevel, upline), nil
}

func (f *CommissionFanOut) apply(ctx context.Context, entry *entities.CommissionEntry) (bool, error) {
	var credited bool
	err := withUnitOfWork(ctx, f.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		credited, err = f.commissionService(uow).ApplyCredit(ctx, entry)
		return err
	})
	return credited, err
}

func (f *CommissionFanOut) commissionService(uow interfaces.UnitOfWork) interfaces.CommissionService {
	return services.NewCommissionService(
		uow.UserRepository(),
		uow.CommissionLedgerRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		f.schedule,
	)
}
