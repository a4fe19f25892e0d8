package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/interfaces"
	"stakehub/infrastructure/observability"
)

const (
	sweepLockKey = "stakehub:stake-sweep"
	sweepLockTTL = 30 * time.Minute
)

// SweepLock elects a single sweeper across replicas
type SweepLock interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// SweepFailure is a stake the sweep could not settle
type SweepFailure struct {
	StakeID int64
	Err     error
}

// SweepSummary describes one pass over the active stakes
type SweepSummary struct {
	Trigger         string
	StakesProcessed int
	StakesAccrued   int
	StakesUnlocked  int
	TotalCredited   decimal.Decimal
	Failures        []SweepFailure
	Duration        time.Duration
	// Levels is set when the scheduled run also swept levels
	Levels *LevelSweepSummary
}

// StakeSweeper settles or unlocks every active stake, one unit of work per
// stake
type StakeSweeper struct {
	uowFactory interfaces.UnitOfWorkFactory
	clock      interfaces.Clock
	schedule   entities.RateSchedule
}

// NewStakeSweeper creates a new stake sweeper
func NewStakeSweeper(uowFactory interfaces.UnitOfWorkFactory, clock interfaces.Clock, schedule entities.RateSchedule) *StakeSweeper {
	return &StakeSweeper{
		uowFactory: uowFactory,
		clock:      clock,
		schedule:   schedule,
	}
}

// Sweep processes every stake that is active when the pass starts. Matured
// stakes are unstaked and the rest accrue their elapsed days. A failing
// stake is recorded and the pass continues.
func (s *StakeSweeper) Sweep(ctx context.Context, trigger string) (*SweepSummary, error) {
	start := time.Now()
	summary := &SweepSummary{Trigger: trigger, TotalCredited: decimal.Zero}

	ids, err := s.activeStakeIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("stake sweep interrupted after %d stakes: %w", summary.StakesProcessed, err)
		}

		outcome, err := s.settle(ctx, id)
		summary.StakesProcessed++
		if err != nil {
			log.WithFields(log.Fields{
				"stakeID": id,
				"error":   err,
			}).Error("Failed to settle stake during sweep")
			summary.Failures = append(summary.Failures, SweepFailure{StakeID: id, Err: err})
			continue
		}

		if outcome.Unlocked {
			summary.StakesUnlocked++
		} else if outcome.Credited.IsPositive() {
			summary.StakesAccrued++
		}
		summary.TotalCredited = summary.TotalCredited.Add(outcome.Credited)
	}

	summary.Duration = time.Since(start)
	observability.GetMetrics().RecordSweep(trigger, summary.StakesAccrued, summary.StakesUnlocked, len(summary.Failures), summary.Duration)

	log.WithFields(log.Fields{
		"trigger":       trigger,
		"processed":     summary.StakesProcessed,
		"accrued":       summary.StakesAccrued,
		"unlocked":      summary.StakesUnlocked,
		"failed":        len(summary.Failures),
		"totalCredited": summary.TotalCredited.StringFixed(2),
		"duration":      summary.Duration,
	}).Info("Stake sweep completed")

	return summary, nil
}

func (s *StakeSweeper) activeStakeIDs(ctx context.Context) ([]int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ids, err := uow.StakeRepository().ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active stakes: %w", err)
	}
	return ids, nil
}

func (s *StakeSweeper) settle(ctx context.Context, stakeID int64) (*interfaces.StakeSweepOutcome, error) {
	var outcome *interfaces.StakeSweepOutcome
	err := withUnitOfWork(ctx, s.uowFactory, func(uow interfaces.UnitOfWork) error {
		var err error
		outcome, err = newStakingService(uow, s.clock, s.schedule).SettleOrUnlock(ctx, stakeID)
		return err
	})
	return outcome, err
}

// StakeSweepWorker runs the stake sweep once a day at a fixed UTC hour and
// records each run so a day is never swept twice
type StakeSweepWorker struct {
	sweeper    *StakeSweeper
	levels     *LevelSweeper
	uowFactory interfaces.UnitOfWorkFactory
	clock      interfaces.Clock
	lock       SweepLock
}

// NewStakeSweepWorker creates a new stake sweep worker. levels runs after the
// stakes settle and may be nil; lock may be nil for single-replica
// deployments.
func NewStakeSweepWorker(sweeper *StakeSweeper, levels *LevelSweeper, uowFactory interfaces.UnitOfWorkFactory, clock interfaces.Clock, lock SweepLock) *StakeSweepWorker {
	return &StakeSweepWorker{
		sweeper:    sweeper,
		levels:     levels,
		uowFactory: uowFactory,
		clock:      clock,
		lock:       lock,
	}
}

// Start begins the stake sweep worker
func (w *StakeSweepWorker) Start(ctx context.Context, sweepHour int) func() {
	stopChan := make(chan struct{})

	go func() {
		log.Infof("Stake sweep worker started, next run at %02d:00 UTC", sweepHour)

		// A start after today's hour catches up; the run record keeps it to once a day
		if sweepHourPassed(w.clock.Now(), sweepHour) {
			if _, _, err := w.RunOnce(ctx); err != nil {
				log.Errorf("Error running catch-up stake sweep: %v", err)
			}
		}

		for {
			waitDuration := nextRunDelay(time.Now().UTC(), sweepHour)
			log.Infof("Stake sweep worker waiting %v until next run", waitDuration)

			select {
			case <-ctx.Done():
				log.Info("Stake sweep worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Stake sweep worker shutting down (stop requested)...")
				return
			case <-time.After(waitDuration):
				if _, _, err := w.RunOnce(ctx); err != nil {
					log.Errorf("Error running scheduled stake sweep: %v", err)
				}
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// RunOnce performs the scheduled sweep for the current UTC day. It reports
// ran == false when another replica holds the lock or today's run already
// exists.
func (w *StakeSweepWorker) RunOnce(ctx context.Context) (*SweepSummary, bool, error) {
	if w.lock != nil {
		release, acquired, err := w.lock.TryAcquire(ctx, sweepLockKey, sweepLockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
		}
		if !acquired {
			log.Info("Stake sweep lock held by another replica, skipping")
			return nil, false, nil
		}
		defer release()
	}

	runDate := entities.RunDateFor(w.clock.Now())

	done, err := w.alreadyRan(ctx, runDate)
	if err != nil {
		return nil, false, err
	}
	if done {
		log.WithField("runDate", runDate.Format("2006-01-02")).Info("Stake sweep already ran today, skipping")
		return nil, false, nil
	}

	summary, err := w.sweeper.Sweep(ctx, observability.TriggerScheduled)
	if err != nil {
		return nil, false, err
	}

	if w.levels != nil {
		levels, err := w.levels.Sweep(ctx)
		if err != nil {
			log.WithError(err).Error("Level sweep after stake sweep failed")
		} else {
			summary.Levels = levels
		}
	}

	if err := w.recordRun(ctx, runDate, summary); err != nil {
		return summary, true, err
	}
	return summary, true, nil
}

func (w *StakeSweepWorker) alreadyRan(ctx context.Context, runDate time.Time) (bool, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	run, err := uow.AccrualRunRepository().GetByDate(ctx, runDate)
	if err != nil {
		return false, fmt.Errorf("failed to check accrual run: %w", err)
	}
	return run != nil, nil
}

func (w *StakeSweepWorker) recordRun(ctx context.Context, runDate time.Time, summary *SweepSummary) error {
	failedIDs := make([]int64, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		failedIDs = append(failedIDs, f.StakeID)
	}

	run := &entities.AccrualRun{
		RunDate:         runDate,
		StakesProcessed: summary.StakesProcessed,
		StakesUnlocked:  summary.StakesUnlocked,
		TotalCredited:   summary.TotalCredited,
		Failures:        len(summary.Failures),
		ExecutionSummary: map[string]any{
			"trigger":          summary.Trigger,
			"stakes_accrued":   summary.StakesAccrued,
			"failed_stake_ids": failedIDs,
			"duration_ms":      summary.Duration.Milliseconds(),
		},
	}
	if summary.Levels != nil {
		run.ExecutionSummary["levels_raised"] = summary.Levels.LevelsRaised
		run.ExecutionSummary["level_failures"] = len(summary.Levels.Failures)
	}

	err := withUnitOfWork(ctx, w.uowFactory, func(uow interfaces.UnitOfWork) error {
		return uow.AccrualRunRepository().Create(ctx, run)
	})
	if errors.Is(err, domain.ErrStateConflict) {
		log.WithField("runDate", runDate.Format("2006-01-02")).Warn("Accrual run recorded concurrently by another process")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record accrual run: %w", err)
	}
	return nil
}

// sweepHourPassed reports whether today's sweepHour:00 UTC is already behind now
func sweepHourPassed(now time.Time, sweepHour int) bool {
	return now.UTC().Hour() >= sweepHour
}

// nextRunDelay returns the wait from now until the next sweepHour:00 UTC
func nextRunDelay(now time.Time, sweepHour int) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), sweepHour, 0, 0, 0, time.UTC)
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
