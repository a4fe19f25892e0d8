package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"stakehub/domain/interfaces"
)

// LevelSweepFailure is a user whose level could not be recomputed
type LevelSweepFailure struct {
	UserID int64
	Err    error
}

// LevelSweepSummary describes one pass over every user
type LevelSweepSummary struct {
	UsersProcessed int
	LevelsRaised   int
	Failures       []LevelSweepFailure
	Duration       time.Duration
}

// LevelSweeper recomputes every user's level. It catches totalUSDT changes
// that publish no event, such as stake and trade accrual.
type LevelSweeper struct {
	uowFactory interfaces.UnitOfWorkFactory
	refresh    *LevelRefreshHandler
}

// NewLevelSweeper creates a new level sweeper
func NewLevelSweeper(uowFactory interfaces.UnitOfWorkFactory, refresh *LevelRefreshHandler) *LevelSweeper {
	return &LevelSweeper{
		uowFactory: uowFactory,
		refresh:    refresh,
	}
}

// Sweep visits users newest first. Referrals are registered after their
// referrer, so a single pass sees children settled before their parents.
func (s *LevelSweeper) Sweep(ctx context.Context) (*LevelSweepSummary, error) {
	start := time.Now()
	summary := &LevelSweepSummary{}

	ids, err := s.userIDs(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("level sweep interrupted after %d users: %w", summary.UsersProcessed, err)
		}

		result, err := s.refresh.recompute(ctx, id)
		summary.UsersProcessed++
		if err != nil {
			log.WithFields(log.Fields{
				"userID": id,
				"error":  err,
			}).Error("Failed to recompute level during sweep")
			summary.Failures = append(summary.Failures, LevelSweepFailure{UserID: id, Err: err})
			continue
		}
		if result.raised() {
			summary.LevelsRaised++
		}
	}

	summary.Duration = time.Since(start)
	log.WithFields(log.Fields{
		"processed": summary.UsersProcessed,
		"raised":    summary.LevelsRaised,
		"failed":    len(summary.Failures),
		"duration":  summary.Duration,
	}).Info("Level sweep completed")

	return summary, nil
}

func (s *LevelSweeper) userIDs(ctx context.Context) ([]int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ids, err := uow.UserRepository().ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}
