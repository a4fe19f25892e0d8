package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
)

type levelService struct {
	userRepo       interfaces.UserRepository
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
	schedule       entities.RateSchedule
}

// NewLevelService creates a new level service
func NewLevelService(
	userRepo interfaces.UserRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
) interfaces.LevelService {
	return &levelService{
		userRepo:       userRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
		schedule:       schedule,
	}
}

// ComputeLevel climbs the level ladder one tier at a time and stops at the
// first tier whose requirement is not met.
func (s *levelService) ComputeLevel(ownTotalUSDT decimal.Decimal, referrals []entities.ReferralSnapshot) int {
	return ComputeLevel(s.schedule, ownTotalUSDT, referrals)
}

// ComputeLevel is the pure level rule set. Only direct referrals are
// considered and only those holding at least the qualifying amount count.
func ComputeLevel(schedule entities.RateSchedule, ownTotalUSDT decimal.Decimal, referrals []entities.ReferralSnapshot) int {
	if ownTotalUSDT.LessThan(schedule.LevelQualifyingUSDT) {
		return 0
	}

	level := 0
	for next := 1; next <= entities.MaxLevel; next++ {
		req := schedule.LevelRequirements[next]
		qualified := 0
		for _, r := range referrals {
			if r.Level >= req.MinReferralLevel && r.TotalUSDT.GreaterThanOrEqual(schedule.LevelQualifyingUSDT) {
				qualified++
			}
		}
		if qualified < req.MinReferrals {
			break
		}
		level = next
	}
	return level
}

func (s *levelService) RecomputeLevel(ctx context.Context, userID int64) (int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		log.WithField("userID", userID).Debug("Skipping level recompute for unknown user")
		return 0, nil
	}

	referrals, err := s.userRepo.GetDirectReferrals(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get direct referrals for user %d: %w", userID, err)
	}

	snapshots := make([]entities.ReferralSnapshot, 0, len(referrals))
	for _, r := range referrals {
		snapshots = append(snapshots, r.Snapshot())
	}

	computed := s.ComputeLevel(user.TotalUSDT, snapshots)
	if computed <= user.Level {
		return user.Level, nil
	}

	raised, err := s.userRepo.UpdateLevel(ctx, userID, computed, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to update level for user %d: %w", userID, err)
	}
	if !raised {
		// A concurrent recompute already stored an equal or higher level
		current, err := s.userRepo.GetByID(ctx, userID)
		if err != nil || current == nil {
			return computed, err
		}
		return max(current.Level, computed), nil
	}

	log.WithFields(log.Fields{
		"userID":   userID,
		"oldLevel": user.Level,
		"newLevel": computed,
	}).Info("User level advanced")

	if err := s.eventPublisher.Publish(events.LevelAdvancedEvent{
		UserID:   userID,
		OldLevel: user.Level,
		NewLevel: computed,
	}); err != nil {
		log.WithError(err).Error("Failed to publish level advanced event")
	}

	return computed, nil
}
