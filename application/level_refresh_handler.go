package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/domain/services"
)

// LevelRefreshHandler recomputes levels when a user's totalUSDT moves. The
// user's own level and its referrer's level both depend on that figure.
type LevelRefreshHandler struct {
	uowFactory interfaces.UnitOfWorkFactory
	clock      interfaces.Clock
	schedule   entities.RateSchedule
}

// NewLevelRefreshHandler creates a new LevelRefreshHandler
func NewLevelRefreshHandler(uowFactory interfaces.UnitOfWorkFactory, clock interfaces.Clock, schedule entities.RateSchedule) *LevelRefreshHandler {
	return &LevelRefreshHandler{
		uowFactory: uowFactory,
		clock:      clock,
		schedule:   schedule,
	}
}

// HandleCommissionCredited refreshes the earner
func (h *LevelRefreshHandler) HandleCommissionCredited(ctx context.Context, event events.Event) error {
	e, err := AssertEventType[events.CommissionCreditedEvent](event, "CommissionCreditedEvent")
	if err != nil {
		return err
	}
	return h.Refresh(ctx, e.EarnerID)
}

// HandleDepositConfirmed refreshes the depositor
func (h *LevelRefreshHandler) HandleDepositConfirmed(ctx context.Context, event events.Event) error {
	e, err := AssertEventType[events.DepositConfirmedEvent](event, "DepositConfirmedEvent")
	if err != nil {
		return err
	}
	return h.Refresh(ctx, e.UserID)
}

// HandleLevelAdvanced re-evaluates the referrer of a user whose level rose.
// A referrer that rises in turn publishes its own LevelAdvancedEvent, so the
// refresh climbs until an ancestor's level stays put.
func (h *LevelRefreshHandler) HandleLevelAdvanced(ctx context.Context, event events.Event) error {
	e, err := AssertEventType[events.LevelAdvancedEvent](event, "LevelAdvancedEvent")
	if err != nil {
		return err
	}
	return h.Refresh(ctx, e.UserID)
}

// Refresh recomputes userID and then its referrer, each in its own unit of work
func (h *LevelRefreshHandler) Refresh(ctx context.Context, userID int64) error {
	result, err := h.recompute(ctx, userID)
	if err != nil {
		return err
	}
	if result.user == nil || !result.user.HasUpline() {
		return nil
	}
	if _, err := h.recompute(ctx, *result.user.ReferredBy); err != nil {
		return fmt.Errorf("failed to refresh referrer of user %d: %w", userID, err)
	}
	return nil
}

// levelRecompute is the user as read before the recompute and the level
// stored afterwards. user is nil for an unknown ID.
type levelRecompute struct {
	user  *entities.User
	level int
}

func (r levelRecompute) raised() bool {
	return r.user != nil && r.level > r.user.Level
}

func (h *LevelRefreshHandler) recompute(ctx context.Context, userID int64) (levelRecompute, error) {
	var result levelRecompute
	err := withUnitOfWork(ctx, h.uowFactory, func(uow interfaces.UnitOfWork) error {
		user, err := uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get user %d: %w", userID, err)
		}
		if user == nil {
			log.WithField("userID", userID).Debug("Level refresh for unknown user, skipping")
			return nil
		}
		result.user = user

		levelService := services.NewLevelService(uow.UserRepository(), uow.EventBus(), h.clock, h.schedule)
		level, err := levelService.RecomputeLevel(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to recompute level for user %d: %w", userID, err)
		}
		result.level = level

		log.WithFields(log.Fields{
			"userID": userID,
			"level":  level,
		}).Debug("Level refreshed")
		return nil
	})
	if err != nil {
		return levelRecompute{}, err
	}
	return result, nil
}
