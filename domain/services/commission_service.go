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

type commissionService struct {
	userRepo           interfaces.UserRepository
	ledgerRepo         interfaces.CommissionLedgerRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	schedule           entities.RateSchedule
}

// NewCommissionService creates a new commission service
func NewCommissionService(
	userRepo interfaces.UserRepository,
	ledgerRepo interfaces.CommissionLedgerRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	schedule entities.RateSchedule,
) interfaces.CommissionService {
	return &commissionService{
		userRepo:           userRepo,
		ledgerRepo:         ledgerRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		schedule:           schedule,
	}
}

// BuildUpline follows referredBy pointers from the user's referrer upwards.
// The walk stops at a root, a dangling pointer, a repeated user or after
// MaxUplineHops entries. Index 0 is layer 1.
func (s *commissionService) BuildUpline(ctx context.Context, userID int64) ([]*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", userID)
	}

	visited := map[int64]bool{user.ID: true}
	upline := make([]*entities.User, 0, s.schedule.MaxUplineHops)

	next := user.ReferredBy
	for next != nil && len(upline) < s.schedule.MaxUplineHops {
		if visited[*next] {
			log.WithFields(log.Fields{
				"userID":   userID,
				"repeated": *next,
				"hops":     len(upline),
			}).Warn("Referral cycle detected, truncating upline")
			break
		}

		ancestor, err := s.userRepo.GetByID(ctx, *next)
		if err != nil {
			return nil, fmt.Errorf("failed to get upline user %d: %w", *next, err)
		}
		if ancestor == nil {
			log.WithFields(log.Fields{
				"userID":  userID,
				"missing": *next,
			}).Warn("Dangling referral pointer, truncating upline")
			break
		}

		visited[ancestor.ID] = true
		upline = append(upline, ancestor)
		next = ancestor.ReferredBy
	}

	return upline, nil
}

// PlanFanOut computes every ledger entry a qualifying deposit produces.
// It does not touch storage. Entries with a non-positive amount are never
// produced.
func (s *commissionService) PlanFanOut(depositorID int64, depositID *int64, amount decimal.Decimal, depositorLevel int, upline []*entities.User) []*entities.CommissionEntry {
	return PlanFanOut(s.schedule, depositorID, depositID, amount, depositorLevel, upline)
}

// PlanFanOut is the pure commission rule set behind CommissionService.PlanFanOut
func PlanFanOut(schedule entities.RateSchedule, depositorID int64, depositID *int64, amount decimal.Decimal, depositorLevel int, upline []*entities.User) []*entities.CommissionEntry {
	if amount.LessThan(schedule.MinQualifyingDeposit) {
		return nil
	}

	var plan []*entities.CommissionEntry

	for i, earner := range upline {
		if i >= schedule.IndirectLayers {
			break
		}
		layer := i + 1

		if !earner.ReferralUnlocked || earner.Level <= depositorLevel {
			continue
		}
		pct := schedule.IndirectPercent(earner.Level, layer)
		if !pct.IsPositive() {
			continue
		}
		credit := entities.PercentOf(amount, pct)
		if !credit.IsPositive() {
			continue
		}

		l := layer
		plan = append(plan, &entities.CommissionEntry{
			UserID:       earner.ID,
			SourceUserID: depositorID,
			DepositID:    depositID,
			Type:         schedule.IndirectType(layer),
			Layer:        &l,
			Percentage:   pct,
			Amount:       credit,
			Note:         fmt.Sprintf("layer %d commission at level %d", layer, earner.Level),
		})
	}

	if schedule.LeaderBonusAmount.IsPositive() {
		for i, earner := range upline {
			if !earner.IsLeader(schedule.LeaderMinLevel) {
				continue
			}
			l := i + 1
			plan = append(plan, &entities.CommissionEntry{
				UserID:       earner.ID,
				SourceUserID: depositorID,
				DepositID:    depositID,
				Type:         entities.CommissionTypeLeaderBonus,
				Layer:        &l,
				Percentage:   decimal.Zero,
				Amount:       schedule.LeaderBonusAmount,
				Note:         "leader bonus",
			})
		}
	}

	return plan
}

func (s *commissionService) ApplyCredit(ctx context.Context, entry *entities.CommissionEntry) (bool, error) {
	if !entry.Amount.IsPositive() {
		return false, domain.Validation("commission amount must be positive, got %s", entry.Amount)
	}

	inserted, err := s.ledgerRepo.Append(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("failed to append commission entry: %w", err)
	}
	if !inserted {
		log.WithFields(log.Fields{
			"earnerID":     entry.UserID,
			"sourceUserID": entry.SourceUserID,
			"type":         entry.Type,
		}).Info("Commission already recorded, skipping credit")
		return false, nil
	}

	_, err = utils.ApplyBalanceChange(ctx, s.userRepo, s.balanceHistoryRepo, s.eventPublisher, utils.BalanceChange{
		UserID:          entry.UserID,
		Amount:          entry.Amount,
		TransactionType: entry.Type.TransactionType(),
		RelatedType:     entities.RelatedTypeCommission,
		RelatedID:       entry.ID,
		Metadata: map[string]any{
			"source_user_id":  entry.SourceUserID,
			"commission_type": string(entry.Type),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to credit commission to user %d: %w", entry.UserID, err)
	}

	if err := s.userRepo.AddCommission(ctx, entry.UserID, entry.Amount); err != nil {
		return false, fmt.Errorf("failed to update commission totals for user %d: %w", entry.UserID, err)
	}

	if err := s.eventPublisher.Publish(events.CommissionCreditedEvent{
		EarnerID:       entry.UserID,
		SourceUserID:   entry.SourceUserID,
		DepositID:      entry.DepositID,
		CommissionType: entry.Type,
		Amount:         entry.Amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish commission credited event")
	}

	return true, nil
}
