package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"stakehub/domain"
	"stakehub/domain/entities"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
)

type referralService struct {
	userRepo       interfaces.UserRepository
	levelService   interfaces.LevelService
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
	schedule       entities.RateSchedule
}

// NewReferralService creates a new referral service
func NewReferralService(
	userRepo interfaces.UserRepository,
	levelService interfaces.LevelService,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	schedule entities.RateSchedule,
) interfaces.ReferralService {
	return &referralService{
		userRepo:       userRepo,
		levelService:   levelService,
		eventPublisher: eventPublisher,
		clock:          clock,
		schedule:       schedule,
	}
}

// Register creates a user under referredBy and refreshes the levels of the
// nearest ancestors. Registration itself pays no commission: a new user
// holds no stakes, so every proportional share would be zero.
func (s *referralService) Register(ctx context.Context, username string, referredBy *int64, securityPassword string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.Validation("username is required")
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	if existing != nil {
		return nil, domain.Conflict("username %s is taken", username)
	}

	if referredBy != nil {
		referrer, err := s.userRepo.GetByID(ctx, *referredBy)
		if err != nil {
			return nil, fmt.Errorf("failed to get referrer %d: %w", *referredBy, err)
		}
		if referrer == nil {
			return nil, domain.NotFound("referrer %d not found", *referredBy)
		}
	}

	now := s.clock.Now()
	user := &entities.User{
		Username:              username,
		WalletBalance:         decimal.Zero,
		TotalStakes:           decimal.Zero,
		TotalCommissionEarned: decimal.Zero,
		LifetimeDeposits:      decimal.Zero,
		TotalUSDT:             decimal.Zero,
		ReferredBy:            referredBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if securityPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(securityPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash security password: %w", err)
		}
		h := string(hash)
		user.SecurityPasswordHash = &h
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.eventPublisher.Publish(events.UserRegisteredEvent{
		UserID:     user.ID,
		Username:   user.Username,
		ReferredBy: referredBy,
	}); err != nil {
		log.WithError(err).Error("Failed to publish user registered event")
	}

	if err := s.refreshAncestors(ctx, user); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"username":   user.Username,
		"referredBy": referredBy,
	}).Info("User registered")

	return user, nil
}

func (s *referralService) refreshAncestors(ctx context.Context, user *entities.User) error {
	visited := map[int64]bool{user.ID: true}
	next := user.ReferredBy

	for layer := 1; layer <= s.schedule.RegistrationLayers && next != nil; layer++ {
		if visited[*next] {
			break
		}
		visited[*next] = true

		if _, err := s.levelService.RecomputeLevel(ctx, *next); err != nil {
			return fmt.Errorf("failed to recompute level of ancestor %d: %w", *next, err)
		}

		ancestor, err := s.userRepo.GetByID(ctx, *next)
		if err != nil {
			return fmt.Errorf("failed to get ancestor %d: %w", *next, err)
		}
		if ancestor == nil {
			break
		}
		next = ancestor.ReferredBy
	}
	return nil
}
