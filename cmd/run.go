package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stakehub/application"
	"stakehub/config"
	"stakehub/database"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/domain/services"
	"stakehub/infrastructure"
	"stakehub/infrastructure/observability"
)

// stack holds the wired application and everything that must be closed on exit
type stack struct {
	cfg        *config.Config
	db         *database.DB
	natsClient *infrastructure.NATSClient
	redis      *redis.Client
	uowFactory *infrastructure.UnitOfWorkFactory
	platform   *application.Platform
	clock      interfaces.Clock
}

// bootstrap connects to the database and event transport and wires the platform
func bootstrap(ctx context.Context) (*stack, error) {
	cfg := config.Get()
	s := &stack{cfg: cfg, clock: interfaces.SystemClock{}}

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.WithMaxConns(cfg.DatabaseMaxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db
	log.Info("Database connection established")

	var publisher interfaces.EventPublisher
	if cfg.NATSEnabled {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		s.natsClient = natsClient

		natsPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := natsPublisher.EnsureDomainEventStream(); err != nil {
			log.WithError(err).Warn("Failed to ensure domain event stream")
		}
		publisher = natsPublisher
	} else {
		log.Info("NATS disabled, delivering events in-process only")
		publisher = infrastructure.NewLocalEventBus()
	}

	s.uowFactory = infrastructure.NewUnitOfWorkFactory(db, publisher)

	s.platform = application.NewPlatform(s.uowFactory, s.clock, cfg.RateSchedule(), services.WithdrawalLimits{
		Min: cfg.WithdrawalMin,
		Max: cfg.WithdrawalMax,
	})

	// An advance refreshes the referrer, so raises climb until an ancestor holds
	levelRefresh := s.platform.LevelRefresh()
	s.uowFactory.RegisterLocalHandler(events.EventTypeDepositConfirmed, levelRefresh.HandleDepositConfirmed)
	s.uowFactory.RegisterLocalHandler(events.EventTypeCommissionCredited, levelRefresh.HandleCommissionCredited)
	s.uowFactory.RegisterLocalHandler(events.EventTypeLevelAdvanced, levelRefresh.HandleLevelAdvanced)

	metricsHandler := application.NewMetricsEventHandler()
	s.uowFactory.RegisterLocalHandler(events.EventTypeBalanceChange, metricsHandler.HandleBalanceChange)
	s.uowFactory.RegisterLocalHandler(events.EventTypeLevelAdvanced, metricsHandler.HandleLevelAdvanced)

	return s, nil
}

// sweepLock returns the Redis lease for the sweep worker, or nil when Redis is not configured
func (s *stack) sweepLock(ctx context.Context) (application.SweepLock, error) {
	if s.cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, stake sweep runs without a distributed lock")
		return nil, nil
	}

	client, err := infrastructure.NewRedisClient(ctx, s.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.redis = client
	return infrastructure.NewRedisLock(client), nil
}

func (s *stack) close(ctx context.Context) {
	if s.natsClient != nil {
		if err := s.natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis client")
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	if err := observability.ShutdownGlobalMetrics(ctx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}
}

// Run initializes the platform and runs the daily stake sweep until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting stakehub...")

	s, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.close(shutdownCtx)
		log.Info("Shutdown complete")
	}()

	lock, err := s.sweepLock(ctx)
	if err != nil {
		return err
	}

	worker := application.NewStakeSweepWorker(s.platform.Sweeper(), s.platform.LevelSweeper(), s.uowFactory, s.clock, lock)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stop := worker.Start(gctx, s.cfg.SweepHour)
		<-gctx.Done()
		stop()
		return nil
	})
	if s.natsClient != nil {
		g.Go(func() error {
			return watchNATS(gctx, s.natsClient)
		})
	}

	log.Infof("stakehub is running in %s mode", s.cfg.Environment)
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Shutting down stakehub...")
	return nil
}

// watchNATS logs transitions of the NATS connection state
func watchNATS(ctx context.Context, client *infrastructure.NATSClient) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	connected := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := client.IsConnected()
			if now != connected {
				if now {
					log.Info("NATS connection restored")
				} else {
					log.Warn("NATS connection lost, events are delivered locally until it recovers")
				}
				connected = now
			}
		}
	}
}

// Sweep settles every active stake once and exits
func Sweep(ctx context.Context) error {
	s, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	summary, err := s.platform.SettleAllActiveStakes(ctx)
	if err != nil {
		return fmt.Errorf("stake sweep failed: %w", err)
	}

	log.WithFields(log.Fields{
		"processed":     summary.StakesProcessed,
		"accrued":       summary.StakesAccrued,
		"unlocked":      summary.StakesUnlocked,
		"totalCredited": summary.TotalCredited.StringFixed(2),
		"failures":      len(summary.Failures),
		"duration":      summary.Duration,
	}).Info("Manual stake sweep finished")

	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d of %d stakes failed to settle", len(summary.Failures), summary.StakesProcessed)
	}
	return nil
}

// Levels recomputes every user's level once and exits
func Levels(ctx context.Context) error {
	s, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	summary, err := s.platform.RecomputeAllLevels(ctx)
	if err != nil {
		return fmt.Errorf("level sweep failed: %w", err)
	}

	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d of %d users failed level recompute", len(summary.Failures), summary.UsersProcessed)
	}
	return nil
}
