package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"stakehub/config"
)

// MetricsProvider manages OpenTelemetry metrics for the stakehub service.
// A nil or disabled provider accepts every Record call and drops it.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	commissionsCreditedCounter   metric.Int64Counter
	commissionsSkippedCounter    metric.Int64Counter
	commissionAmountCounter      metric.Float64Counter
	sweepRunsCounter             metric.Int64Counter
	sweepStakesCounter           metric.Int64Counter
	sweepDurationHist            metric.Float64Histogram
	natsMessagesPublishedCounter metric.Int64Counter
	balanceTransactionsCounter   metric.Int64Counter
	levelAdvancesCounter         metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)

	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("stakehub")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// instrumentBuilder keeps the first instrument creation error so
// createInstruments can declare every instrument without repeating checks
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, description, unit string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		b.err = fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) amountCounter(name, description string) metric.Float64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Float64Counter(name, metric.WithDescription(description), metric.WithUnit("USDT"))
	if err != nil {
		b.err = fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) secondsHistogram(name, description string, bounds ...float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil {
		b.err = fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return h
}

func (mp *MetricsProvider) createInstruments() error {
	b := &instrumentBuilder{meter: mp.meter}

	mp.commissionsCreditedCounter = b.counter(CommissionsCreditedTotal, "Commission ledger entries credited", "1")
	mp.commissionsSkippedCounter = b.counter(CommissionsSkippedTotal, "Commission entries skipped as already recorded", "1")
	mp.commissionAmountCounter = b.amountCounter(CommissionAmountTotal, "Commission amount credited")

	mp.sweepRunsCounter = b.counter(SweepRunsTotal, "Stake sweeps executed", "1")
	mp.sweepStakesCounter = b.counter(SweepStakesTotal, "Stakes handled by sweeps, by outcome", "1")
	mp.sweepDurationHist = b.secondsHistogram(SweepDuration, "Duration of stake sweeps", 0.1, 0.5, 1, 5, 10, 30, 60, 300)

	mp.natsMessagesPublishedCounter = b.counter(NATSMessagesPublishedTotal, "Domain events published to NATS", "1")
	mp.balanceTransactionsCounter = b.counter(BalanceTransactionsTotal, "Wallet balance changes", "1")
	mp.levelAdvancesCounter = b.counter(LevelAdvancesTotal, "Level increases applied to users", "1")

	return b.err
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordCommission records one fan-out entry
func (mp *MetricsProvider) RecordCommission(commissionType string, amount decimal.Decimal, credited bool) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelType, commissionType))
	if !credited {
		mp.commissionsSkippedCounter.Add(context.Background(), 1, attrs)
		return
	}
	mp.commissionsCreditedCounter.Add(context.Background(), 1, attrs)
	mp.commissionAmountCounter.Add(context.Background(), amount.InexactFloat64(), attrs)
}

// RecordSweep records a finished sweep and its per-stake outcomes
func (mp *MetricsProvider) RecordSweep(trigger string, accrued, unlocked, failed int, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	triggerAttr := attribute.String(LabelTrigger, trigger)

	mp.sweepRunsCounter.Add(ctx, 1, metric.WithAttributes(triggerAttr))
	for outcome, n := range map[string]int{OutcomeAccrued: accrued, OutcomeUnlocked: unlocked, OutcomeFailed: failed} {
		if n == 0 {
			continue
		}
		mp.sweepStakesCounter.Add(ctx, int64(n), metric.WithAttributes(triggerAttr, attribute.String(LabelOutcome, outcome)))
	}
	mp.sweepDurationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(triggerAttr))
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// RecordBalanceTransaction records a wallet transaction
func (mp *MetricsProvider) RecordBalanceTransaction(transactionType string) {
	if !mp.isEnabled() {
		return
	}

	mp.balanceTransactionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, transactionType),
		),
	)
}

// RecordLevelAdvance records a user reaching a higher level
func (mp *MetricsProvider) RecordLevelAdvance(newLevel int) {
	if !mp.isEnabled() {
		return
	}

	mp.levelAdvancesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.Int(LabelLevel, newLevel),
		),
	)
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider. It may be nil before
// InitializeGlobalMetrics runs, which every Record method tolerates.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
