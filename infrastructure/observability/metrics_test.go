package observability

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"stakehub/config"
)

func TestMetricsProvider_NilAndDisabledAreNoops(t *testing.T) {
	t.Parallel()

	var nilProvider *MetricsProvider
	assert.NotPanics(t, func() {
		nilProvider.RecordCommission("LEADER_BONUS", decimal.NewFromFloat(0.05), true)
		nilProvider.RecordSweep(TriggerScheduled, 1, 1, 1, time.Second)
		nilProvider.RecordLevelAdvance(2)
	})

	disabled := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, disabled.Initialize(context.Background()))
	assert.NotPanics(t, func() {
		disabled.RecordBalanceTransaction("DEPOSIT")
		disabled.RecordNATSMessagePublished("deposit_confirmed")
	})
	assert.NoError(t, disabled.Shutdown(context.Background()))
}

func newCollectingProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	mp.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	mp.meter = mp.meterProvider.Meter("test")
	require.NoError(t, mp.createInstruments())
	mp.initialized = true
	return mp, reader
}

func int64Sums(t *testing.T, reader *sdkmetric.ManualReader, name, label string) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range data.DataPoints {
				value, _ := dp.Attributes.Value(attribute.Key(label))
				sums[value.Emit()] += dp.Value
			}
		}
	}
	return sums
}

func TestMetricsProvider_RecordSweepByOutcome(t *testing.T) {
	t.Parallel()

	mp, reader := newCollectingProvider(t)
	mp.RecordSweep(TriggerManual, 3, 1, 0, 2*time.Second)
	mp.RecordSweep(TriggerManual, 0, 0, 2, time.Second)

	byOutcome := int64Sums(t, reader, SweepStakesTotal, LabelOutcome)
	assert.Equal(t, map[string]int64{
		OutcomeAccrued:  3,
		OutcomeUnlocked: 1,
		OutcomeFailed:   2,
	}, byOutcome)

	runs := int64Sums(t, reader, SweepRunsTotal, LabelTrigger)
	assert.Equal(t, int64(2), runs[TriggerManual])
}

func TestMetricsProvider_RecordCommission(t *testing.T) {
	t.Parallel()

	mp, reader := newCollectingProvider(t)
	mp.RecordCommission("INDIRECT_L1_3", decimal.RequireFromString("0.90"), true)
	mp.RecordCommission("LEADER_BONUS", decimal.RequireFromString("0.05"), true)
	mp.RecordCommission("LEADER_BONUS", decimal.RequireFromString("0.05"), false)

	credited := int64Sums(t, reader, CommissionsCreditedTotal, LabelType)
	assert.Equal(t, int64(1), credited["INDIRECT_L1_3"])
	assert.Equal(t, int64(1), credited["LEADER_BONUS"])

	skipped := int64Sums(t, reader, CommissionsSkippedTotal, LabelType)
	assert.Equal(t, int64(1), skipped["LEADER_BONUS"])
}
