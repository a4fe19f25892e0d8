package application

import (
	"context"

	"stakehub/domain/events"
	"stakehub/infrastructure/observability"
)

// MetricsEventHandler turns committed domain events into counters
type MetricsEventHandler struct{}

func NewMetricsEventHandler() *MetricsEventHandler {
	return &MetricsEventHandler{}
}

func (h *MetricsEventHandler) HandleBalanceChange(ctx context.Context, event events.Event) error {
	e, err := AssertEventType[events.BalanceChangeEvent](event, "BalanceChangeEvent")
	if err != nil {
		return err
	}
	observability.GetMetrics().RecordBalanceTransaction(string(e.TransactionType))
	return nil
}

func (h *MetricsEventHandler) HandleLevelAdvanced(ctx context.Context, event events.Event) error {
	e, err := AssertEventType[events.LevelAdvancedEvent](event, "LevelAdvancedEvent")
	if err != nil {
		return err
	}
	observability.GetMetrics().RecordLevelAdvance(e.NewLevel)
	return nil
}
