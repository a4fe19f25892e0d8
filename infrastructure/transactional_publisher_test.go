package infrastructure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/domain/entities"
	"stakehub/domain/events"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	PublishedEvents []events.Event
	PublishError    error
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, event)
	return nil
}

func TestTransactionalPublisher_FlushDeliversInOrder(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	publisher := NewTransactionalPublisher(mockPublisher)

	first := events.DepositConfirmedEvent{DepositID: 1, UserID: 7, Amount: entities.Money("150")}
	second := events.CommissionCreditedEvent{EarnerID: 3, SourceUserID: 7, Amount: entities.Money("0.90")}

	require.NoError(t, publisher.Publish(first))
	require.NoError(t, publisher.Publish(second))

	assert.Empty(t, mockPublisher.PublishedEvents)
	assert.Equal(t, 2, publisher.PendingCount())

	require.NoError(t, publisher.Flush(context.Background()))

	require.Len(t, mockPublisher.PublishedEvents, 2)
	assert.Equal(t, first, mockPublisher.PublishedEvents[0])
	assert.Equal(t, second, mockPublisher.PublishedEvents[1])
	assert.Zero(t, publisher.PendingCount())
}

func TestTransactionalPublisher_Discard(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	publisher := NewTransactionalPublisher(mockPublisher)

	require.NoError(t, publisher.Publish(events.UserRegisteredEvent{UserID: 1, Username: "alice"}))
	publisher.Discard()

	require.NoError(t, publisher.Flush(context.Background()))
	assert.Empty(t, mockPublisher.PublishedEvents)
}

func TestTransactionalPublisher_PublishErrorsDoNotFailFlush(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{PublishError: errors.New("nats down")}
	publisher := NewTransactionalPublisher(mockPublisher)

	require.NoError(t, publisher.Publish(events.TradeUnlockedEvent{TradeID: 1}))
	assert.NoError(t, publisher.Flush(context.Background()))
	assert.Zero(t, publisher.PendingCount())
}

func TestTransactionalPublisher_LocalHandlersRunOnFlush(t *testing.T) {
	t.Parallel()

	bus := NewLocalEventBus()
	publisher := NewTransactionalPublisher(bus)

	var received []events.Event
	bus.RegisterLocalHandler(events.EventTypeDepositConfirmed, func(ctx context.Context, event events.Event) error {
		received = append(received, event)
		return nil
	})

	event := events.DepositConfirmedEvent{DepositID: 5, UserID: 2}
	require.NoError(t, publisher.Publish(event))
	assert.Empty(t, received)

	require.NoError(t, publisher.Flush(context.Background()))
	require.Len(t, received, 1)
	assert.Equal(t, event, received[0])
}
