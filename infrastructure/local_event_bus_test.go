package infrastructure

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakehub/domain/events"
)

func TestLocalEventBus_DispatchByType(t *testing.T) {
	t.Parallel()

	bus := NewLocalEventBus()

	var levels, deposits int
	bus.RegisterLocalHandler(events.EventTypeLevelAdvanced, func(context.Context, events.Event) error {
		levels++
		return nil
	})
	bus.RegisterLocalHandler(events.EventTypeDepositConfirmed, func(context.Context, events.Event) error {
		deposits++
		return nil
	})

	require.NoError(t, bus.Publish(events.LevelAdvancedEvent{UserID: 1, OldLevel: 0, NewLevel: 1}))
	require.NoError(t, bus.Publish(events.LevelAdvancedEvent{UserID: 2, OldLevel: 1, NewLevel: 2}))

	assert.Equal(t, 2, levels)
	assert.Zero(t, deposits)
}

func TestLocalEventBus_FailingHandlersAreIsolated(t *testing.T) {
	t.Parallel()

	bus := NewLocalEventBus()

	var order []string
	bus.RegisterLocalHandler(events.EventTypeStakeUnlocked, func(context.Context, events.Event) error {
		order = append(order, "error")
		return errors.New("boom")
	})
	bus.RegisterLocalHandler(events.EventTypeStakeUnlocked, func(context.Context, events.Event) error {
		order = append(order, "panic")
		panic("handler bug")
	})
	bus.RegisterLocalHandler(events.EventTypeStakeUnlocked, func(context.Context, events.Event) error {
		order = append(order, "ok")
		return nil
	})

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(events.StakeUnlockedEvent{StakeID: 9}))
	})
	assert.Equal(t, []string{"error", "panic", "ok"}, order)
}

func TestEventSubjectMapper(t *testing.T) {
	t.Parallel()

	mapper := NewEventSubjectMapper()

	assert.Equal(t, "commissions.credited", mapper.MapEventToSubject(events.CommissionCreditedEvent{}))
	assert.Equal(t, "withdrawals.resolved", mapper.MapEventToSubject(events.WithdrawalResolvedEvent{}))
	assert.Equal(t, events.EventTypeDepositConfirmed, mapper.MapSubjectToEventType("deposits.confirmed"))
	assert.Equal(t, events.EventType("other.subject"), mapper.MapSubjectToEventType("other.subject"))
	assert.Len(t, mapper.GetAllSubjects(), 9)
}

func TestNewEnvelope(t *testing.T) {
	t.Parallel()

	envelope, data, err := newEnvelope(events.UserRegisteredEvent{UserID: 4, Username: "dana"})
	require.NoError(t, err)

	_, err = uuid.Parse(envelope.EventID)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"event_id":"`+envelope.EventID+`"`)

	assert.Contains(t, string(data), `"event_type":"user_registered"`)
	assert.Contains(t, string(data), `"source_service":"stakehub"`)
	assert.Contains(t, string(data), `"Username":"dana"`)
}

func TestMissingSubjects(t *testing.T) {
	t.Parallel()

	existing := []string{"deposits.confirmed", "users.registered"}
	wanted := []string{"users.registered", "deposits.confirmed", "levels.advanced"}

	assert.Equal(t, []string{"levels.advanced"}, missingSubjects(existing, wanted))
	assert.Empty(t, missingSubjects(wanted, existing))
}
