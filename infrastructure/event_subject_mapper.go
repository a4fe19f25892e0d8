package infrastructure

import (
	"fmt"

	"stakehub/domain/events"
)

var eventSubjects = map[events.EventType]string{
	events.EventTypeBalanceChange:       "wallet.balance_changed",
	events.EventTypeUserRegistered:      "users.registered",
	events.EventTypeDepositConfirmed:    "deposits.confirmed",
	events.EventTypeCommissionCredited:  "commissions.credited",
	events.EventTypeLevelAdvanced:       "users.level_advanced",
	events.EventTypeStakeUnlocked:       "stakes.unlocked",
	events.EventTypeTradeUnlocked:       "trades.unlocked",
	events.EventTypeWithdrawalRequested: "withdrawals.requested",
	events.EventTypeWithdrawalResolved:  "withdrawals.resolved",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := eventSubjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range eventSubjects {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(eventSubjects))
	for _, s := range eventSubjects {
		subjects = append(subjects, s)
	}
	return subjects
}
