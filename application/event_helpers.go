package application

import (
	"fmt"

	"stakehub/domain/events"
)

// AssertEventType safely asserts an event to a specific type with a detailed error message
func AssertEventType[T events.Event](event events.Event, expectedTypeName string) (T, error) {
	var zero T

	if e, ok := event.(T); ok {
		return e, nil
	}

	if event == nil {
		return zero, fmt.Errorf("event type assertion failed: expected %s, got nil", expectedTypeName)
	}
	return zero, fmt.Errorf("event type assertion failed: expected %s, got %T (event.Type()=%s)",
		expectedTypeName, event, event.Type())
}
