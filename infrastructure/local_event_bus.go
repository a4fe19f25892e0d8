package infrastructure

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"stakehub/domain/events"
)

// EventHandler handles one event delivered in-process
type EventHandler func(ctx context.Context, event events.Event) error

// LocalEventBus dispatches events to handlers registered in this process.
// Handlers run synchronously in registration order; a failing or panicking
// handler is logged and does not stop the others.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]EventHandler
}

// NewLocalEventBus creates a new in-process event bus
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		handlers: make(map[events.EventType][]EventHandler),
	}
}

// RegisterLocalHandler adds a handler for a specific event type
func (b *LocalEventBus) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Registered local event handler")
}

// Publish delivers event to every handler registered for its type
func (b *LocalEventBus) Publish(event events.Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// Emit delivers event using ctx
func (b *LocalEventBus) Emit(ctx context.Context, event events.Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": i,
				"error":        err,
			}).Error("Local event handler failed")
		}
	}
}

func (b *LocalEventBus) invoke(ctx context.Context, handler EventHandler, event events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}
