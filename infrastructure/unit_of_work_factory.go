package infrastructure

import (
	log "github.com/sirupsen/logrus"

	"stakehub/database"
	"stakehub/domain/events"
	"stakehub/domain/interfaces"
	"stakehub/repository"
)

// localHandlerRegistry is implemented by publishers that can run handlers in-process
type localHandlerRegistry interface {
	RegisterLocalHandler(eventType events.EventType, handler EventHandler)
}

// UnitOfWorkFactory implements the interfaces.UnitOfWorkFactory interface.
// It creates UnitOfWork instances whose events are delivered after commit.
type UnitOfWorkFactory struct {
	repoFactory interface {
		CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(db *database.DB, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db),
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers a handler that will be invoked locally for events
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	registry, ok := f.eventPublisher.(localHandlerRegistry)
	if !ok {
		log.WithField("eventType", eventType).Warn("Event publisher does not support local handlers; handler not registered")
		return
	}
	registry.RegisterLocalHandler(eventType, handler)
}

// Create creates a new UnitOfWork with its own transactional publisher
func (f *UnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.repoFactory.CreateWithPublisher(NewTransactionalPublisher(f.eventPublisher))
}
