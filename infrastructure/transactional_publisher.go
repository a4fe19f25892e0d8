package infrastructure

import (
	"context"

	log "github.com/sirupsen/logrus"

	"stakehub/domain/events"
	"stakehub/domain/interfaces"
)

// TransactionalPublisher holds events until flush, then hands them to the
// real publisher. One instance belongs to one unit of work.
type TransactionalPublisher struct {
	realPublisher interfaces.EventPublisher
	pending       []events.Event
}

// NewTransactionalPublisher creates a new transactional publisher
func NewTransactionalPublisher(realPublisher interfaces.EventPublisher) *TransactionalPublisher {
	return &TransactionalPublisher{
		realPublisher: realPublisher,
		pending:       make([]events.Event, 0),
	}
}

// Publish stores an event in the pending queue without immediately publishing
func (p *TransactionalPublisher) Publish(event events.Event) error {
	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"pendingCount": len(p.pending),
	}).Debug("Adding event to transactional publisher pending queue")

	p.pending = append(p.pending, event)
	return nil
}

// Flush publishes all pending events. Called after the database commit, so
// publish failures are logged and never undo the transaction.
func (p *TransactionalPublisher) Flush(ctx context.Context) error {
	// Handlers may publish again through another unit of work; take the
	// queue first so re-entry sees an empty one
	pending := p.pending
	p.pending = make([]events.Event, 0)

	for _, event := range pending {
		if err := p.realPublisher.Publish(event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to publish event during flush")
		}
	}

	log.WithField("flushedEventCount", len(pending)).Debug("Transactional publisher flushed")
	return nil
}

// Discard clears all pending events without publishing them
func (p *TransactionalPublisher) Discard() {
	log.WithFields(log.Fields{
		"discardedEventCount": len(p.pending),
	}).Debug("Discarding pending events from transactional publisher")

	p.pending = p.pending[:0]
}

// PendingCount returns the number of events waiting for flush
func (p *TransactionalPublisher) PendingCount() int {
	return len(p.pending)
}
