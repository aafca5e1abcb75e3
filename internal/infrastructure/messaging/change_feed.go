package messaging

import (
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// ChangeFeed turns committed student record writes into RecordChangedEvents.
//
// The record store is the source of changes, not the writer: the memory
// repository feeds Notify through Watch and the Postgres change listener feeds
// it from the students table trigger. Writes from any client therefore reach
// the risk trigger.
type ChangeFeed struct {
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewChangeFeed creates a feed publishing on publisher.
func NewChangeFeed(publisher shared.EventPublisher, log *logger.Logger) *ChangeFeed {
	if log == nil {
		log = logger.Default()
	}
	return &ChangeFeed{
		publisher: publisher,
		logger:    log.With(logger.Component("change_feed")),
	}
}

// Notify publishes one write. It never fails the write: the record is already
// stored, and a lost notification only delays the next recompute.
func (f *ChangeFeed) Notify(change student.Change) {
	if err := f.publisher.Publish(student.NewRecordChangedEvent(change)); err != nil {
		f.logger.Error("failed to publish record change", logger.AccountID(change.AccountID), logger.Err(err))
	}
}
