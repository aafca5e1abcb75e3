package shared

import "time"

// EventType names what happened.
type EventType string

const (
	// EventStudentRecordChanged fires after every committed write to a student
	// record and carries the before/after snapshots.
	EventStudentRecordChanged EventType = "student.record_changed"

	// EventRoleAssigned fires once both writes of a role assignment have landed.
	EventRoleAssigned EventType = "account.role_assigned"
)

// Event is what travels on the bus. Payload is the part that survives a trip
// through Redis; everything else is rebuilt from the envelope.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent is embedded by concrete events for the envelope fields. Embedders
// add Payload.
type BaseEvent struct {
	kind    EventType
	subject string
	at      time.Time
}

// NewBaseEvent stamps an event about subject with the current time.
func NewBaseEvent(kind EventType, subject string) BaseEvent {
	return BaseEvent{kind: kind, subject: subject, at: time.Now().UTC()}
}

func (e BaseEvent) EventType() EventType  { return e.kind }
func (e BaseEvent) OccurredAt() time.Time { return e.at }

// AggregateID is the account the event is about.
func (e BaseEvent) AggregateID() string { return e.subject }

// EventHandler consumes one event. A returned error is logged by the bus and
// does not stop other handlers.
type EventHandler func(event Event) error

// EventPublisher is the write side of a bus.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber is the read side of a bus.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
