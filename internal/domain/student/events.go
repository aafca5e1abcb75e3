package student

import (
	"encoding/json"
	"fmt"

	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// RecordChangedEvent is the on-change notification for a student record.
// It is published after every successful write, including the risk trigger's own.
type RecordChangedEvent struct {
	shared.BaseEvent
	Before *Record `json:"before"`
	After  *Record `json:"after"`
}

// Payload implements shared.Event.
func (e RecordChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"account_id": e.AggregateID(),
		"before":     e.Before,
		"after":      e.After,
	}
}

// Change returns the write described by the event.
func (e RecordChangedEvent) Change() Change {
	return Change{AccountID: e.AggregateID(), Before: e.Before, After: e.After}
}

// NewRecordChangedEvent creates a RecordChangedEvent from a write. Snapshots are cloned.
func NewRecordChangedEvent(c Change) RecordChangedEvent {
	return RecordChangedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentRecordChanged, c.AccountID),
		Before:    c.Before.Clone(),
		After:     c.After.Clone(),
	}
}

// ChangeFromEvent recovers the write from a record-changed event. Events that
// crossed a process boundary arrive as a generic payload and are decoded here.
func ChangeFromEvent(event shared.Event) (Change, error) {
	switch e := event.(type) {
	case RecordChangedEvent:
		return e.Change(), nil
	case *RecordChangedEvent:
		return e.Change(), nil
	}

	if event.EventType() != shared.EventStudentRecordChanged {
		return Change{}, fmt.Errorf("unexpected event type %q", event.EventType())
	}

	payload := event.Payload()
	before, err := decodeSnapshot(payload["before"])
	if err != nil {
		return Change{}, fmt.Errorf("decode before snapshot: %w", err)
	}
	after, err := decodeSnapshot(payload["after"])
	if err != nil {
		return Change{}, fmt.Errorf("decode after snapshot: %w", err)
	}
	return Change{AccountID: event.AggregateID(), Before: before, After: after}, nil
}

func decodeSnapshot(v interface{}) (*Record, error) {
	if v == nil {
		return nil, nil
	}
	if r, ok := v.(*Record); ok {
		return r.Clone(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
