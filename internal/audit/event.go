// Package audit records access-record lifecycle transitions as an
// append-only JSON-lines trail.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event
type EventType string

const (
	EventTypeActivated        EventType = "access_activated"
	EventTypeDomainTransfer   EventType = "domain_transferred"
	EventTypeVersionChanged   EventType = "version_changed"
	EventTypeSystemStartup    EventType = "system_startup"
	EventTypeSystemShutdown   EventType = "system_shutdown"
	EventTypePersistenceError EventType = "persistence_error"
)

// Event is a single lifecycle audit entry
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	EventID   string    `json:"event_id"`
	AccountID string    `json:"account_id,omitempty"`
	DomainID  string    `json:"domain_id,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// NewEvent builds an event with a fresh id and timestamp
func NewEvent(eventType EventType) Event {
	return Event{
		Timestamp: time.Now(),
		EventType: eventType,
		EventID:   uuid.NewString(),
	}
}
