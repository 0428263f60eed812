package models

// EventType labels an audit-log entry.
type EventType string

const (
	EventExpenseRecorded    EventType = "expense_recorded"
	EventSettlementRecorded EventType = "settlement_recorded"
	EventPersonRegistered   EventType = "person_registered"
	EventPersonRemoved      EventType = "person_removed"
)

// Event is an audit-log entry describing one ledger mutation. Events are
// written asynchronously by the event worker and never read back by the
// engine itself.
type Event struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// Type labels what happened.
	Type EventType

	// Payload is a JSON document with event-specific details.
	Payload string

	// CreatedAt is the Unix timestamp when the event was emitted.
	CreatedAt int64
}
