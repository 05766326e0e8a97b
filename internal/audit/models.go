package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
//
// Storage: table audit_events, INSERT-only (see migrations).
type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	// ActorProfileID is the staff profile causing the event, empty for provider or system events.
	ActorProfileID string `json:"actor_profile_id,omitempty" db:"actor_profile_id"`
	ActorRole      string `json:"actor_role,omitempty" db:"actor_role"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CenterID       string `json:"center_id,omitempty" db:"center_id"`
	CallID         string `json:"call_id,omitempty" db:"call_id"`
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`

	// Message is a short human-readable description for operators.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeStaffAction         EventType = "staff_action"
	EventTypeCorrelationMiss     EventType = "correlation_miss"
	EventTypeCorrelationConflict EventType = "correlation_conflict"
	EventTypeCorrelationReplay   EventType = "correlation_replay"
	EventTypeDuplicateEnd        EventType = "duplicate_end"
	EventTypeWebhookRejected     EventType = "webhook_rejected"
	EventTypeUpstreamFailure     EventType = "upstream_failure"
	EventTypeStaleSweep          EventType = "stale_sweep"
)
