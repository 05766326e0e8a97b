package calls

import (
	"encoding/json"
	"time"
)

// Call is one voice session of an end user with the conversational agent.
//
// Invariants:
// - started => EndedAt and DurationSeconds are nil.
// - completed/failed => EndedAt is set; no transition leaves a terminal status.
// - ConversationID is set at most once and is unique across calls.
type Call struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	CenterID  string     `json:"center_id" db:"center_id"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds *int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	Status CallStatus `json:"status" db:"status"`

	// ConversationID is the provider's conversation identifier, the webhook correlation key.
	ConversationID string `json:"elevenlabs_conversation_id,omitempty" db:"elevenlabs_conversation_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallStatus string

const (
	CallStatusStarted   CallStatus = "started"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// CountsTowardQuota reports whether a call in this status uses up a daily slot.
// Failed calls are given back.
func (s CallStatus) CountsTowardQuota() bool {
	return s == CallStatusStarted || s == CallStatusCompleted
}

// Transcript holds the conversation text delivered by the provider webhook.
// One per call; redelivery overwrites.
type Transcript struct {
	ID        string             `json:"id" db:"id"`
	CallID    string             `json:"call_id" db:"call_id"`
	Content   string             `json:"content" db:"content"`
	Metadata  TranscriptMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

type TranscriptMetadata struct {
	ConversationID string          `json:"conversation_id"`
	AgentID        string          `json:"agent_id,omitempty"`
	Status         string          `json:"status,omitempty"`
	Type           string          `json:"type,omitempty"`
	Analysis       json.RawMessage `json:"analysis,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
}
