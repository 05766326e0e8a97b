package reporting

import (
	"time"

	"callcenter-platform/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest asks for call metrics of one center. Range is half-open [From, To)
// over started_at; a zero range means the last 30 days.
type CallsSummaryRequest struct {
	CenterID string    `json:"center_id"`
	Range    TimeRange `json:"range"`
}

type CallsSummary struct {
	CenterID string    `json:"center_id"`
	Range    TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds int `json:"total_duration_seconds"`
	// AverageDurationSeconds is over calls that have a duration.
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TranscribedCalls int `json:"transcribed_calls"`
}

// CallRow is a call as seen by reporting: the call plus whether a transcript exists.
type CallRow struct {
	calls.Call
	HasTranscript bool
}

// UserActivity is the per-user usage shown next to a user in the dashboard.
type UserActivity struct {
	UserID     string     `json:"user_id"`
	CallsToday int        `json:"calls_today"`
	DailyLimit int        `json:"daily_limit"`
	LastCallAt *time.Time `json:"last_call_at,omitempty"`
}
