package provider

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConfigured = errors.New("provider: credentials not configured")
	ErrUpstream      = errors.New("provider: upstream failure")
)

// VoiceProvider is the conversational voice service the browser talks to directly.
// The server only hands out short-lived connection URLs; API credentials never leave it.
type VoiceProvider interface {
	Name() string
	SignedURL(ctx context.Context, req SessionRequest) (Session, error)
}

type SessionRequest struct {
	// CallID is the local call the session is opened for. Used for logging only.
	CallID string
}

type Session struct {
	SignedURL string    `json:"signedUrl"`
	AgentID   string    `json:"agentId,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
}
