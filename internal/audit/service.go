package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information for operators.
// Callers treat audit logging as best-effort. A nil *Service discards events.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogStaffAction records a dashboard mutation by a staff member.
func (s *Service) LogStaffAction(ctx context.Context, actorProfileID, actorRole, ip, centerID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeStaffAction,
		ActorProfileID: actorProfileID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		CenterID:       centerID,
		Message:        message,
		Metadata:       metadata,
	})
}

// LogCall records a call lifecycle anomaly (misses, conflicts, duplicates).
func (s *Service) LogCall(ctx context.Context, typ EventType, callID, conversationID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:           typ,
		CallID:         callID,
		ConversationID: conversationID,
		Message:        message,
		Metadata:       metadata,
	})
}
