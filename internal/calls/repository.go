package calls

import (
	"context"
	"time"
)

// Repository is the persistence contract for calls and transcripts.
//
// Status transitions are conditional writes: Finish only moves a call out of
// "started", so a client end and a webhook completion racing on the same row
// cannot both apply.
type Repository interface {
	// CreateWithinQuota inserts c if the user has fewer than limit quota-counted
	// calls started at or after dayStart. It returns the count observed before
	// the insert and ErrQuotaExceeded when the limit is reached. Implementations
	// serialize concurrent creations per user.
	CreateWithinQuota(ctx context.Context, c Call, dayStart time.Time, limit int) (int, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)

	Get(ctx context.Context, id string) (Call, error)
	GetByConversation(ctx context.Context, conversationID string) (Call, error)

	// Finish moves a started call to status. ErrAlreadyEnded when it is terminal.
	Finish(ctx context.Context, id string, status CallStatus, endedAt time.Time, durationSeconds *int) (Call, error)
	// AttachConversation sets the conversation id when unset or already equal.
	// ErrConversationConflict when a different id is set or the id belongs to another call.
	AttachConversation(ctx context.Context, id, conversationID string) (Call, error)
	// FailStale fails every started call that started before cutoff.
	FailStale(ctx context.Context, cutoff, endedAt time.Time) ([]Call, error)

	ListRecent(ctx context.Context, limit int) ([]Call, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Call, error)

	// UpsertTranscript inserts or replaces the transcript keyed by call id.
	UpsertTranscript(ctx context.Context, t Transcript) (Transcript, error)
	GetTranscript(ctx context.Context, callID string) (Transcript, error)
}
