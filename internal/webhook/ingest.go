package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/calls"
	"callcenter-platform/pkg/logger"
)

// CallStore is the part of the call service the ingest path drives.
type CallStore interface {
	FindByConversation(ctx context.Context, conversationID string) (calls.Call, error)
	SaveTranscript(ctx context.Context, callID, content string, meta calls.TranscriptMetadata) (calls.Transcript, error)
	CompleteFromProvider(ctx context.Context, callID string, reportedSeconds *int) (calls.Call, bool, error)
	RecentCalls(ctx context.Context, n int) ([]calls.Call, error)
}

// Outcome reports what one callback did.
type Outcome struct {
	Matched        bool
	CallID         string
	ConversationID string
	// Completed is true when this delivery moved the call to completed.
	Completed bool
}

// recentOnMiss is how many recent calls are logged next to a correlation miss.
const recentOnMiss = 5

type Ingestor struct {
	calls   CallStore
	pending PendingStore
	audit   *audit.Service
	now     func() time.Time
}

func NewIngestor(cs CallStore, pending PendingStore, auditSvc *audit.Service) *Ingestor {
	if pending == nil {
		pending = NewMemoryPending()
	}
	return &Ingestor{calls: cs, pending: pending, audit: auditSvc, now: time.Now}
}

// Ingest correlates a parsed callback with its call. body is the raw request body,
// parked as-is when no call carries the conversation id yet.
func (i *Ingestor) Ingest(ctx context.Context, p Payload, body []byte) (Outcome, error) {
	out := Outcome{ConversationID: p.ConversationID}

	c, err := i.calls.FindByConversation(ctx, p.ConversationID)
	if errors.Is(err, calls.ErrNotFound) {
		i.park(ctx, p, body)

		// An attach may have committed between the lookup and the park. Look once more.
		c, err = i.calls.FindByConversation(ctx, p.ConversationID)
		if err != nil {
			return out, nil
		}
		_, ok, terr := i.pending.Take(ctx, p.ConversationID)
		if terr != nil {
			return out, fmt.Errorf("take parked webhook: %w", terr)
		}
		if !ok {
			// The attach replay already took and applied this body.
			return Outcome{Matched: true, CallID: c.ID, ConversationID: p.ConversationID}, nil
		}
		return i.apply(ctx, c, p)
	}
	if err != nil {
		return out, fmt.Errorf("find call: %w", err)
	}
	return i.apply(ctx, c, p)
}

func (i *Ingestor) apply(ctx context.Context, c calls.Call, p Payload) (Outcome, error) {
	out := Outcome{Matched: true, CallID: c.ID, ConversationID: p.ConversationID}

	meta := calls.TranscriptMetadata{
		ConversationID: p.ConversationID,
		AgentID:        p.AgentID,
		Status:         p.Status,
		Type:           p.Type,
		Analysis:       p.Analysis,
		ReceivedAt:     i.now().UTC(),
	}
	if _, err := i.calls.SaveTranscript(ctx, c.ID, FlattenTranscript(p.Transcript), meta); err != nil {
		return out, fmt.Errorf("save transcript: %w", err)
	}

	_, completed, err := i.calls.CompleteFromProvider(ctx, c.ID, p.DurationSeconds)
	if err != nil {
		// The transcript is stored; redelivery retries the status change.
		return out, fmt.Errorf("complete call: %w", err)
	}
	out.Completed = completed
	return out, nil
}

func (i *Ingestor) park(ctx context.Context, p Payload, body []byte) {
	log := logger.From(ctx)

	recent, err := i.calls.RecentCalls(ctx, recentOnMiss)
	if err != nil {
		log.Warn("recent calls lookup failed", "err", err)
	}
	ids := make([]string, 0, len(recent))
	for _, c := range recent {
		ids = append(ids, c.ID+"="+c.ConversationID)
	}
	log.Warn("webhook conversation not correlated",
		"conversation_id", p.ConversationID,
		"recent_calls", ids,
	)

	if err := i.pending.Park(ctx, Unmatched{ConversationID: p.ConversationID, Body: body, ReceivedAt: i.now().UTC()}); err != nil {
		log.Error("park unmatched webhook failed", "conversation_id", p.ConversationID, "err", err)
	}
	_ = i.audit.LogCall(ctx, audit.EventTypeCorrelationMiss, "", p.ConversationID, "webhook conversation not correlated", "")
}

// ReplayPending applies a parked callback once its conversation id is bound to c.
// It has the calls.AttachHook signature.
func (i *Ingestor) ReplayPending(ctx context.Context, c calls.Call) {
	if c.ConversationID == "" {
		return
	}
	log := logger.From(ctx)

	u, ok, err := i.pending.Take(ctx, c.ConversationID)
	if err != nil {
		log.Error("take parked webhook failed", "conversation_id", c.ConversationID, "err", err)
		return
	}
	if !ok {
		return
	}

	p, err := ParsePayload(u.Body)
	if err != nil {
		log.Error("parked webhook unreadable", "conversation_id", c.ConversationID, "err", err)
		return
	}
	out, err := i.apply(ctx, c, p)
	if err != nil {
		log.Error("replay parked webhook failed", "call_id", c.ID, "conversation_id", c.ConversationID, "err", err)
		if perr := i.pending.Park(ctx, u); perr != nil {
			log.Error("re-park webhook failed", "conversation_id", c.ConversationID, "err", perr)
		}
		return
	}
	log.Info("parked webhook replayed", "call_id", c.ID, "conversation_id", c.ConversationID, "completed", out.Completed)
	_ = i.audit.LogCall(ctx, audit.EventTypeCorrelationReplay, c.ID, c.ConversationID, "parked webhook replayed", "")
}
