package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call store for tests and local runs.
// A single mutex gives the same per-user serialization the Postgres advisory lock does.
type MemoryRepo struct {
	mu          sync.Mutex
	calls       map[string]Call
	transcripts map[string]Transcript // key: call id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls:       map[string]Call{},
		transcripts: map[string]Transcript{},
	}
}

func (r *MemoryRepo) CreateWithinQuota(ctx context.Context, c Call, dayStart time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.countSinceLocked(c.UserID, dayStart)
	if n >= limit {
		return n, ErrQuotaExceeded
	}
	r.calls[c.ID] = c
	return n, nil
}

func (r *MemoryRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countSinceLocked(userID, since), nil
}

func (r *MemoryRepo) countSinceLocked(userID string, since time.Time) int {
	n := 0
	for _, c := range r.calls {
		if c.UserID == userID && c.Status.CountsTowardQuota() && !c.StartedAt.Before(since) {
			n++
		}
	}
	return n
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByConversation(ctx context.Context, conversationID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.ConversationID != "" && c.ConversationID == conversationID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (r *MemoryRepo) Finish(ctx context.Context, id string, status CallStatus, endedAt time.Time, durationSeconds *int) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.Status != CallStatusStarted {
		return c, ErrAlreadyEnded
	}
	c.Status = status
	c.EndedAt = &endedAt
	if durationSeconds != nil {
		d := *durationSeconds
		c.DurationSeconds = &d
	}
	r.calls[id] = c
	return c, nil
}

func (r *MemoryRepo) AttachConversation(ctx context.Context, id, conversationID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.ConversationID == conversationID {
		return c, nil
	}
	if c.ConversationID != "" {
		return c, ErrConversationConflict
	}
	for otherID, other := range r.calls {
		if otherID != id && other.ConversationID == conversationID {
			return Call{}, ErrConversationConflict
		}
	}
	c.ConversationID = conversationID
	r.calls[id] = c
	return c, nil
}

func (r *MemoryRepo) FailStale(ctx context.Context, cutoff, endedAt time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for id, c := range r.calls {
		if c.Status != CallStatusStarted || !c.StartedAt.Before(cutoff) {
			continue
		}
		c.Status = CallStatusFailed
		at := endedAt
		c.EndedAt = &at
		r.calls[id] = c
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpsertTranscript(ctx context.Context, t Transcript) (Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.transcripts[t.CallID]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}
	r.transcripts[t.CallID] = t
	return t, nil
}

func (r *MemoryRepo) GetTranscript(ctx context.Context, callID string) (Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcripts[callID]
	if !ok {
		return Transcript{}, ErrNotFound
	}
	return t, nil
}

// Counts returns the number of stored calls and transcripts.
func (r *MemoryRepo) Counts() (calls, transcripts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls), len(r.transcripts)
}

// Put stores c as-is. Tests use it to seed historical rows.
func (r *MemoryRepo) Put(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = c
}
