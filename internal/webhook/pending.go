package webhook

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// Unmatched is a callback that arrived before its conversation id was bound to a call.
type Unmatched struct {
	ConversationID string
	Body           []byte
	ReceivedAt     time.Time
	Deliveries     int
}

// PendingStore parks unmatched callbacks until the conversation is attached.
// Park on an id that is already parked replaces the body and counts the delivery.
// Take removes and returns the parked callback; ok is false when there is none.
type PendingStore interface {
	Park(ctx context.Context, u Unmatched) error
	Take(ctx context.Context, conversationID string) (u Unmatched, ok bool, err error)
}

type MemoryPending struct {
	mu    sync.Mutex
	items map[string]Unmatched
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{items: map[string]Unmatched{}}
}

func (m *MemoryPending) Park(ctx context.Context, u Unmatched) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Deliveries = m.items[u.ConversationID].Deliveries + 1
	m.items[u.ConversationID] = u
	return nil
}

func (m *MemoryPending) Take(ctx context.Context, conversationID string) (Unmatched, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[conversationID]
	if ok {
		delete(m.items, conversationID)
	}
	return u, ok, nil
}

func (m *MemoryPending) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// PostgresPending stores parked callbacks in unmatched_webhooks.
type PostgresPending struct {
	db *sql.DB
}

func NewPostgresPending(db *sql.DB) *PostgresPending { return &PostgresPending{db: db} }

func (p *PostgresPending) Park(ctx context.Context, u Unmatched) error {
	const q = `
INSERT INTO unmatched_webhooks (conversation_id, body, received_at, deliveries)
VALUES ($1, $2::jsonb, $3, 1)
ON CONFLICT (conversation_id) DO UPDATE
SET body = EXCLUDED.body,
    received_at = EXCLUDED.received_at,
    deliveries = unmatched_webhooks.deliveries + 1
`
	_, err := p.db.ExecContext(ctx, q, u.ConversationID, string(u.Body), u.ReceivedAt)
	return err
}

func (p *PostgresPending) Take(ctx context.Context, conversationID string) (Unmatched, bool, error) {
	const q = `
DELETE FROM unmatched_webhooks
WHERE conversation_id = $1
RETURNING conversation_id, body, received_at, deliveries
`
	var (
		u    Unmatched
		body string
	)
	err := p.db.QueryRowContext(ctx, q, conversationID).Scan(&u.ConversationID, &body, &u.ReceivedAt, &u.Deliveries)
	if errors.Is(err, sql.ErrNoRows) {
		return Unmatched{}, false, nil
	}
	if err != nil {
		return Unmatched{}, false, err
	}
	u.Body = []byte(body)
	return u, true, nil
}
