package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"callcenter-platform/pkg/utils"
)

// NOTE: This repository assumes the tables in migrations/001_init.sql:
// - calls (elevenlabs_conversation_id UNIQUE as calls_conversation_id_key)
// - transcripts (call_id UNIQUE)

const conversationConstraint = "calls_conversation_id_key"

const callColumns = `id, user_id, COALESCE(center_id::text,''), started_at, ended_at, duration_seconds, status, COALESCE(elevenlabs_conversation_id,''), created_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c        Call
		endedAt  sql.NullTime
		duration sql.NullInt64
		status   string
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.CenterID,
		&c.StartedAt,
		&endedAt,
		&duration,
		&status,
		&c.ConversationID,
		&c.CreatedAt,
	); err != nil {
		return Call{}, err
	}
	c.Status = CallStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	return c, nil
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	defer rows.Close()
	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateWithinQuota(ctx context.Context, c Call, dayStart time.Time, limit int) (int, error) {
	var count int
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Serialize call creation per user until commit so two starts cannot both pass the count.
		const lockQ = `SELECT pg_advisory_xact_lock(hashtext($1))`
		if _, err := tx.ExecContext(ctx, lockQ, c.UserID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		n, err := countSince(ctx, tx, c.UserID, dayStart)
		if err != nil {
			return err
		}
		count = n
		if n >= limit {
			return ErrQuotaExceeded
		}

		const insQ = `
INSERT INTO calls (id, user_id, center_id, started_at, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
		_, err = tx.ExecContext(ctx, insQ, c.ID, c.UserID, c.CenterID, c.StartedAt, string(c.Status), c.CreatedAt)
		return err
	})
	return count, err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countSince(ctx context.Context, q queryRower, userID string, since time.Time) (int, error) {
	const query = `
SELECT count(*)
FROM calls
WHERE user_id = $1
  AND status IN ('started', 'completed')
  AND started_at >= $2
`
	var n int
	if err := q.QueryRowContext(ctx, query, userID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return countSince(ctx, r.db, userID, since)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if utils.IsNoRows(err) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) GetByConversation(ctx context.Context, conversationID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE elevenlabs_conversation_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, conversationID))
	if err != nil {
		if utils.IsNoRows(err) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Finish(ctx context.Context, id string, status CallStatus, endedAt time.Time, durationSeconds *int) (Call, error) {
	q := `
UPDATE calls
SET status = $2, ended_at = $3, duration_seconds = $4
WHERE id = $1 AND status = 'started'
RETURNING ` + callColumns

	var dur sql.NullInt64
	if durationSeconds != nil {
		dur = sql.NullInt64{Int64: int64(*durationSeconds), Valid: true}
	}
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, string(status), endedAt, dur))
	if err == nil {
		return c, nil
	}
	if !utils.IsNoRows(err) {
		return Call{}, err
	}

	// Nothing updated: either the call is missing or already terminal.
	cur, err := r.Get(ctx, id)
	if err != nil {
		return Call{}, err
	}
	return cur, ErrAlreadyEnded
}

func (r *PostgresRepo) AttachConversation(ctx context.Context, id, conversationID string) (Call, error) {
	q := `
UPDATE calls
SET elevenlabs_conversation_id = $2
WHERE id = $1 AND (elevenlabs_conversation_id IS NULL OR elevenlabs_conversation_id = $2)
RETURNING ` + callColumns

	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, conversationID))
	if err == nil {
		return c, nil
	}
	if utils.IsUniqueViolation(err, conversationConstraint) {
		return Call{}, fmt.Errorf("%w: conversation bound to another call", ErrConversationConflict)
	}
	if !utils.IsNoRows(err) {
		return Call{}, err
	}

	cur, err := r.Get(ctx, id)
	if err != nil {
		return Call{}, err
	}
	return cur, ErrConversationConflict
}

func (r *PostgresRepo) FailStale(ctx context.Context, cutoff, endedAt time.Time) ([]Call, error) {
	q := `
UPDATE calls
SET status = 'failed', ended_at = $2
WHERE status = 'started' AND started_at < $1
RETURNING ` + callColumns

	rows, err := r.db.QueryContext(ctx, q, cutoff, endedAt)
	if err != nil {
		return nil, err
	}
	return scanCalls(rows)
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanCalls(rows)
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanCalls(rows)
}

func (r *PostgresRepo) UpsertTranscript(ctx context.Context, t Transcript) (Transcript, error) {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return Transcript{}, fmt.Errorf("encode transcript metadata: %w", err)
	}

	// The original id and created_at survive redelivery.
	const q = `
INSERT INTO transcripts (id, call_id, content, metadata, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (call_id) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata
RETURNING id, created_at
`
	out := t
	if err := r.db.QueryRowContext(ctx, q, t.ID, t.CallID, t.Content, string(meta), t.CreatedAt).Scan(&out.ID, &out.CreatedAt); err != nil {
		return Transcript{}, err
	}
	return out, nil
}

func (r *PostgresRepo) GetTranscript(ctx context.Context, callID string) (Transcript, error) {
	const q = `
SELECT id, call_id, content, metadata, created_at
FROM transcripts
WHERE call_id = $1
`
	var (
		t    Transcript
		meta []byte
	)
	if err := r.db.QueryRowContext(ctx, q, callID).Scan(&t.ID, &t.CallID, &t.Content, &meta, &t.CreatedAt); err != nil {
		if utils.IsNoRows(err) {
			return Transcript{}, ErrNotFound
		}
		return Transcript{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return Transcript{}, fmt.Errorf("decode transcript metadata: %w", err)
		}
	}
	return t, nil
}
