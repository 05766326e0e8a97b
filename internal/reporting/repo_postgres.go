package reporting

import (
	"context"
	"database/sql"
	"time"

	"callcenter-platform/internal/calls"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, centerID string, from, to time.Time) ([]CallRow, error) {
	const q = `
SELECT c.id, c.user_id, c.status, c.started_at, c.duration_seconds, (t.id IS NOT NULL)
FROM calls c
LEFT JOIN transcripts t ON t.call_id = c.id
WHERE c.center_id = $1
  AND c.started_at >= $2
  AND c.started_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, centerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRow, 0)
	for rows.Next() {
		var (
			row    CallRow
			status string
			dur    sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &row.UserID, &status, &row.StartedAt, &dur, &row.HasTranscript); err != nil {
			return nil, err
		}
		row.CenterID = centerID
		row.Status = calls.CallStatus(status)
		if dur.Valid {
			d := int(dur.Int64)
			row.DurationSeconds = &d
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UserActivity(ctx context.Context, userID string, since time.Time) (int, *time.Time, error) {
	const q = `
SELECT
  count(*) FILTER (WHERE status IN ('started', 'completed') AND started_at >= $2),
  max(started_at)
FROM calls
WHERE user_id = $1
`
	var (
		n    int
		last sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q, userID, since).Scan(&n, &last); err != nil {
		return 0, nil, err
	}
	if !last.Valid {
		return n, nil, nil
	}
	t := last.Time
	return n, &t, nil
}
