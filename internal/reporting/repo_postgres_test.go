package reporting

import (
	"context"
	"regexp"
	"testing"
	"time"

	"callcenter-platform/internal/calls"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresRepo_ListCalls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	from := time.Unix(1700000000, 0).UTC()
	to := from.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "status", "started_at", "duration_seconds", "has_transcript"}).
		AddRow("a", "u1", "completed", from, int64(42), true).
		AddRow("b", "u2", "started", from, nil, false)
	mock.ExpectQuery(regexp.QuoteMeta("FROM calls c")).WithArgs("c1", from, to).WillReturnRows(rows)

	out, err := NewPostgresRepo(db).ListCalls(context.Background(), "c1", from, to)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(out))
	}
	if out[0].Status != calls.CallStatusCompleted || out[0].DurationSeconds == nil || *out[0].DurationSeconds != 42 || !out[0].HasTranscript {
		t.Fatalf("unexpected first row %+v", out[0])
	}
	if out[1].DurationSeconds != nil || out[1].CenterID != "c1" {
		t.Fatalf("unexpected second row %+v", out[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_UserActivityNoCalls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	since := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(regexp.QuoteMeta("count(*) FILTER")).WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "max"}).AddRow(int64(0), nil))

	n, last, err := NewPostgresRepo(db).UserActivity(context.Background(), "u1", since)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if n != 0 || last != nil {
		t.Fatalf("expected no activity, got %d %v", n, last)
	}
}
