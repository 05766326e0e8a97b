package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresRepo_AccountByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	created := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("FROM users u\\s+LEFT JOIN centers c").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "login_token", "center_id", "created_at", "timezone"}).
			AddRow("u1", "Ana", "tok", "c1", created, "America/New_York"))
	mock.ExpectQuery("FROM users u\\s+LEFT JOIN centers c").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	repo := NewPostgresRepo(db)
	a, err := repo.AccountByToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if a.ID != "u1" || a.CenterID != "c1" || a.Timezone != "America/New_York" {
		t.Fatalf("unexpected account %+v", a)
	}

	if _, err := repo.AccountByToken(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_DeleteCenterInUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM centers WHERE id = \\$1 FOR UPDATE").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM users").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	repo := NewPostgresRepo(db)
	if err := repo.DeleteCenter(context.Background(), "c1"); !errors.Is(err, ErrCenterInUse) {
		t.Fatalf("expected ErrCenterInUse, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_UpdateMissingUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE users").
		WithArgs("u1", "Ana", "tok", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepo(db)
	err = repo.UpdateUser(context.Background(), User{ID: "u1", FullName: "Ana", LoginToken: "tok"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
