package messages

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresRepo_UpdateStatusIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPostgresRepo(db)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs(StatusRead, "", at, "m1", StatusSent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs(StatusDelivered, "", at, "m1", StatusSent).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "m1", StatusSent, StatusRead, "", at)
	if err != nil || !ok {
		t.Fatalf("expected update applied, ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateStatus(context.Background(), "m1", StatusSent, StatusDelivered, "", at)
	if err != nil || ok {
		t.Fatalf("expected no-op on status mismatch, ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_GetMapsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := NewPostgresRepo(db).Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepo_GetScansOptionalIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "sender", "body", "room", "subject_id", "status", "retry_of", "template_id", "failure_reason", "created_at", "updated_at"}).
		AddRow("m2", "operator", "hi", "room-1", "proj-1", "sent", "m1", nil, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE id = $1")).WithArgs("m2").WillReturnRows(rows)

	m, err := NewPostgresRepo(db).Get(context.Background(), "m2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id, ok := m.RetryOf.Get(); !ok || id != "m1" {
		t.Fatalf("expected retry_of m1, got %v", m.RetryOf)
	}
	if m.TemplateID.IsSet() {
		t.Fatalf("expected template_id unset")
	}
}

func TestPostgresRepo_ListUnreadHasNoLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "sender", "body", "room", "subject_id", "status", "retry_of", "template_id", "failure_reason", "created_at", "updated_at"}).
		AddRow("m1", "operator", "a", "room-1", "", "sent", nil, nil, "", now, now).
		AddRow("m2", "operator", "b", "room-1", "", "delivered", nil, nil, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE room = $1 AND sender = $2 AND status IN ($3, $4)")).
		WithArgs("room-1", SenderOperator, StatusSent, StatusDelivered).
		WillReturnRows(rows)

	ms, err := NewPostgresRepo(db).ListUnread(context.Background(), "room-1")
	if err != nil || len(ms) != 2 {
		t.Fatalf("list unread: %d err=%v", len(ms), err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
