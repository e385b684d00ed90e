package directory

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"crm-interactions/internal/calls"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMemoryDirectory_ReturnsAllMatchesInOrder(t *testing.T) {
	d := NewMemoryDirectory(
		calls.Customer{ID: "C1", Phone: "+33612345678"},
		calls.Customer{ID: "C2", Phone: "+33700000000"},
	)
	d.Add(calls.Customer{ID: "C3", Phone: "+33612345678"})

	got, err := d.LookupByPhone(context.Background(), "+33612345678")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 || got[0].ID != "C1" || got[1].ID != "C3" {
		t.Fatalf("unexpected matches %+v", got)
	}
	none, _ := d.LookupByPhone(context.Background(), "0612345678")
	if len(none) != 0 {
		t.Fatalf("numbers are matched as given, got %+v", none)
	}
}

func TestPostgresDirectory_LookupByPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM customers")).
		WithArgs("+33612345678").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "email"}).
			AddRow("C1", "Alice", "+33612345678", "alice@example.com").
			AddRow("C9", "Alice (old)", "+33612345678", ""))

	got, err := NewPostgresDirectory(db).LookupByPhone(context.Background(), "+33612345678")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(got) != 2 || got[0].ID != "C1" || got[0].Email != "alice@example.com" {
		t.Fatalf("unexpected customers %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCachedDirectory_WithoutRedisDelegates(t *testing.T) {
	next := NewMemoryDirectory(calls.Customer{ID: "C1", Phone: "+1"})
	d := NewCachedDirectory(next, nil, time.Minute, nil)

	got, err := d.LookupByPhone(context.Background(), "+1")
	if err != nil || len(got) != 1 || got[0].ID != "C1" {
		t.Fatalf("unexpected result %+v err=%v", got, err)
	}
	if err := d.Invalidate(context.Background(), "+1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if d.key("+1") != "directory:phone:+1" {
		t.Fatalf("unexpected key %q", d.key("+1"))
	}
}

func TestCachedDirectory_CorruptEntryLogsDecodeError(t *testing.T) {
	var buf bytes.Buffer
	d := NewCachedDirectory(NewMemoryDirectory(), nil, time.Minute, slog.New(slog.NewTextHandler(&buf, nil)))

	if _, ok := d.decode("+33612345678", []byte("not json")); ok {
		t.Fatalf("expected corrupt entry to miss")
	}
	logged := buf.String()
	if !strings.Contains(logged, "invalid character") || strings.Contains(logged, "err=<nil>") {
		t.Fatalf("expected decode error in log, got %q", logged)
	}

	got, ok := d.decode("+33612345678", []byte(`[{"id":"C1"}]`))
	if !ok || len(got) != 1 {
		t.Fatalf("expected cached customer, got %+v ok=%v", got, ok)
	}
}
