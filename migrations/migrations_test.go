package migrations

import (
	"strings"
	"testing"
)

func TestStatements_OrderedAndComplete(t *testing.T) {
	stmts, err := Statements()
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	if len(stmts) != 8 {
		t.Fatalf("expected 8 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS messages") {
		t.Fatalf("expected messages table first, got %q", stmts[0])
	}
	for _, table := range []string{"customers", "calls", "message_templates", "audit_events"} {
		found := false
		for _, s := range stmts {
			if strings.Contains(s, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing table %s", table)
		}
	}
}
