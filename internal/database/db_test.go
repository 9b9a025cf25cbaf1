package database

import (
	"strings"
	"testing"
)

func TestStatementsSplitSchema(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("statement is not an idempotent CREATE TABLE: %q", s)
		}
	}
}

func TestSplitStatementsDropsComments(t *testing.T) {
	src := "-- owned elsewhere; read only\nCREATE TABLE a (id INT);\n  -- trailing; note\nCREATE TABLE b (id INT);\n"
	got := splitStatements(src)
	want := []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}
	if len(got) != len(want) {
		t.Fatalf("got %d statements %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}
