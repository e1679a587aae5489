package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func undefinedColumn(name string) *pgconn.PgError {
	return &pgconn.PgError{Code: "42703", Message: `column "` + name + `" of relation "students" does not exist`}
}

func TestInsertAdaptiveDropsUnknownColumns(t *testing.T) {
	unknown := map[string]bool{"vigencia": true, "unidad": true}
	var queries []string
	exec := func(ctx context.Context, query string, args []any) error {
		queries = append(queries, query)
		for name := range unknown {
			delete(unknown, name)
			return undefinedColumn(name)
		}
		if len(args) != 3 {
			t.Errorf("final insert got %d args, want 3", len(args))
		}
		return nil
	}

	fields := map[string]any{
		"boleta":     "2023123456",
		"given_name": "Ana",
		"program":    "ISC",
		"vigencia":   "2026",
		"unidad":     "ESCOM",
	}
	if err := insertAdaptive(context.Background(), "students", fields, exec); err != nil {
		t.Fatalf("insertAdaptive: %v", err)
	}
	if len(queries) != 3 {
		t.Fatalf("attempts = %d, want 3", len(queries))
	}
	want := "INSERT INTO students (boleta, given_name, program) VALUES ($1, $2, $3)"
	if got := queries[len(queries)-1]; got != want {
		t.Errorf("final query = %q, want %q", got, want)
	}
	if _, ok := fields["vigencia"]; ok {
		t.Error("dropped column still present in fields")
	}
}

func TestInsertAdaptiveColumnsSorted(t *testing.T) {
	var got string
	exec := func(ctx context.Context, query string, args []any) error {
		got = query
		return nil
	}
	fields := map[string]any{"c": 3, "a": 1, "b": 2}
	if err := insertAdaptive(context.Background(), "t", fields, exec); err != nil {
		t.Fatalf("insertAdaptive: %v", err)
	}
	want := "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestInsertAdaptivePropagatesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	attempts := 0
	exec := func(ctx context.Context, query string, args []any) error {
		attempts++
		return boom
	}
	err := insertAdaptive(context.Background(), "t", map[string]any{"a": 1}, exec)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on non-schema errors)", attempts)
	}
}

func TestInsertAdaptiveRejectsForeignColumnReport(t *testing.T) {
	// The reported column is not one we tried to insert; retrying would loop.
	exec := func(ctx context.Context, query string, args []any) error {
		return undefinedColumn("somebody_elses_column")
	}
	err := insertAdaptive(context.Background(), "t", map[string]any{"a": 1}, exec)
	if err == nil {
		t.Fatal("expected error for a column outside the field set")
	}
}

func TestInsertAdaptiveNoColumnsLeft(t *testing.T) {
	exec := func(ctx context.Context, query string, args []any) error {
		return undefinedColumn("a")
	}
	err := insertAdaptive(context.Background(), "t", map[string]any{"a": 1}, exec)
	if !errors.Is(err, errNoColumnsLeft) {
		t.Fatalf("err = %v, want %v", err, errNoColumnsLeft)
	}
}
