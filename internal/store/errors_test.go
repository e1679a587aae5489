package store

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(sql.ErrNoRows) {
		t.Error("sql.ErrNoRows not recognized")
	}
	if !IsNoRows(fmt.Errorf("query students: %w", sql.ErrNoRows)) {
		t.Error("wrapped sql.ErrNoRows not recognized")
	}
	if IsNoRows(errors.New("no rows")) {
		t.Error("unrelated error recognized as no-rows")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 not recognized")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("wrapped 23505 not recognized")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "42703"}) {
		t.Error("42703 recognized as unique violation")
	}
	if IsUniqueViolation(errors.New("duplicate key")) {
		t.Error("plain error recognized as unique violation")
	}
}

func TestUndefinedColumn(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantCol string
		wantHit bool
	}{
		{
			name:    "typical message",
			err:     &pgconn.PgError{Code: "42703", Message: `column "vigencia" of relation "students" does not exist`},
			wantCol: "vigencia",
			wantHit: true,
		},
		{
			name:    "wrapped",
			err:     fmt.Errorf("insert students: %w", &pgconn.PgError{Code: "42703", Message: `column "curp" does not exist`}),
			wantCol: "curp",
			wantHit: true,
		},
		{
			name:    "right code without a column name",
			err:     &pgconn.PgError{Code: "42703", Message: "undefined column"},
			wantCol: "",
			wantHit: true,
		},
		{
			name:    "other pg code",
			err:     &pgconn.PgError{Code: "23505", Message: `column "x" looks similar but is not`},
			wantHit: false,
		},
		{
			name:    "plain error",
			err:     errors.New(`column "x" does not exist`),
			wantHit: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := UndefinedColumn(tt.err)
			if ok != tt.wantHit || col != tt.wantCol {
				t.Errorf("UndefinedColumn() = (%q, %v), want (%q, %v)", col, ok, tt.wantCol, tt.wantHit)
			}
		})
	}
}
