package scan

import (
	"strconv"
	"testing"
	"time"
)

func TestLedgerNewestFirstAndCap(t *testing.T) {
	l := NewLedger(25)
	for i := 0; i < 30; i++ {
		l.Push(Entry{Boleta: strconv.Itoa(i), At: time.Now()})
	}
	entries := l.Entries()
	if len(entries) != 25 {
		t.Fatalf("len = %d, want 25", len(entries))
	}
	if entries[0].Boleta != "29" {
		t.Errorf("newest entry = %q, want 29", entries[0].Boleta)
	}
	if entries[24].Boleta != "5" {
		t.Errorf("oldest kept = %q, want 5", entries[24].Boleta)
	}
}

func TestLedgerEntriesIsACopy(t *testing.T) {
	l := NewLedger(5)
	l.Push(Entry{Boleta: "a"})
	got := l.Entries()
	got[0].Boleta = "mutated"
	if l.Entries()[0].Boleta != "a" {
		t.Error("Entries must return a copy")
	}
}
