package scan

import "time"

// Entry is one recorded scan surfaced back to the caller.
type Entry struct {
	Boleta      string    `json:"boleta"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	MinutesLate int       `json:"minutes_late"`
	At          time.Time `json:"at"`
	SyncNote    string    `json:"sync_note,omitempty"`
}

// Ledger is the rolling list of recent results, newest first. Not
// self-locking; the engine serializes access.
type Ledger struct {
	max     int
	entries []Entry
}

// NewLedger creates a ledger capped at max entries (25 when non-positive).
func NewLedger(max int) *Ledger {
	if max <= 0 {
		max = 25
	}
	return &Ledger{max: max}
}

// Push prepends an entry, dropping the oldest past the cap.
func (l *Ledger) Push(e Entry) {
	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
}

// Entries returns a copy of the current list.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
