package scan

import (
	"context"
	"time"

	"asistencia/internal/metrics"
	"asistencia/internal/roster"
)

// SessionTopic is the label stamped on sessions created lazily by scanning.
const SessionTopic = "Asistencia"

// Resolver ensures the day's session exists for a subject. It keeps the last
// resolved session so a repeat resolution for the same subject and date only
// refreshes the expected duration. Not safe for concurrent use; the engine
// serializes resolution per subject selection.
type Resolver struct {
	store           Store
	defaultDuration int
	now             func() time.Time
	current         *roster.Session
}

// NewResolver creates a resolver. now defaults to time.Now.
func NewResolver(store Store, defaultDuration int, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	if defaultDuration <= 0 {
		defaultDuration = 90
	}
	return &Resolver{store: store, defaultDuration: defaultDuration, now: now}
}

// isoWeekday maps time.Weekday onto ISO numbering, Monday=1 through Sunday=7.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// Ensure returns the active session for (subject, today), creating one if
// absent. changed reports whether the adopted session differs from the
// previously known one. Persistence errors propagate unmodified.
func (r *Resolver) Ensure(ctx context.Context, subject *roster.Subject, instructorID string) (session *roster.Session, changed bool, err error) {
	now := r.now()
	today := now.Format("2006-01-02")

	duration, err := r.store.ScheduleDuration(ctx, subject.ID, isoWeekday(now))
	if err != nil {
		return nil, false, err
	}
	if duration <= 0 {
		duration = r.defaultDuration
	}

	if r.current != nil && r.current.SubjectID == subject.ID && r.current.Date == today {
		r.current.DurationMin = duration
		return r.current, false, nil
	}

	prior := ""
	if r.current != nil {
		prior = r.current.ID
	}

	existing, err := r.store.LatestSession(ctx, subject.ID, today)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		existing.SubjectName = subject.Name
		existing.DurationMin = duration
		r.current = existing
		return existing, existing.ID != prior, nil
	}

	created := &roster.Session{
		SubjectID:    subject.ID,
		Date:         today,
		Topic:        SessionTopic,
		StartTime:    now.Format("15:04:05"),
		Status:       roster.SessionDelivered,
		InstructorID: instructorID,
	}
	if err := r.store.CreateSession(ctx, created); err != nil {
		return nil, false, err
	}
	created.CreatedAt = now
	created.SubjectName = subject.Name
	created.DurationMin = duration
	r.current = created
	metrics.SessionsCreated.Inc()
	return created, true, nil
}
