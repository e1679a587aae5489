package scan

import (
	"context"

	"asistencia/internal/credential"
	"asistencia/internal/roster"
)

// Store is the slice of the record store the engine consumes. A no-match
// lookup returns (nil, nil); errors are real storage failures.
type Store interface {
	GetSubject(ctx context.Context, id string) (*roster.Subject, error)
	ScheduleDuration(ctx context.Context, subjectID string, weekday int) (int, error)
	LatestSession(ctx context.Context, subjectID, date string) (*roster.Session, error)
	CreateSession(ctx context.Context, s *roster.Session) error
	StudentByBoleta(ctx context.Context, boleta string) (*roster.Student, error)
	InsertStudent(ctx context.Context, st *roster.Student) error
	UpdateStudent(ctx context.Context, boleta, updatedBy string, fields map[string]any) error
	EnrollmentFor(ctx context.Context, boleta, subjectID string) (*roster.Enrollment, error)
	CreateEnrollment(ctx context.Context, e *roster.Enrollment) error
	AttendanceFor(ctx context.Context, boleta, sessionID string) (*roster.AttendanceRecord, error)
	InsertAttendance(ctx context.Context, a *roster.AttendanceRecord) error
}

// Extractor resolves a raw decoded payload into a student identifier.
type Extractor interface {
	Extract(ctx context.Context, raw string) (*credential.Scanned, error)
}
