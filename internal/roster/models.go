package roster

import "time"

// Enrollment statuses.
const (
	EnrollmentActive    = "active"
	EnrollmentInactive  = "inactive"
	EnrollmentWithdrawn = "withdrawn"
)

// Attendance classifications.
const (
	AttendanceOnTime = "on-time"
	AttendanceLate   = "late"
)

// SessionDelivered is the status stamped on sessions created by the engine.
const SessionDelivered = "impartida"

// Subject is a class owned by an instructor.
type Subject struct {
	ID           string
	Name         string
	Code         string
	Group        string
	InstructorID string
}

// ScheduleEntry is one weekly meeting of a subject. Weekday is ISO numbered,
// Monday=1 through Sunday=7.
type ScheduleEntry struct {
	ID          string
	SubjectID   string
	Weekday     int
	DurationMin int
}

// Session is one calendar-day instance of a subject's class meeting.
// SubjectName and DurationMin are carried at runtime, not persisted.
type Session struct {
	ID           string
	SubjectID    string
	Date         string // 2006-01-02
	Topic        string
	StartTime    string // 15:04:05
	Status       string
	InstructorID string
	CreatedAt    time.Time

	SubjectName string
	DurationMin int
}

// Student is keyed by boleta, the fixed-length numeric institutional id.
type Student struct {
	Boleta     string
	GivenName  string
	FamilyName string
	Program    string
	School     string
	CURP       string
	Hash       string
	SourceURL  string
	Active     bool
}

// DisplayName returns the student's full name for feedback and the ledger.
func (s Student) DisplayName() string {
	if s.FamilyName == "" {
		return s.GivenName
	}
	return s.GivenName + " " + s.FamilyName
}

// Enrollment authorizes a student to be marked present in a subject.
type Enrollment struct {
	ID           string
	Boleta       string
	SubjectID    string
	Status       string
	InstructorID string
}

// AttendanceRecord is unique per (boleta, session).
type AttendanceRecord struct {
	ID           string
	Boleta       string
	SubjectID    string
	SessionID    string
	RecordedAt   time.Time
	Status       string
	MinutesLate  int
	InstructorID string
}
