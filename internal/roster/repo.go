package roster

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists roster and attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetSubject returns a subject by id, or nil when it does not exist.
func (r *Repository) GetSubject(ctx context.Context, id string) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(group_label, ''), instructor_id
		FROM subjects WHERE id = $1
	`, id)
	var s Subject
	if err := row.Scan(&s.ID, &s.Name, &s.Code, &s.Group, &s.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ScheduleDuration returns the expected class duration for a subject on the
// given ISO weekday, or 0 when no schedule entry exists.
func (r *Repository) ScheduleDuration(ctx context.Context, subjectID string, weekday int) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT duration_min FROM weekly_schedules
		WHERE subject_id = $1 AND weekday = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, subjectID, weekday)
	var minutes int
	if err := row.Scan(&minutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return minutes, nil
}

// LatestSession returns the most recently created session for (subject, date),
// or nil when none exists. Newest wins when duplicates exist.
func (r *Repository) LatestSession(ctx context.Context, subjectID, date string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, to_char(session_date, 'YYYY-MM-DD'), topic,
		       to_char(start_time, 'HH24:MI:SS'), status, instructor_id, created_at
		FROM sessions
		WHERE subject_id = $1 AND session_date = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, subjectID, date)
	var s Session
	if err := row.Scan(&s.ID, &s.SubjectID, &s.Date, &s.Topic, &s.StartTime, &s.Status, &s.InstructorID, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession writes a new session record.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, subject_id, session_date, topic, start_time, status, instructor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.SubjectID, s.Date, s.Topic, s.StartTime, s.Status, s.InstructorID)
	return err
}

// StudentByBoleta returns a student, or nil when unknown.
func (r *Repository) StudentByBoleta(ctx context.Context, boleta string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT boleta, given_name, family_name, COALESCE(program, ''), COALESCE(school, ''),
		       COALESCE(curp, ''), COALESCE(hash, ''), COALESCE(source_url, ''), active
		FROM students WHERE boleta = $1
	`, boleta)
	var st Student
	if err := row.Scan(&st.Boleta, &st.GivenName, &st.FamilyName, &st.Program, &st.School, &st.CURP, &st.Hash, &st.SourceURL, &st.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// InsertStudent creates a student record, degrading around unknown columns.
func (r *Repository) InsertStudent(ctx context.Context, st *Student) error {
	fields := map[string]any{
		"boleta":      st.Boleta,
		"given_name":  st.GivenName,
		"family_name": st.FamilyName,
		"program":     st.Program,
		"school":      st.School,
		"curp":        st.CURP,
		"hash":        st.Hash,
		"source_url":  st.SourceURL,
		"active":      st.Active,
	}
	return insertAdaptive(ctx, "students", fields, func(ctx context.Context, query string, args []any) error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	})
}

// UpdateStudent patches only the given columns, stamping updater and time.
func (r *Repository) UpdateStudent(ctx context.Context, boleta, updatedBy string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields)+2)
	args := []any{boleta}
	for c, v := range fields {
		args = append(args, v)
		cols = append(cols, c+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, updatedBy)
	cols = append(cols, "updated_by = $"+strconv.Itoa(len(args)))
	args = append(args, time.Now().UTC())
	cols = append(cols, "updated_at = $"+strconv.Itoa(len(args)))

	query := "UPDATE students SET " + strings.Join(cols, ", ") + " WHERE boleta = $1"
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// EnrollmentFor returns the enrollment linking a student to a subject, or nil.
func (r *Repository) EnrollmentFor(ctx context.Context, boleta, subjectID string) (*Enrollment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, boleta, subject_id, status, instructor_id
		FROM enrollments WHERE boleta = $1 AND subject_id = $2
	`, boleta, subjectID)
	var e Enrollment
	if err := row.Scan(&e.ID, &e.Boleta, &e.SubjectID, &e.Status, &e.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// CreateEnrollment provisions an enrollment.
func (r *Repository) CreateEnrollment(ctx context.Context, e *Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, boleta, subject_id, status, instructor_id)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Boleta, e.SubjectID, e.Status, e.InstructorID)
	return err
}

// AttendanceFor returns the attendance record for (student, session), or nil.
func (r *Repository) AttendanceFor(ctx context.Context, boleta, sessionID string) (*AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, boleta, subject_id, session_id, recorded_at, status, minutes_late, instructor_id
		FROM attendance_records WHERE boleta = $1 AND session_id = $2
	`, boleta, sessionID)
	var a AttendanceRecord
	if err := row.Scan(&a.ID, &a.Boleta, &a.SubjectID, &a.SessionID, &a.RecordedAt, &a.Status, &a.MinutesLate, &a.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// InsertAttendance writes a new attendance record.
func (r *Repository) InsertAttendance(ctx context.Context, a *AttendanceRecord) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, boleta, subject_id, session_id, recorded_at, status, minutes_late, instructor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.Boleta, a.SubjectID, a.SessionID, a.RecordedAt, a.Status, a.MinutesLate, a.InstructorID)
	return err
}
