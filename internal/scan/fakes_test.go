package scan

import (
	"context"
	"fmt"
	"time"

	"asistencia/internal/credential"
	"asistencia/internal/roster"
)

// clock is a controllable time source for engine tests.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeStore struct {
	subjects    map[string]*roster.Subject
	durations   map[string]map[int]int
	sessions    []*roster.Session
	students    map[string]*roster.Student
	enrollments map[string]*roster.Enrollment
	attendance  map[string]*roster.AttendanceRecord
	updates     []map[string]any

	latestSessionErr    error
	insertAttendanceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects:    map[string]*roster.Subject{},
		durations:   map[string]map[int]int{},
		students:    map[string]*roster.Student{},
		enrollments: map[string]*roster.Enrollment{},
		attendance:  map[string]*roster.AttendanceRecord{},
	}
}

func enrKey(boleta, subjectID string) string { return boleta + "|" + subjectID }

func attKey(boleta, sessionID string) string { return boleta + "|" + sessionID }

func (f *fakeStore) GetSubject(ctx context.Context, id string) (*roster.Subject, error) {
	return f.subjects[id], nil
}

func (f *fakeStore) ScheduleDuration(ctx context.Context, subjectID string, weekday int) (int, error) {
	return f.durations[subjectID][weekday], nil
}

func (f *fakeStore) LatestSession(ctx context.Context, subjectID, date string) (*roster.Session, error) {
	if f.latestSessionErr != nil {
		return nil, f.latestSessionErr
	}
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if s := f.sessions[i]; s.SubjectID == subjectID && s.Date == date {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, s *roster.Session) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sess-%d", len(f.sessions)+1)
	}
	cp := *s
	f.sessions = append(f.sessions, &cp)
	return nil
}

func (f *fakeStore) StudentByBoleta(ctx context.Context, boleta string) (*roster.Student, error) {
	st, ok := f.students[boleta]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStore) InsertStudent(ctx context.Context, st *roster.Student) error {
	cp := *st
	f.students[st.Boleta] = &cp
	return nil
}

func (f *fakeStore) UpdateStudent(ctx context.Context, boleta, updatedBy string, fields map[string]any) error {
	st, ok := f.students[boleta]
	if !ok {
		return fmt.Errorf("student %s missing", boleta)
	}
	for col, val := range fields {
		s, _ := val.(string)
		switch col {
		case "given_name":
			st.GivenName = s
		case "family_name":
			st.FamilyName = s
		case "program":
			st.Program = s
		case "school":
			st.School = s
		case "hash":
			st.Hash = s
		case "source_url":
			st.SourceURL = s
		}
	}
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeStore) EnrollmentFor(ctx context.Context, boleta, subjectID string) (*roster.Enrollment, error) {
	e, ok := f.enrollments[enrKey(boleta, subjectID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) CreateEnrollment(ctx context.Context, e *roster.Enrollment) error {
	if e.ID == "" {
		e.ID = fmt.Sprintf("enr-%d", len(f.enrollments)+1)
	}
	cp := *e
	f.enrollments[enrKey(e.Boleta, e.SubjectID)] = &cp
	return nil
}

func (f *fakeStore) AttendanceFor(ctx context.Context, boleta, sessionID string) (*roster.AttendanceRecord, error) {
	a, ok := f.attendance[attKey(boleta, sessionID)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) InsertAttendance(ctx context.Context, a *roster.AttendanceRecord) error {
	if f.insertAttendanceErr != nil {
		return f.insertAttendanceErr
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("att-%d", len(f.attendance)+1)
	}
	cp := *a
	f.attendance[attKey(a.Boleta, a.SessionID)] = &cp
	return nil
}

type fakeExtractor struct {
	results map[string]*credential.Scanned
	errs    map[string]error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{results: map[string]*credential.Scanned{}, errs: map[string]error{}}
}

func (f *fakeExtractor) Extract(ctx context.Context, raw string) (*credential.Scanned, error) {
	if err, ok := f.errs[raw]; ok {
		return nil, err
	}
	if res, ok := f.results[raw]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("%w: sin boleta", credential.ErrInvalidCredential)
}
