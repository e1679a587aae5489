// Package scan implements the attendance capture engine: session resolution,
// the per-scan processing pipeline, and the state machine a scanning surface
// drives.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"asistencia/internal/credential"
	"asistencia/internal/metrics"
	"asistencia/internal/roster"
	"asistencia/internal/store"
)

// Options tune the engine. Zero values take the institutional defaults.
type Options struct {
	LateThresholdMin   int
	DefaultDurationMin int
	CooldownOK         time.Duration
	CooldownHard       time.Duration
	Now                func() time.Time
}

func (o *Options) fill() {
	if o.LateThresholdMin <= 0 {
		o.LateThresholdMin = 15
	}
	if o.DefaultDurationMin <= 0 {
		o.DefaultDurationMin = 90
	}
	if o.CooldownOK <= 0 {
		o.CooldownOK = 2 * time.Second
	}
	if o.CooldownHard <= 0 {
		o.CooldownHard = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// State is the caller-facing snapshot of one engine.
type State struct {
	Phase      string           `json:"phase"`
	Scanning   bool             `json:"scanning"`
	Processing bool             `json:"processing"`
	Feedback   *Feedback        `json:"feedback,omitempty"`
	SubjectID  string           `json:"subject_id,omitempty"`
	Session    *SessionSnapshot `json:"session,omitempty"`
}

// SessionSnapshot summarizes the resolved session for the caller.
type SessionSnapshot struct {
	ID          string `json:"id"`
	SubjectName string `json:"subject_name"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	DurationMin int    `json:"duration_min"`
}

// Engine runs the scan processing pipeline for one instructor's scanning
// surface. One decode is processed at a time; decodes arriving while one is
// mid-flight are dropped, not queued.
type Engine struct {
	mu            sync.Mutex
	machine       Machine
	store         Store
	extractor     Extractor
	resolver      *Resolver
	ledger        *Ledger
	feedback      *Feedback
	subject       *roster.Subject
	session       *roster.Session
	instructorID  string
	lastSubjectID string
	opts          Options
	rearm         *time.Timer
	generation    uint64
}

// NewEngine creates an idle engine for one instructor.
func NewEngine(st Store, ex Extractor, instructorID string, opts Options) *Engine {
	opts.fill()
	return &Engine{
		store:        st,
		extractor:    ex,
		resolver:     NewResolver(st, opts.DefaultDurationMin, opts.Now),
		ledger:       NewLedger(25),
		instructorID: instructorID,
		opts:         opts,
	}
}

// Snapshot returns the current caller-facing state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := State{
		Phase:      e.machine.Phase().String(),
		Scanning:   e.machine.Phase() == PhaseScanning,
		Processing: e.machine.Phase() == PhaseProcessing,
		Feedback:   e.feedback,
	}
	if e.subject != nil {
		s.SubjectID = e.subject.ID
	}
	if e.session != nil {
		s.Session = &SessionSnapshot{
			ID:          e.session.ID,
			SubjectName: e.session.SubjectName,
			Date:        e.session.Date,
			StartTime:   e.session.StartTime,
			DurationMin: e.session.DurationMin,
		}
	}
	return s
}

// Recent returns the rolling ledger, newest first.
func (e *Engine) Recent() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Entries()
}

// SelectSubject resolves the day's session for subjectID and arms scanning.
// Selecting again mid-resolution supersedes the prior resolution.
func (e *Engine) SelectSubject(ctx context.Context, subjectID string) error {
	e.mu.Lock()
	e.cancelRearm()
	if err := e.machine.To(PhasePreparing); err != nil {
		e.mu.Unlock()
		return err
	}
	e.generation++
	gen := e.generation
	e.lastSubjectID = subjectID
	e.feedback = &Feedback{Severity: SeverityInfo, Title: "Preparando", Message: "Resolviendo la sesión de hoy..."}
	e.mu.Unlock()

	subject, err := e.store.GetSubject(ctx, subjectID)
	if err == nil && subject == nil {
		err = fmt.Errorf("materia %s no encontrada", subjectID)
	}
	var session *roster.Session
	var changed bool
	if err == nil {
		session, changed, err = e.resolver.Ensure(ctx, subject, e.instructorID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		// A newer selection superseded this one; its result is stale.
		return nil
	}
	if err != nil {
		phase := PhaseError
		if isNetworkErr(err) {
			phase = PhaseOffline
		}
		_ = e.machine.To(phase)
		e.feedback = &Feedback{Severity: SeverityError, Title: "No se pudo preparar la sesión", Message: err.Error()}
		return err
	}
	e.subject = subject
	e.session = session
	_ = e.machine.To(PhaseScanning)
	if changed {
		e.feedback = &Feedback{
			Severity: SeverityInfo,
			Title:    "Sesión lista",
			Message:  fmt.Sprintf("%s · %s, inicio %s", subject.Name, session.Date, session.StartTime),
		}
	}
	return nil
}

// Retry re-runs preparation after an offline or error phase.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	phase := e.machine.Phase()
	subjectID := e.lastSubjectID
	e.mu.Unlock()
	if phase != PhaseOffline && phase != PhaseError {
		return fmt.Errorf("nothing to retry in phase %s", phase)
	}
	if subjectID == "" {
		return errors.New("no subject selected")
	}
	return e.SelectSubject(ctx, subjectID)
}

// Close cancels any pending re-arm and returns the engine to idle. The ledger
// survives so a remount shows recent history.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRearm()
	e.generation++
	_ = e.machine.To(PhaseIdle)
	e.subject = nil
	e.session = nil
	e.feedback = nil
}

// Scan runs one decoded QR payload through the pipeline. Payloads arriving
// outside the scanning phase are dropped silently and return (nil, nil).
func (e *Engine) Scan(ctx context.Context, raw string) (*Feedback, error) {
	e.mu.Lock()
	if e.machine.Phase() != PhaseScanning {
		e.mu.Unlock()
		return nil, nil
	}
	_ = e.machine.To(PhaseProcessing)
	e.feedback = &Feedback{Severity: SeverityInfo, Title: "Procesando", Message: "Validando credencial..."}
	subject, session := e.subject, e.session
	gen := e.generation
	e.mu.Unlock()

	res := e.process(ctx, subject, session, raw)

	e.mu.Lock()
	defer e.mu.Unlock()
	metrics.ScanOutcomes.WithLabelValues(res.outcome).Inc()
	if e.generation != gen {
		// Subject switched or surface closed mid-scan; drop the result.
		return res.feedback, nil
	}
	e.feedback = res.feedback
	if res.entry != nil {
		e.ledger.Push(*res.entry)
	}
	e.scheduleRearm(res.cooldown)
	return res.feedback, nil
}

type scanResult struct {
	feedback *Feedback
	outcome  string
	cooldown time.Duration
	entry    *Entry
}

func (e *Engine) process(ctx context.Context, subject *roster.Subject, session *roster.Session, raw string) scanResult {
	scanned, err := e.extractor.Extract(ctx, raw)
	if err != nil {
		return e.extractionFailure(err)
	}

	student, err := e.store.StudentByBoleta(ctx, scanned.Boleta)
	if err != nil {
		return e.storageFailure(err)
	}
	if student == nil {
		student = synthesizeStudent(scanned)
		if err := e.store.InsertStudent(ctx, student); err != nil {
			return e.storageFailure(err)
		}
		log.Printf("student %s created on first scan", student.Boleta)
	}

	if scanned.Profile != nil && scanned.Profile.Boleta != scanned.Boleta {
		return scanResult{
			feedback: &Feedback{
				Severity: SeverityWarning,
				Title:    "Credencial inconsistente",
				Message:  fmt.Sprintf("la página reporta boleta %s pero el código dice %s", scanned.Profile.Boleta, scanned.Boleta),
			},
			outcome:  "inconsistent",
			cooldown: e.opts.CooldownOK,
		}
	}

	var syncNote string
	if scanned.Profile != nil {
		fields, labels := diffStudent(student, scanned.Profile)
		if len(fields) > 0 {
			if err := e.store.UpdateStudent(ctx, student.Boleta, e.instructorID, fields); err != nil {
				return e.storageFailure(err)
			}
			syncNote = "actualizado: " + strings.Join(labels, ", ")
		}
	}

	enrollment, err := e.store.EnrollmentFor(ctx, student.Boleta, subject.ID)
	if err != nil {
		return e.storageFailure(err)
	}
	var enrollNote string
	switch {
	case enrollment == nil:
		enrollment = &roster.Enrollment{
			Boleta:       student.Boleta,
			SubjectID:    subject.ID,
			Status:       roster.EnrollmentActive,
			InstructorID: e.instructorID,
		}
		if err := e.store.CreateEnrollment(ctx, enrollment); err != nil {
			return e.storageFailure(err)
		}
		enrollNote = "inscripción dada de alta"
	case enrollment.Status != roster.EnrollmentActive:
		return scanResult{
			feedback: &Feedback{
				Severity: SeverityError,
				Title:    "Inscripción inactiva",
				Message:  fmt.Sprintf("%s tiene inscripción %s en %s", student.DisplayName(), enrollment.Status, subject.Name),
			},
			outcome:  "not_enrolled",
			cooldown: e.opts.CooldownOK,
		}
	}

	existing, err := e.store.AttendanceFor(ctx, student.Boleta, session.ID)
	if err != nil {
		return e.storageFailure(err)
	}
	if existing != nil {
		return e.duplicateResult(student)
	}

	now := e.opts.Now()
	elapsed, err := elapsedMinutes(session, now)
	if err != nil {
		return e.storageFailure(err)
	}
	if elapsed < 0 || elapsed > session.DurationMin {
		return scanResult{
			feedback: &Feedback{
				Severity: SeverityError,
				Title:    "Clase fuera de horario",
				Message:  fmt.Sprintf("la sesión inició a las %s y dura %d min", session.StartTime, session.DurationMin),
			},
			outcome:  "window_closed",
			cooldown: e.opts.CooldownHard,
		}
	}

	status, minutesLate := roster.AttendanceOnTime, 0
	if elapsed > e.opts.LateThresholdMin {
		status, minutesLate = roster.AttendanceLate, elapsed
	}

	record := &roster.AttendanceRecord{
		Boleta:       student.Boleta,
		SubjectID:    subject.ID,
		SessionID:    session.ID,
		RecordedAt:   now,
		Status:       status,
		MinutesLate:  minutesLate,
		InstructorID: e.instructorID,
	}
	if err := e.store.InsertAttendance(ctx, record); err != nil {
		if store.IsUniqueViolation(err) {
			// Another instructor recorded the same student concurrently.
			return e.duplicateResult(student)
		}
		return e.storageFailure(err)
	}

	entry := &Entry{
		Boleta:      student.Boleta,
		Name:        student.DisplayName(),
		Status:      status,
		MinutesLate: minutesLate,
		At:          now,
		SyncNote:    joinNotes(syncNote, enrollNote),
	}

	fb := &Feedback{
		Severity: SeveritySuccess,
		Title:    "Asistencia registrada",
		Message:  fmt.Sprintf("%s (%s)", entry.Name, entry.Boleta),
	}
	if status == roster.AttendanceLate {
		fb = &Feedback{
			Severity: SeverityWarning,
			Title:    "Retardo",
			Message:  fmt.Sprintf("%s llegó %d min tarde", entry.Name, minutesLate),
		}
	}
	if entry.SyncNote != "" {
		fb.Message += " · " + entry.SyncNote
	}
	return scanResult{feedback: fb, outcome: "recorded", cooldown: e.opts.CooldownOK, entry: entry}
}

func (e *Engine) duplicateResult(student *roster.Student) scanResult {
	return scanResult{
		feedback: &Feedback{
			Severity: SeverityWarning,
			Title:    "Registro duplicado",
			Message:  fmt.Sprintf("%s ya tiene asistencia en esta sesión", student.DisplayName()),
		},
		outcome:  "duplicate",
		cooldown: e.opts.CooldownOK,
	}
}

func (e *Engine) extractionFailure(err error) scanResult {
	res := scanResult{cooldown: e.opts.CooldownOK}
	switch {
	case errors.Is(err, credential.ErrUntrustedSource):
		res.outcome = "untrusted"
		res.feedback = &Feedback{Severity: SeverityError, Title: "Origen no confiable", Message: "el código apunta fuera del dominio institucional"}
	case errors.Is(err, credential.ErrNetworkUnavailable):
		res.outcome = "offline"
		res.feedback = &Feedback{Severity: SeverityWarning, Title: "Sin conexión", Message: "no hay red para verificar la credencial"}
	case errors.Is(err, credential.ErrFetchFailed):
		res.outcome = "fetch_failed"
		res.feedback = &Feedback{Severity: SeverityError, Title: "Consulta fallida", Message: err.Error()}
	case errors.Is(err, credential.ErrUnparsable):
		res.outcome = "unparsable"
		res.feedback = &Feedback{Severity: SeverityError, Title: "Credencial ilegible", Message: "la página no contiene los datos esperados"}
	default:
		res.outcome = "invalid"
		res.feedback = &Feedback{Severity: SeverityError, Title: "Credencial no válida", Message: "el código no contiene una boleta"}
	}
	return res
}

func (e *Engine) storageFailure(err error) scanResult {
	log.Printf("scan aborted on storage error: %v", err)
	return scanResult{
		feedback: &Feedback{Severity: SeverityError, Title: "Error de almacenamiento", Message: "no se pudo guardar, intenta de nuevo"},
		outcome:  "storage_error",
		cooldown: e.opts.CooldownOK,
	}
}

// scheduleRearm re-arms the camera after the outcome's cooldown so the same
// still-visible code is not immediately re-read. Caller holds the lock.
func (e *Engine) scheduleRearm(d time.Duration) {
	e.cancelRearm()
	e.rearm = time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.machine.Phase() == PhaseProcessing {
			_ = e.machine.To(PhaseScanning)
		}
	})
}

func (e *Engine) cancelRearm() {
	if e.rearm != nil {
		e.rearm.Stop()
		e.rearm = nil
	}
}

// synthesizeStudent builds a record for an enrolled-but-unknown identifier.
// Without a profile the name is a placeholder and the personal code a
// deterministic stand-in, so repeated self-heals collide instead of
// multiplying.
func synthesizeStudent(s *credential.Scanned) *roster.Student {
	st := &roster.Student{Boleta: s.Boleta, Active: true}
	if p := s.Profile; p != nil {
		st.GivenName = p.GivenName
		st.FamilyName = p.FamilyName
		st.Program = p.Program
		st.School = p.School
		st.Hash = p.Hash
		st.SourceURL = p.SourceURL
		return st
	}
	st.GivenName = "Alumno " + s.Boleta
	st.CURP = "TEMP-" + s.Boleta
	return st
}

// diffStudent returns the columns whose stored values disagree with the
// freshly scraped profile, plus human-readable labels for the sync summary.
func diffStudent(st *roster.Student, p *credential.Profile) (map[string]any, []string) {
	fields := map[string]any{}
	var labels []string
	diff := func(column, label, stored, scraped string) {
		if scraped != "" && scraped != stored {
			fields[column] = scraped
			labels = append(labels, label)
		}
	}
	diff("given_name", "nombre", st.GivenName, p.GivenName)
	diff("family_name", "apellidos", st.FamilyName, p.FamilyName)
	diff("program", "carrera", st.Program, p.Program)
	diff("school", "escuela", st.School, p.School)
	diff("hash", "hash", st.Hash, p.Hash)
	diff("source_url", "origen", st.SourceURL, p.SourceURL)
	return fields, labels
}

// elapsedMinutes measures now against the session's start time-of-day on the
// session's calendar date, in now's location.
func elapsedMinutes(s *roster.Session, now time.Time) (int, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04:05", s.Date+" "+s.StartTime, now.Location())
	if err != nil {
		return 0, fmt.Errorf("bad session start %q %q: %w", s.Date, s.StartTime, err)
	}
	return int(now.Sub(start).Minutes()), nil
}

func joinNotes(notes ...string) string {
	var parts []string
	for _, n := range notes {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "; ")
}

func isNetworkErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, credential.ErrNetworkUnavailable)
}
