package scan

// Severity of a feedback message.
type Severity string

// Feedback severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Feedback is the transient, UI-facing result of one scan attempt. It is
// never persisted.
type Feedback struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}
