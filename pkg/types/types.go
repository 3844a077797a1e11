package types

import "time"

// EventCategory classifies a parsed security event. The set is closed;
// parsers must map anything unrecognized to CategoryOther.
type EventCategory string

const (
	CategoryAuthFailure    EventCategory = "auth_failure"
	CategoryAuthSuccess    EventCategory = "auth_success"
	CategoryPrivEscalation EventCategory = "privilege_escalation"
	CategoryFirewall       EventCategory = "firewall"
	CategoryIntrusion      EventCategory = "intrusion"
	CategoryMalware        EventCategory = "malware"
	CategoryAnomaly        EventCategory = "anomaly"
	CategoryOther          EventCategory = "other"
)

// Categories lists every valid event category.
func Categories() []EventCategory {
	return []EventCategory{
		CategoryAuthFailure,
		CategoryAuthSuccess,
		CategoryPrivEscalation,
		CategoryFirewall,
		CategoryIntrusion,
		CategoryMalware,
		CategoryAnomaly,
		CategoryOther,
	}
}

// RawLog is an ingested, unprocessed log blob. Immutable once created.
type RawLog struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Event is one structured security-relevant record extracted from a RawLog.
// Never mutated after creation.
type Event struct {
	ID        string        `json:"id"`
	RawLogID  string        `json:"raw_log_id"`
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
	Message   string        `json:"message"`
	Category  EventCategory `json:"category"`
	ParsedAt  time.Time     `json:"parsed_at"`
}

// Analysis is the severity assessment for exactly one Event. An Event may
// legitimately have no Analysis when analysis failed; that is a recorded
// partial-failure state, not a defect.
type Analysis struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	SeverityScore   int       `json:"severity_score"` // closed range [1,10]
	Explanation     string    `json:"explanation"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// SeverityMin and SeverityMax bound Analysis.SeverityScore.
const (
	SeverityMin = 1
	SeverityMax = 10
)

// SeverityInRange reports whether score lies within the analyzer contract.
func SeverityInRange(score int) bool {
	return score >= SeverityMin && score <= SeverityMax
}

// SourceInfo carries metadata for a streaming log entry that arrives
// already decoded rather than by raw-log-id lookup.
type SourceInfo struct {
	Source string            `json:"source"`
	Labels map[string]string `json:"labels,omitempty"`
}

// ProcessingResult describes the outcome of one pipeline run. It is
// ephemeral: callers always receive a result record, never an error.
type ProcessingResult struct {
	Success        bool          `json:"success"`
	RawLogID       string        `json:"raw_log_id"`
	Attempts       int           `json:"attempts"`
	Elapsed        time.Duration `json:"elapsed"`
	EventsParsed   int           `json:"events_parsed"`
	EventsAnalyzed int           `json:"events_analyzed"`
	SoftErrors     []string      `json:"soft_errors,omitempty"`
	Error          string        `json:"error,omitempty"`
}
