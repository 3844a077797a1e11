package pipeline

import "fmt"

// Stages at which an attempt can fail fatally. Per-event failures are soft
// errors and never carry a stage; they end up in the result's error list.
const (
	StageBegin   = "begin"
	StageLookup  = "lookup"
	StageParse   = "parse"
	StagePersist = "persist"
	StageCommit  = "commit"
	StageBackoff = "backoff"
	StagePanic   = "internal"
)

// ProcessingError is the unit of retry: a fatal attempt-level failure. Every
// attempt either succeeds or returns exactly one of these.
type ProcessingError struct {
	Stage    string
	RawLogID string
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed at %s: %v", e.RawLogID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
