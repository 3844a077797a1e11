package analyzer

import (
	"context"
	"fmt"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Analyzer scores one parsed event. Implementations must return a severity
// score inside [1,10]; the pipeline defensively re-checks before persisting.
type Analyzer interface {
	// Analyze produces an Analysis for event or fails with *AnalysisError.
	Analyze(ctx context.Context, event *types.Event) (*types.Analysis, error)

	// Name returns the analyzer name.
	Name() string
}

// AnalysisError reports that scoring a single event failed. It is isolated
// to that event and never aborts a processing attempt.
type AnalysisError struct {
	EventID string
	Err     error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for event %s: %v", e.EventID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
