package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Heuristic is a deterministic rule-based severity scorer. It is the
// offline default; no network access, no external model.
type Heuristic struct {
	Now func() time.Time
}

// NewHeuristic creates the rule-based analyzer.
func NewHeuristic() *Heuristic {
	return &Heuristic{Now: time.Now}
}

// Base severity per category; keyword signals adjust within [1,10].
var categorySeverity = map[types.EventCategory]int{
	types.CategoryMalware:        9,
	types.CategoryIntrusion:      8,
	types.CategoryPrivEscalation: 7,
	types.CategoryAuthFailure:    5,
	types.CategoryFirewall:       4,
	types.CategoryAnomaly:        4,
	types.CategoryAuthSuccess:    2,
	types.CategoryOther:          1,
}

var escalationSignals = []string{"root", "admin", "repeated", "multiple", "critical"}

// Analyze scores the event from its category and message content.
func (h *Heuristic) Analyze(ctx context.Context, event *types.Event) (*types.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AnalysisError{EventID: event.ID, Err: err}
	}

	score, ok := categorySeverity[event.Category]
	if !ok {
		return nil, &AnalysisError{EventID: event.ID, Err: fmt.Errorf("unknown event category: %s", event.Category)}
	}

	lower := strings.ToLower(event.Message)
	for _, signal := range escalationSignals {
		if strings.Contains(lower, signal) {
			score++
			break
		}
	}
	if score > types.SeverityMax {
		score = types.SeverityMax
	}

	return &types.Analysis{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		SeverityScore: score,
		Explanation:   h.explain(event, score),
		Recommendations: recommendationsFor(event.Category),
		CreatedAt:     h.Now(),
	}, nil
}

func (h *Heuristic) explain(event *types.Event, score int) string {
	return fmt.Sprintf("event categorized as %s with severity %d/10 based on rule evaluation of %q",
		event.Category, score, firstWords(event.Message, 12))
}

func recommendationsFor(category types.EventCategory) []string {
	switch category {
	case types.CategoryMalware:
		return []string{
			"isolate the affected host from the network",
			"run a full malware scan and preserve forensic artifacts",
		}
	case types.CategoryIntrusion:
		return []string{
			"block the source address at the perimeter",
			"review related events for lateral movement",
		}
	case types.CategoryPrivEscalation:
		return []string{
			"verify the privilege change was authorized",
			"audit sudoers and recent permission changes",
		}
	case types.CategoryAuthFailure:
		return []string{
			"check for brute-force patterns from the same source",
			"enforce account lockout and MFA",
		}
	case types.CategoryFirewall:
		return []string{"confirm the firewall rule matches policy"}
	case types.CategoryAnomaly:
		return []string{"correlate with baseline activity for the host"}
	default:
		return []string{"no action required; retain for audit"}
	}
}

// Name returns the analyzer name.
func (h *Heuristic) Name() string { return "heuristic" }

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}
