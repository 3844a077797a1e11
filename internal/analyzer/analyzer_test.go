package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

func testEvent(category types.EventCategory, message string) *types.Event {
	return &types.Event{
		ID:        "ev-1",
		RawLogID:  "raw-1",
		Timestamp: time.Date(2026, 2, 3, 10, 15, 1, 0, time.UTC),
		Source:    "web01",
		Message:   message,
		Category:  category,
		ParsedAt:  time.Now(),
	}
}

func TestHeuristic_SeverityByCategory(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		category types.EventCategory
		message  string
		wantMin  int
		wantMax  int
	}{
		{types.CategoryMalware, "malware detected", 9, 10},
		{types.CategoryIntrusion, "port scan observed", 8, 9},
		{types.CategoryPrivEscalation, "sudo invoked", 7, 8},
		{types.CategoryAuthFailure, "failed password", 5, 6},
		{types.CategoryAuthSuccess, "session opened", 2, 3},
		{types.CategoryOther, "disk usage report", 1, 2},
	}

	for _, tt := range tests {
		an, err := h.Analyze(context.Background(), testEvent(tt.category, tt.message))
		if err != nil {
			t.Fatalf("Analyze(%s) error = %v", tt.category, err)
		}
		if an.SeverityScore < tt.wantMin || an.SeverityScore > tt.wantMax {
			t.Errorf("severity for %s = %d, want within [%d,%d]",
				tt.category, an.SeverityScore, tt.wantMin, tt.wantMax)
		}
		if !types.SeverityInRange(an.SeverityScore) {
			t.Errorf("severity %d outside contract range", an.SeverityScore)
		}
		if an.EventID != "ev-1" {
			t.Errorf("EventID = %q, want ev-1", an.EventID)
		}
		if an.Explanation == "" {
			t.Error("empty explanation")
		}
		if len(an.Recommendations) == 0 {
			t.Error("no recommendations")
		}
	}
}

func TestHeuristic_EscalationSignalRaisesScore(t *testing.T) {
	h := NewHeuristic()

	plain, err := h.Analyze(context.Background(), testEvent(types.CategoryAuthFailure, "failed password for user bob"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	escalated, err := h.Analyze(context.Background(), testEvent(types.CategoryAuthFailure, "failed password for root"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if escalated.SeverityScore <= plain.SeverityScore {
		t.Errorf("root signal did not raise score: plain=%d escalated=%d",
			plain.SeverityScore, escalated.SeverityScore)
	}
}

func TestHeuristic_CanceledContext(t *testing.T) {
	h := NewHeuristic()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Analyze(ctx, testEvent(types.CategoryOther, "x"))
	var aerr *AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want *AnalysisError", err)
	}
}

func llmServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestLLM_Analyze(t *testing.T) {
	srv := llmServer(t, `{"severity_score":8,"explanation":"active brute force","recommendations":["block source ip"]}`, http.StatusOK)
	defer srv.Close()

	l, err := NewLLM(LLMConfig{Endpoint: srv.URL, Model: "sec-7b"})
	if err != nil {
		t.Fatalf("NewLLM() error = %v", err)
	}

	an, err := l.Analyze(context.Background(), testEvent(types.CategoryAuthFailure, "failed password"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if an.SeverityScore != 8 {
		t.Errorf("SeverityScore = %d, want 8", an.SeverityScore)
	}
	if an.Explanation != "active brute force" {
		t.Errorf("Explanation = %q", an.Explanation)
	}
	if len(an.Recommendations) != 1 {
		t.Errorf("Recommendations = %v, want one entry", an.Recommendations)
	}
}

func TestLLM_ErrorPaths(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status int
	}{
		{"http error", "", http.StatusInternalServerError},
		{"non-json verdict", "the event looks bad", http.StatusOK},
		{"severity out of range", `{"severity_score":15,"explanation":"x"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := llmServer(t, tt.reply, tt.status)
			defer srv.Close()

			l, err := NewLLM(LLMConfig{Endpoint: srv.URL})
			if err != nil {
				t.Fatalf("NewLLM() error = %v", err)
			}

			_, err = l.Analyze(context.Background(), testEvent(types.CategoryOther, "x"))
			var aerr *AnalysisError
			if !errors.As(err, &aerr) {
				t.Fatalf("error = %v, want *AnalysisError", err)
			}
		})
	}
}

func TestNewLLM_RequiresEndpoint(t *testing.T) {
	if _, err := NewLLM(LLMConfig{}); err == nil {
		t.Error("NewLLM() succeeded without endpoint")
	}
}
