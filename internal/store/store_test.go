package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRawLog(t *testing.T, s *Store, id string) *types.RawLog {
	t.Helper()
	raw := &types.RawLog{
		ID:         id,
		Content:    "Feb  3 10:15:01 web01 sshd[1]: Failed password for root",
		Source:     "auth.log",
		IngestedAt: time.Now().UTC(),
	}
	if err := s.CreateRawLog(context.Background(), raw); err != nil {
		t.Fatalf("CreateRawLog() error = %v", err)
	}
	return raw
}

func testEvent(id, rawLogID string) *types.Event {
	return &types.Event{
		ID:        id,
		RawLogID:  rawLogID,
		Timestamp: time.Date(2026, 2, 3, 10, 15, 1, 0, time.UTC),
		Source:    "web01",
		Message:   "sshd: Failed password for root",
		Category:  types.CategoryAuthFailure,
		ParsedAt:  time.Now().UTC(),
	}
}

func testAnalysis(id, eventID string, score int) *types.Analysis {
	return &types.Analysis{
		ID:              id,
		EventID:         eventID,
		SeverityScore:   score,
		Explanation:     "test explanation",
		Recommendations: []string{"block source", "enable mfa"},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestGetRawLog_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRawLog(context.Background(), "missing")
	if !errors.Is(err, ErrRawLogNotFound) {
		t.Errorf("error = %v, want ErrRawLogNotFound", err)
	}
}

func TestTx_EventAndAnalysisRoundTrip(t *testing.T) {
	s := openTestStore(t)
	raw := seedRawLog(t, s, "raw-1")

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback()

	got, err := tx.GetRawLog(raw.ID)
	if err != nil {
		t.Fatalf("tx.GetRawLog() error = %v", err)
	}
	if got.Content != raw.Content {
		t.Errorf("Content = %q, want %q", got.Content, raw.Content)
	}

	ev := testEvent("ev-1", raw.ID)
	if err := tx.InsertEvent(ev); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if err := tx.UpsertAnalysis(testAnalysis("an-1", ev.ID, 6)); err != nil {
		t.Fatalf("UpsertAnalysis() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	pairs, err := s.ListEventsByRawLog(context.Background(), raw.ID)
	if err != nil {
		t.Fatalf("ListEventsByRawLog() error = %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].Analysis == nil {
		t.Fatal("Analysis is nil")
	}
	if pairs[0].Analysis.SeverityScore != 6 {
		t.Errorf("SeverityScore = %d, want 6", pairs[0].Analysis.SeverityScore)
	}
	if len(pairs[0].Analysis.Recommendations) != 2 {
		t.Errorf("Recommendations = %v, want 2 entries", pairs[0].Analysis.Recommendations)
	}
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	s := openTestStore(t)
	raw := seedRawLog(t, s, "raw-1")

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.InsertEvent(testEvent("ev-1", raw.ID)); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	n, err := s.CountEvents(context.Background(), raw.ID)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountEvents = %d after rollback, want 0", n)
	}
}

func TestTx_RollbackAfterCommitIsNoop(t *testing.T) {
	s := openTestStore(t)
	raw := seedRawLog(t, s, "raw-1")

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.InsertEvent(testEvent("ev-1", raw.ID)); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback() after Commit error = %v, want nil", err)
	}

	n, _ := s.CountEvents(context.Background(), raw.ID)
	if n != 1 {
		t.Errorf("CountEvents = %d, want 1", n)
	}
}

func TestUpsertAnalysis_ReplacesInPlace(t *testing.T) {
	s := openTestStore(t)
	raw := seedRawLog(t, s, "raw-1")

	tx, _ := s.Begin(context.Background())
	ev := testEvent("ev-1", raw.ID)
	if err := tx.InsertEvent(ev); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	if err := tx.UpsertAnalysis(testAnalysis("an-1", ev.ID, 4)); err != nil {
		t.Fatalf("first UpsertAnalysis() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	// Re-trigger: second analysis for the same event replaces the first.
	tx2, _ := s.Begin(context.Background())
	if err := tx2.UpsertAnalysis(testAnalysis("an-2", ev.ID, 9)); err != nil {
		t.Fatalf("second UpsertAnalysis() error = %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	an, err := s.GetAnalysisByEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("GetAnalysisByEvent() error = %v", err)
	}
	if an == nil {
		t.Fatal("analysis missing")
	}
	if an.SeverityScore != 9 {
		t.Errorf("SeverityScore = %d, want 9 (replaced)", an.SeverityScore)
	}

	n, _ := s.CountAnalyses(context.Background(), raw.ID)
	if n != 1 {
		t.Errorf("CountAnalyses = %d, want 1 (no append)", n)
	}
}

func TestListEventsBySeverity(t *testing.T) {
	s := openTestStore(t)
	raw := seedRawLog(t, s, "raw-1")

	tx, _ := s.Begin(context.Background())
	for i, score := range []int{3, 7, 10} {
		ev := testEvent(filepath.Base(t.Name())+string(rune('a'+i)), raw.ID)
		if err := tx.InsertEvent(ev); err != nil {
			t.Fatalf("InsertEvent() error = %v", err)
		}
		if err := tx.UpsertAnalysis(testAnalysis("an-"+ev.ID, ev.ID, score)); err != nil {
			t.Fatalf("UpsertAnalysis() error = %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	pairs, err := s.ListEventsBySeverity(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("ListEventsBySeverity() error = %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(pairs))
	}
	if pairs[0].Analysis.SeverityScore != 10 {
		t.Errorf("first severity = %d, want 10 (descending)", pairs[0].Analysis.SeverityScore)
	}
}

func TestGetAnalysisByEvent_AbsentIsNil(t *testing.T) {
	s := openTestStore(t)

	an, err := s.GetAnalysisByEvent(context.Background(), "no-such-event")
	if err != nil {
		t.Fatalf("GetAnalysisByEvent() error = %v", err)
	}
	if an != nil {
		t.Errorf("analysis = %+v, want nil", an)
	}
}
