package dlq

import (
	"testing"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

func TestJournal_RecordAndLoad(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	failed := types.ProcessingResult{
		Success:    false,
		RawLogID:   "raw-1",
		Attempts:   4,
		Error:      "processing raw-1 failed at parse: unreadable",
		SoftErrors: []string{"analysis failed for event raw-1-ev-2"},
	}
	if err := j.Record(failed); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record(types.ProcessingResult{Success: true, RawLogID: "raw-2"}); err != nil {
		t.Fatalf("Record(success) error = %v", err)
	}
	if j.Written() != 1 {
		t.Errorf("Written() = %d, want 1 (success results are skipped)", j.Written())
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Load() returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.RawLogID != "raw-1" || e.Attempts != 4 {
		t.Errorf("entry = %+v, want raw-1 with 4 attempts", e)
	}
	if len(e.SoftErrors) != 1 {
		t.Errorf("entry soft errors = %v, want one", e.SoftErrors)
	}
	if e.FailedAt.IsZero() {
		t.Error("entry FailedAt is zero")
	}
}

func TestJournal_AppendAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		j, err := Open(dir)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := j.Record(types.ProcessingResult{RawLogID: "raw", Error: "x", Attempts: 1}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		j.Close()
	}

	entries, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Load() returned %d entries, want 2", len(entries))
	}
}

func TestJournal_RecordAfterClose(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	j.Close()

	err = j.Record(types.ProcessingResult{RawLogID: "raw", Error: "x"})
	if err != ErrJournalClosed {
		t.Errorf("Record() after Close = %v, want ErrJournalClosed", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	entries, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if entries != nil {
		t.Errorf("Load() = %v, want nil for missing journal", entries)
	}
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") returned nil error")
	}
}
