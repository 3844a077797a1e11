package dlq

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

var ErrJournalClosed = errors.New("dead letter journal is closed")

const journalFile = "failed-jobs.jsonl"

// Entry is one terminally failed job, written as a single JSON line so the
// journal can be inspected or replayed with standard tooling.
type Entry struct {
	RawLogID   string    `json:"raw_log_id"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	SoftErrors []string  `json:"soft_errors,omitempty"`
	FailedAt   time.Time `json:"failed_at"`
}

// Journal appends terminally failed jobs to a file for later inspection.
// Jobs land here only after the retry loop is exhausted.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	written uint64
	closed  bool
}

// Open creates or appends to the journal file under dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, journalFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{file: f}, nil
}

// Record appends one failed result. Only failed results are written; a
// successful one is silently ignored so callers can record unconditionally.
func (j *Journal) Record(result types.ProcessingResult) error {
	if result.Success {
		return nil
	}

	entry := Entry{
		RawLogID:   result.RawLogID,
		Error:      result.Error,
		Attempts:   result.Attempts,
		SoftErrors: result.SoftErrors,
		FailedAt:   time.Now().UTC(),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	j.written++
	return nil
}

// Written returns the number of entries recorded since Open.
func (j *Journal) Written() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// Load reads every entry from the journal file under dir. Missing file
// means an empty journal, not an error.
func Load(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, journalFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("corrupt journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
