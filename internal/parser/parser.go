package parser

import (
	"fmt"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Parser turns raw log text into structured security events. Parsers are
// deterministic: the same content always yields the same number of events.
type Parser interface {
	// Parse splits content into events attributed to rawLogID. A failure
	// aborts the whole parse; no partial event list is returned.
	Parse(content string, rawLogID string) ([]types.Event, error)

	// Name returns the parser name.
	Name() string
}

// ParseError reports that raw content could not be tokenized into events.
type ParseError struct {
	RawLogID string
	Line     int // 1-based line number, 0 when not line-specific
	Err      error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in raw log %s at line %d: %v", e.RawLogID, e.Line, e.Err)
	}
	return fmt.Sprintf("parse error in raw log %s: %v", e.RawLogID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseTimestamp attempts to parse ts using the given formats, falling back
// to a set of common log timestamp layouts.
func ParseTimestamp(ts string, formats ...string) (time.Time, error) {
	if len(formats) == 0 {
		formats = DefaultTimeFormats()
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp: %s", ts)
}

// DefaultTimeFormats returns common timestamp formats seen in security logs.
func DefaultTimeFormats() []string {
	return []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006/01/02 15:04:05",
		"Jan  2 15:04:05",
		"Jan 2 15:04:05",
		"02/Jan/2006:15:04:05 -0700",
	}
}
