package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// JSONLineParser is the flexible parser for JSON-lines input. Field names
// are matched fuzzily against common conventions; a line that is not a
// JSON object fails the whole parse so the caller can fall back to the
// strict parser.
type JSONLineParser struct {
	Now func() time.Time
}

// NewJSONLineParser creates the flexible parser.
func NewJSONLineParser() *JSONLineParser {
	return &JSONLineParser{Now: time.Now}
}

var (
	timeFieldNames    = []string{"timestamp", "@timestamp", "time", "ts", "datetime"}
	messageFieldNames = []string{"message", "msg", "text", "log", "event"}
	sourceFieldNames  = []string{"source", "host", "hostname", "host.name"}
)

// Parse tokenizes content as one JSON object per line.
func (p *JSONLineParser) Parse(content string, rawLogID string) ([]types.Event, error) {
	var events []types.Event

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return nil, &ParseError{RawLogID: rawLogID, Line: i + 1, Err: fmt.Errorf("not a JSON object: %w", err)}
		}

		events = append(events, *p.eventFrom(data, rawLogID))
	}

	return events, nil
}

func (p *JSONLineParser) eventFrom(data map[string]any, rawLogID string) *types.Event {
	now := p.Now()

	ts := now
	if raw, ok := firstString(data, timeFieldNames); ok {
		if parsed, err := ParseTimestamp(raw); err == nil {
			ts = parsed
		}
	}

	msg, ok := firstString(data, messageFieldNames)
	if !ok {
		// No recognizable message field: keep the whole object.
		encoded, _ := json.Marshal(data)
		msg = string(encoded)
	}

	source, _ := firstString(data, sourceFieldNames)

	return &types.Event{
		ID:        uuid.NewString(),
		RawLogID:  rawLogID,
		Timestamp: ts,
		Source:    source,
		Message:   msg,
		Category:  Classify(msg),
		ParsedAt:  now,
	}
}

// Name returns the parser name.
func (p *JSONLineParser) Name() string { return "jsonline" }

func firstString(data map[string]any, names []string) (string, bool) {
	for _, name := range names {
		if v, ok := data[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
