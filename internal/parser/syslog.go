package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Patterns accepted by the strict parser. Named groups: ts, host, proc, msg.
var (
	syslogLine = regexp.MustCompile(`^(?P<ts>[A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2})\s+(?P<host>\S+)\s+(?P<proc>[\w./-]+)(?:\[\d+\])?:\s+(?P<msg>.+)$`)
	isoLine    = regexp.MustCompile(`^(?P<ts>\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+(?:(?P<host>\S+)\s+)?(?P<msg>.+)$`)
)

// SyslogParser is the strict line parser for syslog-style security logs.
// Every non-empty line must match one of the accepted grammars; a line
// that matches neither fails the whole parse.
type SyslogParser struct {
	// Now is overridable for tests; syslog timestamps carry no year.
	Now func() time.Time
}

// NewSyslogParser creates the strict parser.
func NewSyslogParser() *SyslogParser {
	return &SyslogParser{Now: time.Now}
}

// Parse tokenizes content line by line.
func (p *SyslogParser) Parse(content string, rawLogID string) ([]types.Event, error) {
	var events []types.Event

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		event, err := p.parseLine(line, rawLogID)
		if err != nil {
			return nil, &ParseError{RawLogID: rawLogID, Line: i + 1, Err: err}
		}
		events = append(events, *event)
	}

	return events, nil
}

func (p *SyslogParser) parseLine(line string, rawLogID string) (*types.Event, error) {
	now := p.Now()

	var ts time.Time
	var host, msg string

	switch {
	case syslogLine.MatchString(line):
		m := submatches(syslogLine, line)
		parsed, err := ParseTimestamp(m["ts"], "Jan  2 15:04:05", "Jan 2 15:04:05")
		if err != nil {
			return nil, err
		}
		// Syslog timestamps have no year; assume the current one.
		ts = parsed.AddDate(now.Year(), 0, 0)
		host = m["host"]
		msg = m["proc"] + ": " + m["msg"]

	case isoLine.MatchString(line):
		m := submatches(isoLine, line)
		parsed, err := ParseTimestamp(m["ts"])
		if err != nil {
			return nil, err
		}
		ts = parsed
		host = m["host"]
		msg = m["msg"]

	default:
		return nil, fmt.Errorf("unrecognized log line format: %q", truncate(line, 120))
	}

	return &types.Event{
		ID:        uuid.NewString(),
		RawLogID:  rawLogID,
		Timestamp: ts,
		Source:    host,
		Message:   msg,
		Category:  Classify(msg),
		ParsedAt:  now,
	}, nil
}

// Name returns the parser name.
func (p *SyslogParser) Name() string { return "syslog" }

func submatches(re *regexp.Regexp, line string) map[string]string {
	match := re.FindStringSubmatch(line)
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i != 0 && name != "" && i < len(match) {
			out[name] = match[i]
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
