package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

const sampleAuthLog = `Feb  3 10:15:01 web01 sshd[2211]: Failed password for invalid user admin from 203.0.113.7 port 52114 ssh2
Feb  3 10:15:09 web01 sshd[2211]: Accepted publickey for deploy from 198.51.100.4 port 40022 ssh2
Feb  3 10:16:44 web01 sudo: deploy : TTY=pts/0 ; COMMAND=/usr/bin/systemctl restart nginx`

func fixedNow() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func TestSyslogParser_Parse(t *testing.T) {
	p := NewSyslogParser()
	p.Now = fixedNow

	events, err := p.Parse(sampleAuthLog, "raw-1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}

	for i, ev := range events {
		if ev.RawLogID != "raw-1" {
			t.Errorf("events[%d].RawLogID = %q, want raw-1", i, ev.RawLogID)
		}
		if ev.ID == "" {
			t.Errorf("events[%d].ID is empty", i)
		}
		if ev.Source != "web01" {
			t.Errorf("events[%d].Source = %q, want web01", i, ev.Source)
		}
		if ev.Timestamp.Year() != 2026 {
			t.Errorf("events[%d].Timestamp.Year() = %d, want 2026", i, ev.Timestamp.Year())
		}
	}

	wantCategories := []types.EventCategory{
		types.CategoryAuthFailure,
		types.CategoryAuthSuccess,
		types.CategoryPrivEscalation,
	}
	for i, want := range wantCategories {
		if events[i].Category != want {
			t.Errorf("events[%d].Category = %q, want %q", i, events[i].Category, want)
		}
	}
}

func TestSyslogParser_Deterministic(t *testing.T) {
	p := NewSyslogParser()

	first, err := p.Parse(sampleAuthLog, "raw-1")
	if err != nil {
		t.Fatalf("first Parse() error = %v", err)
	}
	second, err := p.Parse(sampleAuthLog, "raw-1")
	if err != nil {
		t.Fatalf("second Parse() error = %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("event counts differ across parses: %d vs %d", len(first), len(second))
	}
}

func TestSyslogParser_MalformedLineFailsWholeParse(t *testing.T) {
	p := NewSyslogParser()

	content := sampleAuthLog + "\nthis is not a log line"
	events, err := p.Parse(content, "raw-2")
	if err == nil {
		t.Fatal("Parse() succeeded, want error")
	}
	if events != nil {
		t.Errorf("Parse() returned partial events on failure: %v", events)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if parseErr.Line != 4 {
		t.Errorf("ParseError.Line = %d, want 4", parseErr.Line)
	}
	if parseErr.RawLogID != "raw-2" {
		t.Errorf("ParseError.RawLogID = %q, want raw-2", parseErr.RawLogID)
	}
}

func TestSyslogParser_ISOLines(t *testing.T) {
	p := NewSyslogParser()

	content := "2026-02-03T10:15:01Z fw01 iptables dropped packet from 203.0.113.9"
	events, err := p.Parse(content, "raw-3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Category != types.CategoryFirewall {
		t.Errorf("Category = %q, want firewall", events[0].Category)
	}
	if events[0].Source != "fw01" {
		t.Errorf("Source = %q, want fw01", events[0].Source)
	}
}

func TestSyslogParser_SkipsBlankLines(t *testing.T) {
	p := NewSyslogParser()

	content := "\n\nFeb  3 10:15:01 web01 sshd[1]: Accepted password for root\n\n"
	events, err := p.Parse(content, "raw-4")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}

func TestJSONLineParser_Parse(t *testing.T) {
	p := NewJSONLineParser()
	p.Now = fixedNow

	content := `{"timestamp":"2026-02-03T10:15:01Z","message":"Failed password for root","host":"db01"}
{"time":"2026-02-03T10:16:01Z","msg":"suspicious outbound connection","source":"db01"}`

	events, err := p.Parse(content, "raw-5")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}

	if events[0].Category != types.CategoryAuthFailure {
		t.Errorf("events[0].Category = %q, want auth_failure", events[0].Category)
	}
	if events[0].Source != "db01" {
		t.Errorf("events[0].Source = %q, want db01", events[0].Source)
	}
	if events[1].Category != types.CategoryAnomaly {
		t.Errorf("events[1].Category = %q, want anomaly", events[1].Category)
	}
}

func TestJSONLineParser_RejectsPlainText(t *testing.T) {
	p := NewJSONLineParser()

	_, err := p.Parse("not json at all", "raw-6")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestAutoDetect_PrefersFlexible(t *testing.T) {
	p := NewAutoDetect(nil, nil)

	events, err := p.Parse(`{"message":"malware signature detected","timestamp":"2026-02-03T10:15:01Z"}`, "raw-7")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 || events[0].Category != types.CategoryMalware {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestAutoDetect_FallsBackToStrict(t *testing.T) {
	p := NewAutoDetect(nil, nil)

	events, err := p.Parse("Feb  3 10:15:01 web01 sshd[2]: Failed password for root", "raw-8")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 || events[0].Category != types.CategoryAuthFailure {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestAutoDetect_BothFail(t *testing.T) {
	p := NewAutoDetect(nil, nil)

	if _, err := p.Parse("completely unstructured gibberish", "raw-9"); err == nil {
		t.Error("Parse() succeeded, want error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    types.EventCategory
	}{
		{"Failed password for invalid user admin", types.CategoryAuthFailure},
		{"Accepted publickey for deploy", types.CategoryAuthSuccess},
		{"sudo: deploy ran systemctl", types.CategoryPrivEscalation},
		{"iptables dropped packet", types.CategoryFirewall},
		{"possible SQL injection attempt", types.CategoryIntrusion},
		{"ransomware signature match", types.CategoryMalware},
		{"unusual login time for user", types.CategoryAnomaly},
		{"disk usage at 81%", types.CategoryOther},
	}

	for _, tt := range tests {
		if got := Classify(tt.message); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2026-02-03T10:15:01Z", false},
		{"2026-02-03 10:15:01", false},
		{"Feb  3 10:15:01", false},
		{"not a timestamp", true},
	}

	for _, tt := range tests {
		_, err := ParseTimestamp(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
