package parser

import "github.com/sentinel-logs/sentinel/pkg/types"

// AutoDetect tries the flexible parser first and falls back to the strict
// one on any failure. Used by the streaming ingestion path where the input
// format is not known up front.
type AutoDetect struct {
	flexible Parser
	strict   Parser
}

// NewAutoDetect builds the detecting parser from a flexible and a strict
// parser. Nil arguments select the defaults.
func NewAutoDetect(flexible, strict Parser) *AutoDetect {
	if flexible == nil {
		flexible = NewJSONLineParser()
	}
	if strict == nil {
		strict = NewSyslogParser()
	}
	return &AutoDetect{flexible: flexible, strict: strict}
}

// Parse attempts the flexible grammar, then the strict one. Only when both
// fail does the parse fail, reporting the strict parser's error.
func (p *AutoDetect) Parse(content string, rawLogID string) ([]types.Event, error) {
	events, err := p.flexible.Parse(content, rawLogID)
	if err == nil {
		return events, nil
	}
	return p.strict.Parse(content, rawLogID)
}

// Name returns the parser name.
func (p *AutoDetect) Name() string { return "auto" }
