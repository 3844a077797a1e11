package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

// rawLogRow mirrors types.RawLog. Rows are immutable once created.
type rawLogRow struct {
	ID         string    `gorm:"primaryKey"`
	Content    string    `gorm:"not null"`
	Source     string    `gorm:"index"`
	IngestedAt time.Time `gorm:"not null"`

	Events []eventRow `gorm:"foreignKey:RawLogID;constraint:OnDelete:CASCADE"`
}

func (rawLogRow) TableName() string { return "raw_logs" }

// eventRow mirrors types.Event.
type eventRow struct {
	ID        string    `gorm:"primaryKey"`
	RawLogID  string    `gorm:"index;not null"`
	Timestamp time.Time `gorm:"index"`
	Source    string
	Message   string `gorm:"not null"`
	Category  string `gorm:"index;not null"`
	ParsedAt  time.Time

	Analysis *analysisRow `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (eventRow) TableName() string { return "events" }

// analysisRow mirrors types.Analysis. The unique index on EventID enforces
// at most one current analysis per event; re-analysis replaces in place.
type analysisRow struct {
	ID              string     `gorm:"primaryKey"`
	EventID         string     `gorm:"uniqueIndex;not null"`
	SeverityScore   int        `gorm:"index;not null;check:severity_score >= 1 AND severity_score <= 10"`
	Explanation     string
	Recommendations stringList `gorm:"type:text"`
	CreatedAt       time.Time
}

func (analysisRow) TableName() string { return "analyses" }

// stringList stores an ordered list of strings as a JSON column.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *stringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into stringList", value)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

func rawLogFromRow(r *rawLogRow) *types.RawLog {
	return &types.RawLog{
		ID:         r.ID,
		Content:    r.Content,
		Source:     r.Source,
		IngestedAt: r.IngestedAt,
	}
}

func rowFromRawLog(r *types.RawLog) *rawLogRow {
	return &rawLogRow{
		ID:         r.ID,
		Content:    r.Content,
		Source:     r.Source,
		IngestedAt: r.IngestedAt,
	}
}

func eventFromRow(e *eventRow) *types.Event {
	return &types.Event{
		ID:        e.ID,
		RawLogID:  e.RawLogID,
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Message:   e.Message,
		Category:  types.EventCategory(e.Category),
		ParsedAt:  e.ParsedAt,
	}
}

func rowFromEvent(e *types.Event) *eventRow {
	return &eventRow{
		ID:        e.ID,
		RawLogID:  e.RawLogID,
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Message:   e.Message,
		Category:  string(e.Category),
		ParsedAt:  e.ParsedAt,
	}
}

func analysisFromRow(a *analysisRow) *types.Analysis {
	return &types.Analysis{
		ID:              a.ID,
		EventID:         a.EventID,
		SeverityScore:   a.SeverityScore,
		Explanation:     a.Explanation,
		Recommendations: a.Recommendations,
		CreatedAt:       a.CreatedAt,
	}
}

func rowFromAnalysis(a *types.Analysis) *analysisRow {
	return &analysisRow{
		ID:              a.ID,
		EventID:         a.EventID,
		SeverityScore:   a.SeverityScore,
		Explanation:     a.Explanation,
		Recommendations: stringList(a.Recommendations),
		CreatedAt:       a.CreatedAt,
	}
}
