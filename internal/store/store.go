package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

// ErrRawLogNotFound is returned when a raw log id does not exist.
var ErrRawLogNotFound = errors.New("raw log not found")

// Store is the transactional persistence gateway over raw logs, events and
// analyses. Foreign keys are enforced by the database: raw_logs 1—N events,
// events 1—(0 or 1) analyses.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema. An empty path selects a shared in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.AutoMigrate(&rawLogRow{}, &eventRow{}, &analysisRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin opens a transactional scope. The caller must Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return &Tx{tx: tx}, nil
}

// CreateRawLog inserts a new immutable raw log.
func (s *Store) CreateRawLog(ctx context.Context, raw *types.RawLog) error {
	if err := s.db.WithContext(ctx).Create(rowFromRawLog(raw)).Error; err != nil {
		return fmt.Errorf("failed to insert raw log: %w", err)
	}
	return nil
}

// GetRawLog looks up a raw log by id.
func (s *Store) GetRawLog(ctx context.Context, id string) (*types.RawLog, error) {
	var row rawLogRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRawLogNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query raw log: %w", err)
	}
	return rawLogFromRow(&row), nil
}

// EventWithAnalysis pairs an event with its analysis, which may be nil
// when analysis failed for that event.
type EventWithAnalysis struct {
	Event    types.Event     `json:"event"`
	Analysis *types.Analysis `json:"analysis,omitempty"`
}

// ListEventsByRawLog returns all events of one raw log in parse order,
// each with its analysis when one exists.
func (s *Store) ListEventsByRawLog(ctx context.Context, rawLogID string) ([]EventWithAnalysis, error) {
	var rows []eventRow
	err := s.db.WithContext(ctx).
		Preload("Analysis").
		Where("raw_log_id = ?", rawLogID).
		Order("parsed_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return pairRows(rows), nil
}

// ListEventsBySeverity returns events whose analysis scored at least
// minSeverity, highest first.
func (s *Store) ListEventsBySeverity(ctx context.Context, minSeverity, limit int) ([]EventWithAnalysis, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventRow
	err := s.db.WithContext(ctx).
		Joins("JOIN analyses ON analyses.event_id = events.id").
		Where("analyses.severity_score >= ?", minSeverity).
		Order("analyses.severity_score DESC, events.timestamp DESC").
		Limit(limit).
		Preload("Analysis").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query events by severity: %w", err)
	}
	return pairRows(rows), nil
}

// GetAnalysisByEvent returns the analysis for one event, or nil when the
// event has none.
func (s *Store) GetAnalysisByEvent(ctx context.Context, eventID string) (*types.Analysis, error) {
	var row analysisRow
	err := s.db.WithContext(ctx).First(&row, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	return analysisFromRow(&row), nil
}

// CountEvents returns the number of persisted events for a raw log.
func (s *Store) CountEvents(ctx context.Context, rawLogID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&eventRow{}).Where("raw_log_id = ?", rawLogID).Count(&n).Error
	return n, err
}

// CountAnalyses returns the number of persisted analyses for a raw log.
func (s *Store) CountAnalyses(ctx context.Context, rawLogID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Joins("JOIN events ON events.id = analyses.event_id").
		Where("events.raw_log_id = ?", rawLogID).
		Count(&n).Error
	return n, err
}

func pairRows(rows []eventRow) []EventWithAnalysis {
	out := make([]EventWithAnalysis, 0, len(rows))
	for i := range rows {
		pair := EventWithAnalysis{Event: *eventFromRow(&rows[i])}
		if rows[i].Analysis != nil {
			pair.Analysis = analysisFromRow(rows[i].Analysis)
		}
		out = append(out, pair)
	}
	return out
}

// Tx is one transactional scope. It lives for the duration of a single
// processing attempt: lookup, per-event inserts, one commit.
type Tx struct {
	tx   *gorm.DB
	done bool
}

// GetRawLog looks up a raw log inside the transaction.
func (t *Tx) GetRawLog(id string) (*types.RawLog, error) {
	var row rawLogRow
	err := t.tx.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRawLogNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query raw log: %w", err)
	}
	return rawLogFromRow(&row), nil
}

// InsertRawLog inserts a raw log inside the transaction. Used by the
// streaming path, which persists the entry it was handed.
func (t *Tx) InsertRawLog(raw *types.RawLog) error {
	if err := t.tx.Create(rowFromRawLog(raw)).Error; err != nil {
		return fmt.Errorf("failed to insert raw log: %w", err)
	}
	return nil
}

// InsertEvent inserts one parsed event row.
func (t *Tx) InsertEvent(event *types.Event) error {
	if err := t.tx.Create(rowFromEvent(event)).Error; err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpsertAnalysis inserts the analysis for an event, replacing any previous
// one (manual re-trigger is update-in-place, not append).
func (t *Tx) UpsertAnalysis(analysis *types.Analysis) error {
	err := t.tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"id", "severity_score", "explanation", "recommendations", "created_at",
		}),
	}).Create(rowFromAnalysis(analysis)).Error
	if err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.done = true
	if err := t.tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit; it becomes
// a no-op, which lets callers defer it.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback().Error
}
