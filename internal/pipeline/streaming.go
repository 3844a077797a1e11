package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/internal/notify"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// ProcessEntry runs the single-pass streaming pipeline for one already
// decoded log entry. The format is auto-detected (flexible parser first,
// strict fallback), the entry and its events are persisted in one
// transaction, and there is no retry: any fatal error returns a failure
// result directly. Progress updates go to the sink after each phase.
func (p *Pipeline) ProcessEntry(ctx context.Context, content string, source types.SourceInfo) types.ProcessingResult {
	start := time.Now()
	entryID := uuid.NewString()
	p.stats.entryProcessed()

	sink := p.currentSink()
	log := p.logger.WithJob(entryID)

	p.publish(ctx, sink, notify.Update{
		JobID:     entryID,
		Phase:     notify.PhaseParseStarted,
		Timestamp: time.Now().UTC(),
	})

	events, err := p.streamParser.Parse(content, entryID)
	if err != nil {
		fatal := &ProcessingError{Stage: StageParse, RawLogID: entryID, Err: err}
		return p.entryFailed(ctx, sink, log, entryID, start, fatal)
	}

	p.publish(ctx, sink, notify.Update{
		JobID:        entryID,
		Phase:        notify.PhaseParseCompleted,
		EventsParsed: len(events),
		Timestamp:    time.Now().UTC(),
	})

	tx, err := p.gateway.Begin(ctx)
	if err != nil {
		fatal := &ProcessingError{Stage: StageBegin, RawLogID: entryID, Err: err}
		return p.entryFailed(ctx, sink, log, entryID, start, fatal)
	}
	defer tx.Rollback()

	raw := &types.RawLog{
		ID:         entryID,
		Content:    content,
		Source:     source.Source,
		IngestedAt: time.Now().UTC(),
	}
	if err := tx.InsertRawLog(raw); err != nil {
		fatal := &ProcessingError{Stage: StagePersist, RawLogID: entryID, Err: err}
		return p.entryFailed(ctx, sink, log, entryID, start, fatal)
	}

	var out attemptOutcome
	out.parsed = len(events)
	p.metrics.EventsParsed.Add(float64(len(events)))

	p.processEvents(ctx, tx, events, &out, func(pe processedEvent) {
		update := notify.Update{
			JobID:     entryID,
			Phase:     notify.PhaseEventProcessed,
			EventID:   pe.event.ID,
			Category:  pe.event.Category,
			Message:   pe.event.Message,
			Timestamp: time.Now().UTC(),
		}
		if pe.analysis != nil {
			update.Severity = pe.analysis.SeverityScore
		}
		p.publish(ctx, sink, update)
	})

	p.publish(ctx, sink, notify.Update{
		JobID:          entryID,
		Phase:          notify.PhaseAnalysisComplete,
		EventsParsed:   out.parsed,
		EventsAnalyzed: out.analyzed,
		Timestamp:      time.Now().UTC(),
	})

	if err := tx.Commit(); err != nil {
		fatal := &ProcessingError{Stage: StageCommit, RawLogID: entryID, Err: err}
		return p.entryFailed(ctx, sink, log, entryID, start, fatal)
	}

	elapsed := time.Since(start)
	p.metrics.StreamEntriesTotal.WithLabelValues("success").Inc()

	result := types.ProcessingResult{
		Success:        true,
		RawLogID:       entryID,
		Attempts:       1,
		Elapsed:        elapsed,
		EventsParsed:   out.parsed,
		EventsAnalyzed: out.analyzed,
		SoftErrors:     out.softErrors,
	}

	p.publish(ctx, sink, notify.Update{
		JobID:          entryID,
		Phase:          notify.PhaseCompleted,
		EventsParsed:   out.parsed,
		EventsAnalyzed: out.analyzed,
		Timestamp:      time.Now().UTC(),
	})

	log.Info().
		Int("events_parsed", out.parsed).
		Int("events_analyzed", out.analyzed).
		Int("soft_errors", len(out.softErrors)).
		Msg("streaming entry processed")

	p.runCallbacks(entryID, result)
	return result
}

func (p *Pipeline) entryFailed(ctx context.Context, sink notify.Sink, log *logging.Logger, entryID string, start time.Time, fatal *ProcessingError) types.ProcessingResult {
	p.metrics.StreamEntriesTotal.WithLabelValues("failed").Inc()
	log.Error().Err(fatal).Msg("streaming entry failed")

	p.publish(ctx, sink, notify.Update{
		JobID:     entryID,
		Phase:     notify.PhaseFailed,
		Message:   fatal.Error(),
		Timestamp: time.Now().UTC(),
	})

	result := types.ProcessingResult{
		Success:  false,
		RawLogID: entryID,
		Attempts: 1,
		Elapsed:  time.Since(start),
		Error:    fatal.Error(),
	}

	p.runCallbacks(entryID, result)
	return result
}

// runCallbacks invokes the registered completion callbacks in registration
// order. A panicking callback is logged and the rest still run.
func (p *Pipeline) runCallbacks(jobID string, result types.ProcessingResult) {
	p.mu.RLock()
	callbacks := make([]CompletionCallback, len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error().
						Str("job_id", jobID).
						Interface("panic", r).
						Msg("completion callback panicked")
				}
			}()
			cb(jobID, result)
		}()
	}
}
