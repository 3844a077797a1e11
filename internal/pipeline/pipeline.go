package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentinel-logs/sentinel/internal/analyzer"
	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/internal/metrics"
	"github.com/sentinel-logs/sentinel/internal/notify"
	"github.com/sentinel-logs/sentinel/internal/parser"
	"github.com/sentinel-logs/sentinel/internal/reliability"
	"github.com/sentinel-logs/sentinel/internal/store"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Gateway opens transactional scopes against the persistence layer.
type Gateway interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one transactional scope. It lives for the duration of a single
// attempt: lookup, per-event inserts, one commit.
type Tx interface {
	GetRawLog(id string) (*types.RawLog, error)
	InsertRawLog(raw *types.RawLog) error
	InsertEvent(event *types.Event) error
	UpsertAnalysis(analysis *types.Analysis) error
	Commit() error
	Rollback() error
}

// GatewayFromStore adapts the concrete store to the Gateway interface.
func GatewayFromStore(s *store.Store) Gateway {
	return storeGateway{s: s}
}

type storeGateway struct {
	s *store.Store
}

func (g storeGateway) Begin(ctx context.Context) (Tx, error) {
	tx, err := g.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CompletionCallback is invoked synchronously after each streaming job.
// Panics inside a callback are recovered and logged, never propagated.
type CompletionCallback func(jobID string, result types.ProcessingResult)

// Config assembles a Pipeline. Gateway and Analyzer are required; everything
// else has a usable default.
type Config struct {
	Gateway      Gateway
	Parser       parser.Parser // raw-log path; defaults to the strict syslog parser
	StreamParser parser.Parser // streaming path; defaults to format auto-detection
	Analyzer     analyzer.Analyzer
	Sink         notify.Sink
	Logger       *logging.Logger
	Metrics      *metrics.Collector

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // zero disables the backoff cap
}

// Pipeline turns raw logs into analyzed events. Process retries whole
// attempts with exponential backoff; ProcessEntry is the single-pass
// streaming variant. Both always return a result record, never an error.
//
// Concurrent Process calls for the same raw log id are not deduplicated;
// each call parses and persists independently. Callers that need
// idempotency must enforce it upstream.
type Pipeline struct {
	gateway      Gateway
	parser       parser.Parser
	streamParser parser.Parser
	analyzer     analyzer.Analyzer
	logger       *logging.Logger
	metrics      *metrics.Collector
	stats        *Stats

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	sink      notify.Sink
	callbacks []CompletionCallback
}

// New builds a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("pipeline requires a persistence gateway")
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("pipeline requires an analyzer")
	}

	p := &Pipeline{
		gateway:      cfg.Gateway,
		parser:       cfg.Parser,
		streamParser: cfg.StreamParser,
		analyzer:     cfg.Analyzer,
		sink:         cfg.Sink,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		stats:        NewStats(),
		maxRetries:   cfg.MaxRetries,
		baseDelay:    cfg.BaseDelay,
		maxDelay:     cfg.MaxDelay,
		sleep:        reliability.Wait,
	}

	if p.parser == nil {
		p.parser = parser.NewSyslogParser()
	}
	if p.streamParser == nil {
		p.streamParser = parser.NewAutoDetect(nil, nil)
	}
	if p.sink == nil {
		p.sink = notify.NopSink{}
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	p.logger = p.logger.WithComponent("pipeline")
	if p.metrics == nil {
		p.metrics = metrics.NewCollector()
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.baseDelay <= 0 {
		p.baseDelay = time.Second
	}

	return p, nil
}

// RegisterSink replaces the notification sink. Passing nil restores the
// no-op sink.
func (p *Pipeline) RegisterSink(sink notify.Sink) {
	if sink == nil {
		sink = notify.NopSink{}
	}
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// RegisterCompletionCallback appends a callback run after each streaming job.
func (p *Pipeline) RegisterCompletionCallback(cb CompletionCallback) {
	if cb == nil {
		return
	}
	p.mu.Lock()
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

// Stats returns a consistent snapshot of the cumulative counters.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

// ResetStats zeroes all counters atomically relative to readers.
func (p *Pipeline) ResetStats() {
	p.stats.Reset()
}

// Process runs the retrying pipeline for one raw log id. The attempt is
// retried as a whole on fatal errors, sleeping baseDelay * 2^(k-1) before
// retry k. A missing raw log is retried like any other failure even though
// retrying cannot change the outcome; see DESIGN.md.
func (p *Pipeline) Process(ctx context.Context, rawLogID string) types.ProcessingResult {
	start := time.Now()
	p.stats.taskStarted()
	log := p.logger.WithJob(rawLogID)

	maxAttempts := p.maxRetries + 1
	attempts := 0
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := reliability.ExponentialBackoff(attempt-2, p.baseDelay, 2.0, p.maxDelay)
			p.metrics.RetriesTotal.Inc()
			p.metrics.BackoffDuration.Observe(delay.Seconds())
			log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying after backoff")

			if err := p.sleep(ctx, delay); err != nil {
				lastErr = &ProcessingError{Stage: StageBackoff, RawLogID: rawLogID, Err: err}
				break
			}
		}
		attempts = attempt

		outcome, err := p.attempt(ctx, rawLogID)
		if err == nil {
			elapsed := time.Since(start)
			p.stats.taskSucceeded(elapsed, attempt > 1)
			p.metrics.JobsTotal.WithLabelValues("success").Inc()
			p.metrics.JobAttempts.Observe(float64(attempt))
			p.metrics.JobDuration.Observe(elapsed.Seconds())
			log.Info().
				Int("attempt", attempt).
				Int("events_parsed", outcome.parsed).
				Int("events_analyzed", outcome.analyzed).
				Int("soft_errors", len(outcome.softErrors)).
				Msg("processing succeeded")

			return types.ProcessingResult{
				Success:        true,
				RawLogID:       rawLogID,
				Attempts:       attempt,
				Elapsed:        elapsed,
				EventsParsed:   outcome.parsed,
				EventsAnalyzed: outcome.analyzed,
				SoftErrors:     outcome.softErrors,
			}
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("processing attempt failed")
	}

	elapsed := time.Since(start)
	p.stats.taskFailed()
	p.metrics.JobsTotal.WithLabelValues("failed").Inc()
	p.metrics.JobDuration.Observe(elapsed.Seconds())
	log.Error().Err(lastErr).Int("attempts", attempts).Msg("processing failed, attempts exhausted")

	return types.ProcessingResult{
		Success:  false,
		RawLogID: rawLogID,
		Attempts: attempts,
		Elapsed:  elapsed,
		Error:    lastErr.Error(),
	}
}

// processedEvent pairs a persisted event with its analysis, which is nil
// when analysis failed for that event.
type processedEvent struct {
	event    types.Event
	analysis *types.Analysis
}

type attemptOutcome struct {
	parsed     int
	analyzed   int
	softErrors []string
	processed  []processedEvent
}

// attempt runs one full parse-and-analyze pass inside a fresh transaction.
// Fatal failures return a ProcessingError; per-event failures are recorded
// in the outcome and never abort the attempt.
func (p *Pipeline) attempt(ctx context.Context, rawLogID string) (out attemptOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = attemptOutcome{}
			err = &ProcessingError{Stage: StagePanic, RawLogID: rawLogID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	tx, err := p.gateway.Begin(ctx)
	if err != nil {
		return out, &ProcessingError{Stage: StageBegin, RawLogID: rawLogID, Err: err}
	}
	defer tx.Rollback()

	raw, err := tx.GetRawLog(rawLogID)
	if err != nil {
		return out, &ProcessingError{Stage: StageLookup, RawLogID: rawLogID, Err: err}
	}

	events, err := p.parser.Parse(raw.Content, rawLogID)
	if err != nil {
		return out, &ProcessingError{Stage: StageParse, RawLogID: rawLogID, Err: err}
	}
	out.parsed = len(events)
	p.metrics.EventsParsed.Add(float64(len(events)))

	p.processEvents(ctx, tx, events, &out, nil)

	if err := tx.Commit(); err != nil {
		return attemptOutcome{}, &ProcessingError{Stage: StageCommit, RawLogID: rawLogID, Err: err}
	}

	p.notifyProcessed(ctx, rawLogID, out.processed)
	return out, nil
}

// processEvents runs the per-event persist, analyze, persist-analysis loop.
// Every failure inside the loop is soft: recorded and skipped, never raised.
// announce, when non-nil, is called for each event that made it past the
// insert (the streaming path uses it for progress updates).
func (p *Pipeline) processEvents(ctx context.Context, tx Tx, events []types.Event, out *attemptOutcome, announce func(processedEvent)) {
	for i := range events {
		event := events[i]

		if err := tx.InsertEvent(&event); err != nil {
			p.softError(out, fmt.Sprintf("failed to persist event %s: %v", event.ID, err))
			continue
		}

		pe := processedEvent{event: event}

		a, err := p.analyzer.Analyze(ctx, &event)
		switch {
		case err != nil:
			p.softError(out, fmt.Sprintf("analysis failed for event %s: %v", event.ID, err))
		case !types.SeverityInRange(a.SeverityScore):
			p.softError(out, fmt.Sprintf("analysis for event %s scored %d, outside [%d,%d]",
				event.ID, a.SeverityScore, types.SeverityMin, types.SeverityMax))
		default:
			if err := tx.UpsertAnalysis(a); err != nil {
				p.softError(out, fmt.Sprintf("failed to persist analysis for event %s: %v", event.ID, err))
			} else {
				out.analyzed++
				p.metrics.EventsAnalyzed.Inc()
				pe.analysis = a
			}
		}

		out.processed = append(out.processed, pe)
		if announce != nil {
			announce(pe)
		}
	}
}

func (p *Pipeline) softError(out *attemptOutcome, msg string) {
	out.softErrors = append(out.softErrors, msg)
	p.metrics.SoftErrors.Inc()
	p.logger.Warn().Msg(msg)
}

// notifyProcessed pushes one update per processed event after the attempt
// committed. Sink failures are counted and logged, never returned.
func (p *Pipeline) notifyProcessed(ctx context.Context, jobID string, processed []processedEvent) {
	sink := p.currentSink()
	for _, pe := range processed {
		update := notify.Update{
			JobID:     jobID,
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
	}
}

func (p *Pipeline) currentSink() notify.Sink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sink
}

func (p *Pipeline) publish(ctx context.Context, sink notify.Sink, update notify.Update) {
	p.metrics.SinkPublishTotal.Inc()
	if err := sink.Publish(ctx, update); err != nil {
		p.stats.broadcastFailed()
		p.metrics.SinkPublishFailed.Inc()
		p.logger.Warn().
			Err(err).
			Str("job_id", update.JobID).
			Str("phase", string(update.Phase)).
			Msg("update publish failed")
		return
	}
	p.stats.broadcastSent()
}
