package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinel-logs/sentinel/internal/config"
	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

// Phase identifies where in the pipeline an update was emitted.
type Phase string

const (
	PhaseParseStarted     Phase = "parse_started"
	PhaseParseCompleted   Phase = "parse_completed"
	PhaseEventProcessed   Phase = "event_processed"
	PhaseAnalysisComplete Phase = "analysis_completed"
	PhaseCompleted        Phase = "completed"
	PhaseFailed           Phase = "failed"
)

// Update is one structured progress message pushed to subscribers.
type Update struct {
	JobID          string              `json:"job_id"`
	Phase          Phase               `json:"phase"`
	EventID        string              `json:"event_id,omitempty"`
	Category       types.EventCategory `json:"category,omitempty"`
	Severity       int                 `json:"severity,omitempty"`
	Message        string              `json:"message,omitempty"`
	EventsParsed   int                 `json:"events_parsed,omitempty"`
	EventsAnalyzed int                 `json:"events_analyzed,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Sink delivers processed-event updates to subscribers. Delivery failures
// never affect the pipeline result; the pipeline counts them and moves on.
type Sink interface {
	Publish(ctx context.Context, update Update) error
	Close() error
}

// NopSink discards every update. It is the default so call sites never
// branch on sink presence.
type NopSink struct{}

// Publish discards the update.
func (NopSink) Publish(context.Context, Update) error { return nil }

// Close is a no-op.
func (NopSink) Close() error { return nil }

// FromConfig builds the configured sink. A nil or "none" config yields
// NopSink.
func FromConfig(cfg *config.NotifyConfig, logger *logging.Logger) (Sink, error) {
	if cfg == nil {
		return NopSink{}, nil
	}

	switch cfg.Type {
	case "", "none":
		return NopSink{}, nil
	case "kafka":
		return NewKafkaSink(*cfg.Kafka)
	case "webhook":
		return NewWebhookSink(*cfg.Webhook, logger), nil
	case "elasticsearch":
		return NewElasticsearchSink(*cfg.Elasticsearch)
	case "multi":
		sinks := make([]Sink, 0, len(cfg.Multi))
		for i := range cfg.Multi {
			s, err := FromConfig(&cfg.Multi[i], logger)
			if err != nil {
				return nil, fmt.Errorf("multi sink [%d]: %w", i, err)
			}
			sinks = append(sinks, s)
		}
		return NewMultiSink(sinks...), nil
	default:
		return nil, fmt.Errorf("unknown notify sink type: %s", cfg.Type)
	}
}
