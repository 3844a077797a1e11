package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sentinel-logs/sentinel/internal/analyzer"
	"github.com/sentinel-logs/sentinel/internal/config"
	"github.com/sentinel-logs/sentinel/internal/dlq"
	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/internal/metrics"
	"github.com/sentinel-logs/sentinel/internal/notify"
	"github.com/sentinel-logs/sentinel/internal/pipeline"
	"github.com/sentinel-logs/sentinel/internal/server"
	"github.com/sentinel-logs/sentinel/internal/shutdown"
	"github.com/sentinel-logs/sentinel/internal/store"
	"github.com/sentinel-logs/sentinel/internal/worker"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	version    = "0.1.0"
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadOrDefault(*configFile)

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.SetGlobal(logger)

	logger.Info().Str("version", version).Msg("starting sentinel")

	collector := metrics.NewCollector()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	anl, err := buildAnalyzer(cfg.Analyzer)
	if err != nil {
		return err
	}

	sink, err := notify.FromConfig(cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("failed to build notification sink: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Gateway:    pipeline.GatewayFromStore(st),
		Analyzer:   anl,
		Sink:       sink,
		Logger:     logger,
		Metrics:    collector,
		MaxRetries: cfg.Pipeline.MaxRetries,
		BaseDelay:  cfg.Pipeline.BaseDelay,
		MaxDelay:   cfg.Pipeline.MaxDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	mgr := shutdown.New(cfg.ShutdownTimeout, logger)

	// Terminally failed jobs go to the dead letter journal so they survive
	// process restarts for inspection.
	process := pipe.Process
	if cfg.DeadLetter != nil && cfg.DeadLetter.Enabled {
		journal, err := dlq.Open(cfg.DeadLetter.Dir)
		if err != nil {
			return fmt.Errorf("failed to open dead letter journal: %w", err)
		}
		mgr.Register("dead-letter-journal", func(context.Context) error {
			return journal.Close()
		})

		process = func(ctx context.Context, rawLogID string) types.ProcessingResult {
			result := pipe.Process(ctx, rawLogID)
			if !result.Success {
				if err := journal.Record(result); err != nil {
					logger.Error().Err(err).Str("job_id", rawLogID).Msg("journal write failed")
				} else {
					collector.DeadLetterWritten.Inc()
				}
			}
			return result
		}
	}

	var pool *worker.Pool
	if cfg.Workers != nil {
		pool = worker.NewPool(worker.Config{
			NumWorkers: cfg.Workers.NumWorkers,
			QueueSize:  cfg.Workers.QueueSize,
		}, process, logger, collector)
		mgr.Register("worker-pool", pool.Stop)
	}

	metricsPath := ""
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		collector.StartSystemCollection(0, mgr.Triggered())
	}

	srv := server.New(server.Options{
		Config:      cfg.Server,
		Store:       st,
		Pipeline:    pipe,
		Pool:        pool,
		Logger:      logger,
		Metrics:     collector,
		MetricsPath: metricsPath,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	mgr.Register("http-server", srv.Stop)
	mgr.Register("notification-sink", func(context.Context) error {
		return sink.Close()
	})
	mgr.Register("store", func(context.Context) error {
		return st.Close()
	})

	mgr.WaitForSignal()
	logger.Info().Msg("sentinel stopped")
	return nil
}

func buildAnalyzer(cfg config.AnalyzerConfig) (analyzer.Analyzer, error) {
	switch cfg.Provider {
	case "llm":
		return analyzer.NewLLM(analyzer.LLMConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Timeout:  cfg.Timeout,
		})
	default:
		return analyzer.NewHeuristic(), nil
	}
}
