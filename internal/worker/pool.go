package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sentinel-logs/sentinel/internal/logging"
	"github.com/sentinel-logs/sentinel/internal/metrics"
	"github.com/sentinel-logs/sentinel/pkg/types"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("job queue is full")
)

// ProcessFunc runs the pipeline for one raw log id. It follows the pipeline
// contract: always a result record, never an error.
type ProcessFunc func(ctx context.Context, rawLogID string) types.ProcessingResult

// Config holds worker pool configuration.
type Config struct {
	NumWorkers int
	QueueSize  int
}

// Pool runs processing jobs for raw log ids in the background. It is the
// admission control in front of the pipeline: the pipeline itself accepts
// unlimited concurrent callers, the pool bounds them.
type Pool struct {
	process ProcessFunc
	queue   chan string
	logger  *logging.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobsSucceeded uint64
	jobsFailed    uint64
}

// NewPool creates a pool; call Start to launch the workers.
func NewPool(cfg Config, process ProcessFunc, logger *logging.Logger, collector *metrics.Collector) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		process: process,
		queue:   make(chan string, cfg.QueueSize),
		logger:  logger.WithComponent("worker-pool"),
		metrics: collector,
		ctx:     ctx,
		cancel:  cancel,
	}

	p.wg.Add(cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		go p.run(i)
	}

	return p
}

// Submit queues a raw log id for background processing without waiting for
// the result. A full queue rejects instead of blocking the caller.
func (p *Pool) Submit(rawLogID string) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
	}

	select {
	case p.queue <- rawLogID:
		p.metrics.WorkerQueueDepth.Set(float64(len(p.queue)))
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
		return ErrQueueFull
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case rawLogID, ok := <-p.queue:
			if !ok {
				return
			}
			p.metrics.WorkerQueueDepth.Set(float64(len(p.queue)))

			result := p.process(p.ctx, rawLogID)
			if result.Success {
				atomic.AddUint64(&p.jobsSucceeded, 1)
				p.metrics.WorkerJobsTotal.WithLabelValues("success").Inc()
			} else {
				atomic.AddUint64(&p.jobsFailed, 1)
				p.metrics.WorkerJobsTotal.WithLabelValues("failed").Inc()
				p.logger.Warn().
					Int("worker", id).
					Str("job_id", rawLogID).
					Str("error", result.Error).
					Msg("background job failed")
			}
		}
	}
}

// Stop drains in-flight jobs and shuts the workers down. Queued jobs that
// have not started yet are dropped.
func (p *Pool) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics reports pool counters.
type PoolMetrics struct {
	JobsSucceeded uint64 `json:"jobs_succeeded"`
	JobsFailed    uint64 `json:"jobs_failed"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// Metrics returns a snapshot of pool counters.
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		JobsSucceeded: atomic.LoadUint64(&p.jobsSucceeded),
		JobsFailed:    atomic.LoadUint64(&p.jobsFailed),
		QueueDepth:    len(p.queue),
		QueueCapacity: cap(p.queue),
	}
}
