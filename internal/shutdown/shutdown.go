package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sentinel-logs/sentinel/internal/logging"
)

// StopFunc performs cleanup for one component during shutdown.
type StopFunc func(context.Context) error

// Manager coordinates graceful shutdown: components register stop functions,
// and on SIGINT/SIGTERM they all run in parallel under one timeout.
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration

	mu    sync.Mutex
	stops []stopEntry

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

type stopEntry struct {
	name string
	fn   StopFunc
}

// New creates a shutdown manager.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		logger:     logger.WithComponent("shutdown"),
		timeout:    timeout,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register adds a named stop function. Functions run in parallel on
// shutdown; registration order carries no ordering guarantee.
func (m *Manager) Register(name string, fn StopFunc) {
	m.mu.Lock()
	m.stops = append(m.stops, stopEntry{name: name, fn: fn})
	m.mu.Unlock()
	m.logger.Debug().Str("component", name).Msg("registered for shutdown")
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives, then shuts down.
func (m *Manager) WaitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		m.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		m.Shutdown()
	case <-m.shutdownCh:
	}
}

// Shutdown runs every registered stop function once. Safe to call from
// multiple goroutines; only the first call does the work.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
		m.run()
	})
	<-m.done
}

func (m *Manager) run() {
	m.mu.Lock()
	stops := make([]stopEntry, len(m.stops))
	copy(stops, m.stops)
	m.mu.Unlock()

	m.logger.Info().
		Dur("timeout", m.timeout).
		Int("components", len(stops)).
		Msg("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, entry := range stops {
		wg.Add(1)
		go func(e stopEntry) {
			defer wg.Done()
			if err := e.fn(ctx); err != nil {
				m.logger.Error().Err(err).Str("component", e.name).Msg("component stop failed")
			}
		}(entry)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info().Msg("graceful shutdown completed")
	case <-ctx.Done():
		m.logger.Warn().Dur("timeout", m.timeout).Msg("graceful shutdown timed out")
	}

	close(m.done)
}

// Triggered returns a channel closed when shutdown begins.
func (m *Manager) Triggered() <-chan struct{} {
	return m.shutdownCh
}
