package pipeline

import (
	"sync"
	"time"
)

// maxTimingSamples caps the retained timing series. Aggregates (count, sum,
// min, max) keep counting past the cap so derived metrics stay exact.
const maxTimingSamples = 4096

// Stats holds cumulative pipeline counters. All methods are safe for
// concurrent use; jobs running in parallel update the same instance.
type Stats struct {
	mu sync.RWMutex

	totalTasks      int64
	successfulTasks int64
	failedTasks     int64
	retriedTasks    int64

	durations     []time.Duration
	durationCount int64
	durationSum   time.Duration
	durationMin   time.Duration
	durationMax   time.Duration

	entriesProcessed  int64
	broadcastsSent    int64
	broadcastFailures int64
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) taskStarted() {
	s.mu.Lock()
	s.totalTasks++
	s.mu.Unlock()
}

func (s *Stats) taskSucceeded(elapsed time.Duration, retried bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.successfulTasks++
	if retried {
		s.retriedTasks++
	}

	if len(s.durations) < maxTimingSamples {
		s.durations = append(s.durations, elapsed)
	}
	s.durationCount++
	s.durationSum += elapsed
	if s.durationMin == 0 || elapsed < s.durationMin {
		s.durationMin = elapsed
	}
	if elapsed > s.durationMax {
		s.durationMax = elapsed
	}
}

func (s *Stats) taskFailed() {
	s.mu.Lock()
	s.failedTasks++
	s.mu.Unlock()
}

func (s *Stats) entryProcessed() {
	s.mu.Lock()
	s.entriesProcessed++
	s.mu.Unlock()
}

func (s *Stats) broadcastSent() {
	s.mu.Lock()
	s.broadcastsSent++
	s.mu.Unlock()
}

func (s *Stats) broadcastFailed() {
	s.mu.Lock()
	s.broadcastFailures++
	s.mu.Unlock()
}

// RealtimeStats covers the streaming-entry pipeline.
type RealtimeStats struct {
	EntriesProcessed     int64   `json:"entries_processed"`
	BroadcastsSent       int64   `json:"broadcasts_sent"`
	BroadcastFailures    int64   `json:"broadcast_failures"`
	BroadcastSuccessRate float64 `json:"broadcast_success_rate"`
}

// StatsSnapshot is a consistent point-in-time copy of all counters plus the
// metrics derived from them.
type StatsSnapshot struct {
	TotalTasks      int64 `json:"total_tasks"`
	SuccessfulTasks int64 `json:"successful_tasks"`
	FailedTasks     int64 `json:"failed_tasks"`
	RetriedTasks    int64 `json:"retried_tasks"`

	SuccessRate       float64       `json:"success_rate"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	TimingSamples     int64         `json:"timing_samples"`

	Realtime RealtimeStats `json:"realtime"`
}

// Snapshot derives rates and timing aggregates under one lock acquisition,
// so a concurrent Reset is never observed halfway.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		TotalTasks:      s.totalTasks,
		SuccessfulTasks: s.successfulTasks,
		FailedTasks:     s.failedTasks,
		RetriedTasks:    s.retriedTasks,
		TimingSamples:   s.durationCount,
		Realtime: RealtimeStats{
			EntriesProcessed:  s.entriesProcessed,
			BroadcastsSent:    s.broadcastsSent,
			BroadcastFailures: s.broadcastFailures,
		},
	}

	if s.totalTasks > 0 {
		snap.SuccessRate = float64(s.successfulTasks) / float64(s.totalTasks)
	}
	if s.durationCount > 0 {
		snap.AvgProcessingTime = s.durationSum / time.Duration(s.durationCount)
		snap.MinProcessingTime = s.durationMin
		snap.MaxProcessingTime = s.durationMax
	}

	totalBroadcasts := s.broadcastsSent + s.broadcastFailures
	if totalBroadcasts > 0 {
		snap.Realtime.BroadcastSuccessRate = float64(s.broadcastsSent) / float64(totalBroadcasts)
	}

	return snap
}

// Reset zeroes every counter and drops the timing series in one critical
// section; readers see either the old state or all zeros, never a mix.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalTasks = 0
	s.successfulTasks = 0
	s.failedTasks = 0
	s.retriedTasks = 0
	s.durations = nil
	s.durationCount = 0
	s.durationSum = 0
	s.durationMin = 0
	s.durationMax = 0
	s.entriesProcessed = 0
	s.broadcastsSent = 0
	s.broadcastFailures = 0
}
