package pipeline

import (
	"sync"
	"time"

	"github.com/go-weave/weave/pkg/errors"
)

const defaultStatsWindow = 120

// FrameStats counts frames and failures and keeps a rolling window of
// frame durations for budget tracking.
type FrameStats struct {
	mu      sync.Mutex
	frames  uint64
	skipped uint64
	byPhase map[errors.Phase]uint64

	durations []time.Duration
	next      int
	filled    int
}

// StatsSnapshot is a point-in-time copy of the collected statistics.
type StatsSnapshot struct {
	Frames          uint64
	Skipped         uint64
	ErrorsByPhase   map[errors.Phase]uint64
	AverageDuration time.Duration
	WorstDuration   time.Duration
}

// NewFrameStats creates a collector with a rolling window of the given
// size. Non-positive windows fall back to the default.
func NewFrameStats(window int) *FrameStats {
	if window <= 0 {
		window = defaultStatsWindow
	}
	return &FrameStats{
		byPhase:   make(map[errors.Phase]uint64),
		durations: make([]time.Duration, window),
	}
}

// RecordFrame counts one completed frame and its duration.
func (s *FrameStats) RecordFrame(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.durations[s.next] = d
	s.next = (s.next + 1) % len(s.durations)
	if s.filled < len(s.durations) {
		s.filled++
	}
}

// RecordSkip counts one frame abandoned by recovery policy.
func (s *FrameStats) RecordSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// RecordError counts one recoverable failure in the given phase.
func (s *FrameStats) RecordError(phase errors.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPhase[phase]++
}

// Frames returns the number of completed frames.
func (s *FrameStats) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Skipped returns the number of abandoned frames.
func (s *FrameStats) Skipped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// ErrorCount returns the number of recoverable failures in phase.
func (s *FrameStats) ErrorCount(phase errors.Phase) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byPhase[phase]
}

// AverageDuration returns the mean frame duration over the window, or
// zero before any frame completed.
func (s *FrameStats) AverageDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.average()
}

func (s *FrameStats) average() time.Duration {
	if s.filled == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < s.filled; i++ {
		total += s.durations[i]
	}
	return total / time.Duration(s.filled)
}

// Snapshot copies every statistic at once, under one lock acquisition.
func (s *FrameStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPhase := make(map[errors.Phase]uint64, len(s.byPhase))
	for phase, n := range s.byPhase {
		byPhase[phase] = n
	}
	var worst time.Duration
	for i := 0; i < s.filled; i++ {
		if s.durations[i] > worst {
			worst = s.durations[i]
		}
	}
	return StatsSnapshot{
		Frames:          s.frames,
		Skipped:         s.skipped,
		ErrorsByPhase:   byPhase,
		AverageDuration: s.average(),
		WorstDuration:   worst,
	}
}
