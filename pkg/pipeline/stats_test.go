package pipeline

import (
	"testing"
	"time"

	"github.com/go-weave/weave/pkg/errors"
)

func TestFrameStatsCounters(t *testing.T) {
	s := NewFrameStats(4)
	s.RecordFrame(10 * time.Millisecond)
	s.RecordFrame(20 * time.Millisecond)
	s.RecordSkip()
	s.RecordError(errors.PhaseBuild)
	s.RecordError(errors.PhaseBuild)
	s.RecordError(errors.PhaseLayout)

	if got := s.Frames(); got != 2 {
		t.Errorf("Frames() = %d, want 2", got)
	}
	if got := s.Skipped(); got != 1 {
		t.Errorf("Skipped() = %d, want 1", got)
	}
	if got := s.ErrorCount(errors.PhaseBuild); got != 2 {
		t.Errorf("build errors = %d, want 2", got)
	}
	if got := s.ErrorCount(errors.PhasePaint); got != 0 {
		t.Errorf("paint errors = %d, want 0", got)
	}
	if got := s.AverageDuration(); got != 15*time.Millisecond {
		t.Errorf("AverageDuration() = %v, want 15ms", got)
	}
}

func TestFrameStatsRollingWindowDropsOldDurations(t *testing.T) {
	s := NewFrameStats(3)
	for _, d := range []time.Duration{
		100 * time.Millisecond, // evicted once the window wraps
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
	} {
		s.RecordFrame(d)
	}
	if got := s.AverageDuration(); got != 20*time.Millisecond {
		t.Errorf("AverageDuration() = %v, want 20ms over the last three frames", got)
	}
}

func TestFrameStatsSnapshot(t *testing.T) {
	s := NewFrameStats(8)
	s.RecordFrame(5 * time.Millisecond)
	s.RecordFrame(25 * time.Millisecond)
	s.RecordError(errors.PhaseCancelled)

	snap := s.Snapshot()
	if snap.Frames != 2 || snap.Skipped != 0 {
		t.Errorf("snapshot counters = %d/%d, want 2/0", snap.Frames, snap.Skipped)
	}
	if snap.AverageDuration != 15*time.Millisecond {
		t.Errorf("snapshot average = %v, want 15ms", snap.AverageDuration)
	}
	if snap.WorstDuration != 25*time.Millisecond {
		t.Errorf("snapshot worst = %v, want 25ms", snap.WorstDuration)
	}
	if snap.ErrorsByPhase[errors.PhaseCancelled] != 1 {
		t.Errorf("snapshot cancelled errors = %d, want 1", snap.ErrorsByPhase[errors.PhaseCancelled])
	}

	// The copy is detached from the live collector.
	snap.ErrorsByPhase[errors.PhaseBuild] = 99
	if got := s.ErrorCount(errors.PhaseBuild); got != 0 {
		t.Errorf("mutating the snapshot leaked into the collector: %d", got)
	}
}

func TestFrameStatsZeroWindowUsesDefault(t *testing.T) {
	s := NewFrameStats(0)
	if got := len(s.durations); got != defaultStatsWindow {
		t.Errorf("window = %d, want %d", got, defaultStatsWindow)
	}
	if got := s.AverageDuration(); got != 0 {
		t.Errorf("AverageDuration() on empty stats = %v, want 0", got)
	}
}
