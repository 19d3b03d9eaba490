// Package scheduler paces frame production against display refresh. The
// pipeline registers a callback; SignalVsync fires it and keeps interval
// statistics so callers can tell when frame production is falling behind
// the display.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ringSize is the number of recent vsync intervals kept for averaging.
const ringSize = 60

// defaultRefreshRate applies when a configured rate is missing or invalid.
const defaultRefreshRate = 60

// Mode selects how Wait paces the vsync loop.
type Mode int

const (
	// ModeWaitForSignal sleeps out the remainder of the frame interval.
	// No tearing, possible latency.
	ModeWaitForSignal Mode = iota
	// ModeNoWait never sleeps. Maximum throughput, tearing possible.
	ModeNoWait
	// ModeAdaptive sleeps only while the measured average is within
	// budget, and stops pacing as soon as frames start running long.
	ModeAdaptive
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeWaitForSignal:
		return "wait-for-signal"
	case ModeNoWait:
		return "no-wait"
	case ModeAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "wait-for-signal":
		return ModeWaitForSignal, nil
	case "no-wait":
		return ModeNoWait, nil
	case "adaptive":
		return ModeAdaptive, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown mode %q", name)
	}
}

// FrameCallback receives the vsync timestamp, once per signal.
type FrameCallback func(now time.Time)

// Scheduler tracks vsync timing for one display. SignalVsync may be
// called from a dedicated pacing goroutine while other goroutines query
// the statistics.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	mode     Mode
	callback FrameCallback

	lastSignal time.Time
	intervals  [ringSize]time.Duration
	next       int
	filled     int
}

// New creates a scheduler targeting refreshRate frames per second. The
// frame interval is the whole number of microseconds in one refresh, so
// 60 Hz yields exactly 16666 microseconds. Non-positive rates fall back
// to 60 Hz.
func New(refreshRate int) *Scheduler {
	if refreshRate <= 0 {
		refreshRate = defaultRefreshRate
	}
	micros := 1_000_000 / refreshRate
	return &Scheduler{
		interval: time.Duration(micros) * time.Microsecond,
		mode:     ModeWaitForSignal,
	}
}

// FrameInterval returns the target interval between frames.
func (s *Scheduler) FrameInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Mode returns the active pacing mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode changes the pacing mode, effective on the next Wait.
func (s *Scheduler) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// SetCallback registers the function invoked on every vsync signal.
func (s *Scheduler) SetCallback(cb FrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// SignalVsync records the time since the previous signal and invokes the
// registered callback with now. The callback runs outside the lock so it
// may call back into the scheduler.
func (s *Scheduler) SignalVsync(now time.Time) {
	s.mu.Lock()
	if !s.lastSignal.IsZero() {
		s.intervals[s.next] = now.Sub(s.lastSignal)
		s.next = (s.next + 1) % ringSize
		if s.filled < ringSize {
			s.filled++
		}
	}
	s.lastSignal = now
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(now)
	}
}

// AverageInterval returns the mean of the recorded vsync intervals, or
// zero before two signals have arrived.
func (s *Scheduler) AverageInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.average()
}

func (s *Scheduler) average() time.Duration {
	if s.filled == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < s.filled; i++ {
		total += s.intervals[i]
	}
	return total / time.Duration(s.filled)
}

// WithinBudget reports whether the measured average interval is within
// five percent of the target. With no samples yet it reports true.
func (s *Scheduler) WithinBudget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg := s.average()
	if avg == 0 {
		return true
	}
	tolerance := s.interval / 20
	delta := avg - s.interval
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

// Wait blocks per the active mode until the next frame should start, or
// until ctx is done. ModeNoWait returns immediately; ModeAdaptive waits
// only while WithinBudget holds.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	mode := s.mode
	interval := s.interval
	last := s.lastSignal
	s.mu.Unlock()

	switch mode {
	case ModeNoWait:
		return ctx.Err()
	case ModeAdaptive:
		if !s.WithinBudget() {
			return ctx.Err()
		}
	}

	remaining := interval
	if !last.IsZero() {
		remaining -= time.Since(last)
	}
	if remaining <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run signals vsync repeatedly, paced by Wait, until ctx is done. It is
// meant for a dedicated pacing goroutine; the frame callback runs on that
// goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.Wait(ctx); err != nil {
			return err
		}
		s.SignalVsync(time.Now())
	}
}
