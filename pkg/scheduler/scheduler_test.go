package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestFrameIntervalIntegerMicroseconds(t *testing.T) {
	cases := []struct {
		rate int
		want time.Duration
	}{
		{60, 16666 * time.Microsecond},
		{120, 8333 * time.Microsecond},
		{144, 6944 * time.Microsecond},
		{30, 33333 * time.Microsecond},
		{0, 16666 * time.Microsecond},  // invalid rate falls back to 60 Hz
		{-5, 16666 * time.Microsecond}, // likewise
	}
	for _, tc := range cases {
		if got := New(tc.rate).FrameInterval(); got != tc.want {
			t.Errorf("New(%d).FrameInterval() = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestSignalVsyncInvokesCallback(t *testing.T) {
	s := New(60)
	var stamps []time.Time
	s.SetCallback(func(now time.Time) { stamps = append(stamps, now) })

	base := time.Unix(1000, 0)
	s.SignalVsync(base)
	s.SignalVsync(base.Add(16 * time.Millisecond))

	if len(stamps) != 2 {
		t.Fatalf("callback ran %d times, want 2", len(stamps))
	}
	if stamps[1] != base.Add(16*time.Millisecond) {
		t.Errorf("callback timestamp = %v, want signal time", stamps[1])
	}
}

func TestAverageIntervalTracksSignals(t *testing.T) {
	s := New(60)
	if got := s.AverageInterval(); got != 0 {
		t.Fatalf("AverageInterval() before signals = %v, want 0", got)
	}

	base := time.Unix(1000, 0)
	s.SignalVsync(base)
	s.SignalVsync(base.Add(16 * time.Millisecond))
	s.SignalVsync(base.Add(48 * time.Millisecond)) // 32ms gap

	if got := s.AverageInterval(); got != 24*time.Millisecond {
		t.Errorf("AverageInterval() = %v, want 24ms", got)
	}
}

func TestRollingWindowDropsOldIntervals(t *testing.T) {
	s := New(60)
	now := time.Unix(1000, 0)
	s.SignalVsync(now)

	// One slow interval followed by enough steady ones to wrap the ring.
	now = now.Add(500 * time.Millisecond)
	s.SignalVsync(now)
	for i := 0; i < ringSize; i++ {
		now = now.Add(10 * time.Millisecond)
		s.SignalVsync(now)
	}

	if got := s.AverageInterval(); got != 10*time.Millisecond {
		t.Errorf("AverageInterval() = %v, want 10ms once the slow interval aged out", got)
	}
}

func TestWithinBudget(t *testing.T) {
	s := New(60) // 16666µs target, 833µs tolerance

	if !s.WithinBudget() {
		t.Error("WithinBudget() = false with no samples")
	}

	base := time.Unix(1000, 0)
	s.SignalVsync(base)
	s.SignalVsync(base.Add(16 * time.Millisecond)) // 666µs under target
	if !s.WithinBudget() {
		t.Error("WithinBudget() = false at 16ms against a 16.666ms target")
	}

	for i := 2; i <= ringSize+1; i++ {
		s.SignalVsync(base.Add(time.Duration(i) * 20 * time.Millisecond))
	}
	if s.WithinBudget() {
		t.Error("WithinBudget() = true with every interval at 20ms")
	}
}

func TestWaitModes(t *testing.T) {
	ctx := context.Background()

	t.Run("no-wait returns immediately", func(t *testing.T) {
		s := New(10) // 100ms interval, far above any scheduling noise
		s.SetMode(ModeNoWait)
		start := time.Now()
		if err := s.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("no-wait slept %v", elapsed)
		}
	})

	t.Run("wait-for-signal sleeps out the interval", func(t *testing.T) {
		s := New(100) // 10ms interval
		s.SignalVsync(time.Now())
		start := time.Now()
		if err := s.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
			t.Errorf("wait-for-signal returned after %v, want ~10ms", elapsed)
		}
	})

	t.Run("adaptive skips the sleep when over budget", func(t *testing.T) {
		s := New(10) // 100ms interval
		s.SetMode(ModeAdaptive)
		base := time.Unix(1000, 0)
		s.SignalVsync(base)
		s.SignalVsync(base.Add(300 * time.Millisecond)) // far over budget

		start := time.Now()
		if err := s.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("adaptive slept %v while over budget", elapsed)
		}
	})
}

func TestWaitHonorsCancellation(t *testing.T) {
	s := New(1) // 1s interval, never reached
	s.SignalVsync(time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait on cancelled context = %v, want context.Canceled", err)
	}
}

func TestRunDrivesCallbackUntilDone(t *testing.T) {
	s := New(1000) // 1ms interval
	ticks := make(chan time.Time, 256)
	s.SetCallback(func(now time.Time) { ticks <- now })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := <-done; err != context.DeadlineExceeded {
		t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
	}
	if len(ticks) < 5 {
		t.Errorf("callback fired %d times in 60ms at 1000Hz, want at least 5", len(ticks))
	}
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"wait-for-signal", "no-wait", "adaptive"} {
		mode, err := ParseMode(name)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", name, err)
		}
		if mode.String() != name {
			t.Errorf("(%v).String() = %q, want %q", mode, mode.String(), name)
		}
	}
	if _, err := ParseMode("psychic"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}
