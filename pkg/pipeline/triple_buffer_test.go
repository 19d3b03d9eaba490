package pipeline

import (
	"sync"
	"testing"

	"github.com/go-weave/weave/pkg/rendering"
)

func recordedFrame() *rendering.DisplayList {
	var recorder rendering.PictureRecorder
	canvas := recorder.BeginRecording(rendering.Size{Width: 1, Height: 1})
	canvas.Clear(rendering.ColorWhite)
	return recorder.EndRecording()
}

func TestTripleBufferEmptyAcquire(t *testing.T) {
	b := NewTripleBuffer()
	if frame, fresh := b.Acquire(); frame != nil || fresh {
		t.Fatalf("Acquire on empty buffer = %v, %v; want nil, false", frame, fresh)
	}
}

func TestTripleBufferLatestWins(t *testing.T) {
	b := NewTripleBuffer()
	first := recordedFrame()
	second := recordedFrame()

	b.Publish(first)
	b.Publish(second)

	frame, fresh := b.Acquire()
	if !fresh {
		t.Fatal("expected a fresh frame")
	}
	if frame != second {
		t.Error("expected the later frame; the earlier one should have been dropped")
	}

	frame, fresh = b.Acquire()
	if fresh {
		t.Error("second Acquire reported fresh with nothing published")
	}
	if frame != second {
		t.Error("repeat Acquire returned a different frame")
	}
}

func TestTripleBufferAlternatingHandoff(t *testing.T) {
	b := NewTripleBuffer()
	for i := 0; i < 100; i++ {
		frame := recordedFrame()
		b.Publish(frame)
		got, fresh := b.Acquire()
		if !fresh || got != frame {
			t.Fatalf("round %d: Acquire = %p, %v; want %p, true", i, got, fresh, frame)
		}
	}
}

// TestTripleBufferConcurrent hammers the buffer from one producer and one
// consumer. The consumer must only ever observe frames in publish order,
// never block, and eventually see the last frame.
func TestTripleBufferConcurrent(t *testing.T) {
	const total = 10000

	frames := make([]*rendering.DisplayList, total)
	sequence := make(map[*rendering.DisplayList]int, total)
	for i := range frames {
		frames[i] = recordedFrame()
		sequence[frames[i]] = i
	}

	b := NewTripleBuffer()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for _, frame := range frames {
			b.Publish(frame)
		}
	}()

	go func() {
		defer wg.Done()
		last := -1
		for {
			frame, fresh := b.Acquire()
			if !fresh {
				continue
			}
			seq := sequence[frame]
			if seq < last {
				t.Errorf("observed frame %d after frame %d", seq, last)
				return
			}
			last = seq
			if seq == total-1 {
				return
			}
		}
	}()

	wg.Wait()

	frame, _ := b.Acquire()
	if frame != frames[total-1] {
		t.Errorf("final frame = %d, want %d", sequence[frame], total-1)
	}
}
