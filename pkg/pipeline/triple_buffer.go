package pipeline

import (
	"sync/atomic"

	"github.com/go-weave/weave/pkg/rendering"
)

const (
	middleIndex uint32 = 0x3
	middleFresh uint32 = 0x4
)

// TripleBuffer hands finished frames from the frame goroutine to a
// display consumer. One slot belongs to the producer, one to the
// consumer, and the middle slot is exchanged atomically, so neither side
// ever waits on the other. A frame published before the consumer read
// the previous one simply replaces it: drop old, never queue.
type TripleBuffer struct {
	slots  [3]atomic.Pointer[rendering.DisplayList]
	middle atomic.Uint32

	back  int // producer-owned slot, producer goroutine only
	front int // consumer-owned slot, consumer goroutine only
}

// NewTripleBuffer creates an empty buffer. Acquire before any Publish
// returns nil and false.
func NewTripleBuffer() *TripleBuffer {
	b := &TripleBuffer{back: 0, front: 2}
	b.middle.Store(1)
	return b
}

// Publish makes frame the latest visible frame. Producer side only.
func (b *TripleBuffer) Publish(frame *rendering.DisplayList) {
	b.slots[b.back].Store(frame)
	old := b.middle.Swap(uint32(b.back) | middleFresh)
	b.back = int(old & middleIndex)
}

// Acquire returns the most recent published frame. Fresh reports whether
// it is new since the previous Acquire; when false the frame is the same
// one the caller already holds. Consumer side only.
func (b *TripleBuffer) Acquire() (frame *rendering.DisplayList, fresh bool) {
	if b.middle.Load()&middleFresh == 0 {
		return b.slots[b.front].Load(), false
	}
	old := b.middle.Swap(uint32(b.front))
	b.front = int(old & middleIndex)
	return b.slots[b.front].Load(), true
}
