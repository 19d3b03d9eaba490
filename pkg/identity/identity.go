// Package identity issues unique identifiers for tree nodes.
//
// Every element and render node in a weave tree is addressed by an [ID]
// handed out by an [Allocator]. IDs are unique for the lifetime of the
// process, never reused, and their numeric order matches creation order,
// so "was a created before b" is recoverable by comparison.
package identity

import "sync/atomic"

// ID is an opaque token naming one tree node.
//
// The zero value is [None] and never names a real node. IDs are copyable
// and totally ordered; callers must not construct them from integers.
type ID uint64

// None is the absent identifier. Parent links of root nodes hold None.
const None ID = 0

// IsNone reports whether the ID names no node.
func (id ID) IsNone() bool {
	return id == None
}

// Before reports whether this ID was allocated before other.
func (id ID) Before(other ID) bool {
	return id < other
}

// Allocator hands out IDs. The zero value is ready to use and safe to
// share between goroutines.
//
// Trees take an allocator value rather than reaching for a global so that
// independent trees (tests, multiple UI roots) can coexist; DefaultAllocator
// exists for the common single-tree case.
type Allocator struct {
	last atomic.Uint64
}

// Next returns a fresh ID. It never returns None and never repeats.
func (a *Allocator) Next() ID {
	return ID(a.last.Add(1))
}

// Issued returns how many IDs this allocator has handed out.
func (a *Allocator) Issued() uint64 {
	return a.last.Load()
}

// DefaultAllocator is the process-wide allocator used when callers do not
// supply their own.
var DefaultAllocator = &Allocator{}
