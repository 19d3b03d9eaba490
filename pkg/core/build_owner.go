package core

import (
	"slices"
	"sync"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
)

// minBuildPasses bounds rebuild cascades in shallow trees, where depth
// alone would allow almost no forward progress.
const minBuildPasses = 8

// BuildOwner collects the elements awaiting rebuild. Scheduling is safe
// from any goroutine; BuildScope runs on the frame production goroutine.
type BuildOwner struct {
	mu       sync.Mutex
	dirty    []dirtyEntry
	dirtySet map[identity.ID]bool

	generation uint64

	// OnNeedsFrame fires when the first element of an idle owner is
	// scheduled, so pacing layers can request a frame on demand instead
	// of polling.
	OnNeedsFrame func()
}

type dirtyEntry struct {
	id    identity.ID
	depth int
}

// NewBuildOwner creates an empty build owner.
func NewBuildOwner() *BuildOwner {
	return &BuildOwner{dirtySet: make(map[identity.ID]bool)}
}

// ScheduleBuild queues an element for the next build scope. Duplicate
// schedules of an already-pending element are dropped.
func (b *BuildOwner) ScheduleBuild(id identity.ID, depth int) {
	b.mu.Lock()
	if b.dirtySet[id] {
		b.mu.Unlock()
		return
	}
	if b.dirtySet == nil {
		b.dirtySet = make(map[identity.ID]bool)
	}
	b.dirtySet[id] = true
	b.dirty = append(b.dirty, dirtyEntry{id: id, depth: depth})
	needsFrame := len(b.dirty) == 1
	b.mu.Unlock()

	if needsFrame && b.OnNeedsFrame != nil {
		b.OnNeedsFrame()
	}
}

// NeedsBuild reports whether any element awaits rebuilding.
func (b *BuildOwner) NeedsBuild() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.dirty) > 0
}

// BuildScope rebuilds dirty elements to a fixed point. Each pass drains the
// pending set in depth order, parents first, so a parent's rebuild can
// clean its children before they are visited; elements legally re-marked
// during a pass are picked up by the next one. A cascade that outruns the
// tree's depth is a rebuild cycle and fails fast rather than spinning.
//
// Postcondition on success: no dirty elements remain.
func (b *BuildOwner) BuildScope(tree *Tree) error {
	passes := 0
	for {
		b.mu.Lock()
		if len(b.dirty) == 0 {
			b.mu.Unlock()
			return nil
		}
		batch := b.dirty
		b.dirty = nil
		clear(b.dirtySet)
		b.generation++
		generation := b.generation
		b.mu.Unlock()

		passes++
		if limit := max(minBuildPasses, tree.maxDepth()+1); passes > limit {
			errors.ProtocolViolation("build scope did not settle after %d passes", passes)
		}

		slices.SortFunc(batch, func(a, c dirtyEntry) int {
			return a.depth - c.depth
		})

		for i, entry := range batch {
			e := tree.ElementOf(entry.id)
			if e == nil || e.builtGeneration == generation {
				continue
			}
			e.builtGeneration = generation
			if err := tree.rebuildElement(e); err != nil {
				b.requeueAborted(tree, e, batch[i+1:])
				return err
			}
		}
	}
}

// requeueAborted puts an aborted scope's work back in line: the failing
// element is re-marked so the next scope retries it, and entries the
// batch never reached keep their pending status instead of starving.
func (b *BuildOwner) requeueAborted(tree *Tree, failed *Element, remainder []dirtyEntry) {
	failed.dirty = true
	b.ScheduleBuild(failed.id, failed.depth)
	for _, entry := range remainder {
		if e := tree.ElementOf(entry.id); e != nil && e.dirty {
			b.ScheduleBuild(entry.id, entry.depth)
		}
	}
}

// maxDepth returns the deepest live element's depth.
func (t *Tree) maxDepth() int {
	depth := 0
	for _, e := range t.elements {
		if e.depth > depth {
			depth = e.depth
		}
	}
	return depth
}
