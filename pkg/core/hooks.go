package core

import (
	"reflect"
	"sync"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
)

// Hooks attach per-element state to build functions. Slots are addressed by
// call order, so every build of an element must execute the same hooks in
// the same sequence; conditional hooks break the contract and panic.

// hookFrame is the per-element slot storage. The mutex covers slot reads
// and writes so setters fired from other goroutines stay safe against the
// building goroutine.
type hookFrame struct {
	mu     sync.Mutex
	slots  []any
	cursor int
	sealed bool // slot count fixed after the first complete build
}

func (f *hookFrame) begin() {
	f.mu.Lock()
	f.cursor = 0
	f.mu.Unlock()
}

func (f *hookFrame) finish(owner identity.ID) {
	f.mu.Lock()
	used := f.cursor
	total := len(f.slots)
	sealed := f.sealed
	f.sealed = true
	f.mu.Unlock()

	if sealed && used != total {
		errors.ProtocolViolation("element %d ran %d hooks, previous build ran %d", owner, used, total)
	}
}

// next claims the slot at the cursor. make allocates a fresh slot on first
// use; a type mismatch on reuse means the call order changed.
func (f *hookFrame) next(owner identity.ID, kind string, make func() any) any {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cursor < len(f.slots) {
		slot := f.slots[f.cursor]
		f.cursor++
		return slot
	}
	if f.sealed {
		errors.ProtocolViolation("element %d grew a %s hook after its first build", owner, kind)
	}
	slot := make()
	f.slots = append(f.slots, slot)
	f.cursor++
	return slot
}

// dispose runs effect cleanups in reverse registration order and drops all
// slots. Called once at unmount.
func (f *hookFrame) dispose() {
	f.mu.Lock()
	slots := f.slots
	f.slots = nil
	f.cursor = 0
	f.mu.Unlock()

	for i := len(slots) - 1; i >= 0; i-- {
		if effect, ok := slots[i].(*effectSlot); ok && effect.cleanup != nil {
			effect.cleanup()
			effect.cleanup = nil
		}
	}
}

type stateSlot[T any] struct {
	value T
}

type memoSlot[T any] struct {
	value T
	deps  []any
	valid bool
}

type effectSlot struct {
	cleanup func()
	deps    []any
	ran     bool
}

// UseState reads the slot's current value and returns a setter that stores
// a new one and schedules a rebuild of the owning element. The initial
// value is used only the first time the slot is created.
func UseState[T any](ctx *BuildContext, initial T) (T, func(T)) {
	e := ctx.element
	tree := ctx.tree

	raw := e.hooks.next(e.id, "state", func() any {
		return &stateSlot[T]{value: initial}
	})
	slot, ok := raw.(*stateSlot[T])
	if !ok {
		errors.ProtocolViolation("element %d hook order changed: found %T, expected state[%s]",
			e.id, raw, reflect.TypeFor[T]())
	}

	e.hooks.mu.Lock()
	value := slot.value
	e.hooks.mu.Unlock()

	id := e.id
	setter := func(next T) {
		e.hooks.mu.Lock()
		slot.value = next
		e.hooks.mu.Unlock()
		tree.MarkNeedsBuild(id)
	}
	return value, setter
}

// UseMemo returns a derived value, recomputing only when deps change.
// Deps are compared structurally.
func UseMemo[T any](ctx *BuildContext, compute func() T, deps ...any) T {
	e := ctx.element

	raw := e.hooks.next(e.id, "memo", func() any {
		return &memoSlot[T]{}
	})
	slot, ok := raw.(*memoSlot[T])
	if !ok {
		errors.ProtocolViolation("element %d hook order changed: found %T, expected memo[%s]",
			e.id, raw, reflect.TypeFor[T]())
	}

	if !slot.valid || !reflect.DeepEqual(slot.deps, deps) {
		slot.value = compute()
		slot.deps = deps
		slot.valid = true
	}
	return slot.value
}

// UseEffect runs a side effect when deps change, invoking the previous
// run's cleanup first. The final cleanup runs at unmount. Passing no deps
// runs the effect on every build.
func UseEffect(ctx *BuildContext, effect func() (cleanup func()), deps ...any) {
	e := ctx.element

	raw := e.hooks.next(e.id, "effect", func() any {
		return &effectSlot{}
	})
	slot, ok := raw.(*effectSlot)
	if !ok {
		errors.ProtocolViolation("element %d hook order changed: found %T, expected effect", e.id, raw)
	}

	rerun := !slot.ran || len(deps) == 0 || !reflect.DeepEqual(slot.deps, deps)
	if !rerun {
		return
	}
	if slot.cleanup != nil {
		slot.cleanup()
	}
	slot.cleanup = effect()
	slot.deps = deps
	slot.ran = true
}
