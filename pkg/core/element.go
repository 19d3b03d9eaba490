package core

import (
	"fmt"

	"github.com/go-weave/weave/pkg/identity"
)

// Lifecycle is the element state machine. The only legal transitions are
// Initial to Active, Active to Inactive, Inactive back to Active or on to
// Defunct, and Active straight to Defunct. Nothing leaves Defunct.
type Lifecycle int

const (
	// LifecycleInitial is an allocated element that has not mounted.
	LifecycleInitial Lifecycle = iota
	// LifecycleActive is a mounted element participating in builds.
	LifecycleActive
	// LifecycleInactive is a deactivated element retained with its state
	// for possible reinsertion.
	LifecycleInactive
	// LifecycleDefunct is an unmounted element. Terminal.
	LifecycleDefunct
)

// String returns a human-readable representation of the lifecycle state.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleInitial:
		return "initial"
	case LifecycleActive:
		return "active"
	case LifecycleInactive:
		return "inactive"
	case LifecycleDefunct:
		return "defunct"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// Element is one arena entry of the element tree: the persistent identity
// behind a sequence of widget configurations.
type Element struct {
	id       identity.ID
	widget   Widget
	parent   identity.ID
	children []identity.ID
	depth    int
	slot     int

	lifecycle Lifecycle
	dirty     bool

	// renderNode is the backing layout-tree node for render and sliver
	// widgets, identity.None for composition-only elements.
	renderNode identity.ID

	// builtGeneration is the BuildScope generation this element last
	// rebuilt in, used to bound work to once per pass.
	builtGeneration uint64

	hooks hookFrame

	// dependencies lists the inherited elements this element registered
	// with, so registrations can be dropped on deactivate and unmount.
	dependencies []identity.ID

	// dependents is populated only on elements hosting an InheritedWidget.
	dependents map[identity.ID]struct{}
}

// ID returns the element's identifier.
func (e *Element) ID() identity.ID { return e.id }

// Widget returns the current configuration.
func (e *Element) Widget() Widget { return e.widget }

// Parent returns the parent identifier, or identity.None at the root and
// on detached elements.
func (e *Element) Parent() identity.ID { return e.parent }

// Children returns the child identifiers in slot order.
func (e *Element) Children() []identity.ID { return e.children }

// Depth returns the tree depth (root = 0).
func (e *Element) Depth() int { return e.depth }

// Lifecycle returns the element's state machine position.
func (e *Element) Lifecycle() Lifecycle { return e.lifecycle }

// Dirty reports whether the element awaits a rebuild.
func (e *Element) Dirty() bool { return e.dirty }

// RenderNode returns the backing render node identifier, or identity.None
// for composition-only elements.
func (e *Element) RenderNode() identity.ID { return e.renderNode }
