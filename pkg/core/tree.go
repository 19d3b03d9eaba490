package core

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/layout"
)

// errBuildAborted is the sentinel a build scope returns when the error sink
// declines to recover. It carries no node detail; the sink already saw the
// underlying frame error.
var errBuildAborted = stderrors.New("core: build scope aborted")

// IsBuildAborted reports whether err is the build-scope abort sentinel.
func IsBuildAborted(err error) bool {
	return stderrors.Is(err, errBuildAborted)
}

// Tree is the arena of elements: the persistent identities that widget
// configurations flow through. It owns the binding between elements and
// their render nodes.
//
// The tree is mutated only by the frame production goroutine; cross-thread
// inspection goes through the pipeline's reader lock.
type Tree struct {
	alloc    *identity.Allocator
	elements map[identity.ID]*Element
	root     identity.ID

	render *layout.RenderTree
	owner  *BuildOwner

	sink layout.FrameErrorSink
}

// NewTree creates an empty element tree. The render tree receives this
// tree's render and sliver nodes; the owner collects dirty elements. A nil
// alloc uses the process-wide default allocator.
func NewTree(alloc *identity.Allocator, render *layout.RenderTree, owner *BuildOwner) *Tree {
	if alloc == nil {
		alloc = identity.DefaultAllocator
	}
	return &Tree{
		alloc:    alloc,
		elements: make(map[identity.ID]*Element),
		render:   render,
		owner:    owner,
	}
}

// SetErrorSink installs the recovery hook for per-element build failures.
// With no sink installed, failures abort the current build scope.
func (t *Tree) SetErrorSink(sink layout.FrameErrorSink) {
	t.sink = sink
}

// ElementOf returns the arena entry for id, or nil if id is not in this tree.
func (t *Tree) ElementOf(id identity.ID) *Element {
	return t.elements[id]
}

// Root returns the root element's identifier, or identity.None before one
// is mounted.
func (t *Tree) Root() identity.ID { return t.root }

// Len returns the number of live elements in the arena.
func (t *Tree) Len() int { return len(t.elements) }

// RenderTree returns the render tree this element tree feeds.
func (t *Tree) RenderTree() *layout.RenderTree { return t.render }

// Owner returns the build owner collecting this tree's dirty elements.
func (t *Tree) Owner() *BuildOwner { return t.owner }

// Mount inflates widget into a new element under parent at the given slot
// index. Pass identity.None as parent to mount the root. The new element is
// scheduled dirty; its subtree inflates during the next build scope.
func (t *Tree) Mount(widget Widget, parent identity.ID, slot int) (identity.ID, error) {
	if widget == nil {
		return identity.None, fmt.Errorf("core: mount of nil widget")
	}
	if !implementsContract(widget) {
		return identity.None, fmt.Errorf("core: widget %T implements no build contract", widget)
	}

	var parentEl *Element
	if parent.IsNone() {
		if !t.root.IsNone() {
			return identity.None, fmt.Errorf("core: tree already has root %d", t.root)
		}
	} else {
		parentEl = t.elements[parent]
		if parentEl == nil {
			return identity.None, fmt.Errorf("core: mount under missing parent %d", parent)
		}
	}

	e := &Element{
		id:        t.alloc.Next(),
		widget:    widget,
		parent:    parent,
		lifecycle: LifecycleInitial,
	}
	t.elements[e.id] = e

	if parentEl == nil {
		t.root = e.id
	} else {
		if slot < 0 || slot > len(parentEl.children) {
			slot = len(parentEl.children)
		}
		parentEl.children = slices.Insert(parentEl.children, slot, e.id)
		e.slot = slot
		e.depth = parentEl.depth + 1
	}
	e.lifecycle = LifecycleActive

	if err := t.createRenderBinding(e); err != nil {
		t.removeFromParent(e)
		delete(t.elements, e.id)
		if t.root == e.id {
			t.root = identity.None
		}
		return identity.None, err
	}
	if _, ok := widget.(InheritedWidget); ok {
		e.dependents = make(map[identity.ID]struct{})
	}

	t.MarkNeedsBuild(e.id)
	return e.id, nil
}

// Update replaces the element's configuration in place. The new widget must
// pass CanUpdate against the current one; reconciliation never morphs an
// element across widget types or keys.
func (t *Tree) Update(id identity.ID, widget Widget) error {
	e := t.elements[id]
	if e == nil {
		return fmt.Errorf("core: update of unknown element %d", id)
	}
	if e.lifecycle != LifecycleActive {
		return fmt.Errorf("core: update of %s element %d", e.lifecycle, id)
	}
	if !CanUpdate(e.widget, widget) {
		return fmt.Errorf("core: cannot update %T onto %T", widget, e.widget)
	}
	t.applyUpdate(e, widget)
	return nil
}

// applyUpdate installs a compatible widget and pushes the change to the
// render binding and to inherited dependents. Callers have already checked
// CanUpdate.
func (t *Tree) applyUpdate(e *Element, widget Widget) {
	old := e.widget
	e.widget = widget

	switch w := widget.(type) {
	case SliverWidget:
		if node := t.render.Node(e.renderNode); node != nil {
			w.UpdateSliverNode(node.Sliver())
			t.render.MarkNeedsLayout(e.renderNode)
		}
	case RenderWidget:
		if node := t.render.Node(e.renderNode); node != nil {
			w.UpdateRenderNode(node.Box())
			t.render.MarkNeedsLayout(e.renderNode)
		}
	case InheritedWidget:
		if w.UpdateShouldNotify(old.(InheritedWidget)) {
			t.notifyDependents(e)
		}
	}

	t.MarkNeedsBuild(e.id)
}

// MarkNeedsBuild flags the element for rebuild and hands it to the build
// owner. Inactive elements stay flagged and are scheduled on activation.
func (t *Tree) MarkNeedsBuild(id identity.ID) {
	e := t.elements[id]
	if e == nil || e.dirty {
		return
	}
	e.dirty = true
	if e.lifecycle == LifecycleActive && t.owner != nil {
		t.owner.ScheduleBuild(id, e.depth)
	}
}

// Deactivate detaches the subtree rooted at id without destroying it. The
// element's state, hooks and render nodes survive for a later Activate.
// Dependency registrations are dropped; rebuilding after activation
// re-registers them.
func (t *Tree) Deactivate(id identity.ID) {
	e := t.elements[id]
	if e == nil {
		errors.ProtocolViolation("deactivate of unknown element %d", id)
	}
	if e.lifecycle != LifecycleActive {
		errors.ProtocolViolation("deactivate of %s element %d", e.lifecycle, id)
	}
	// Deactivation exists for reparenting; the root has no parent to
	// return to and would be unreachable for Activate.
	if e.parent.IsNone() {
		errors.ProtocolViolation("deactivate of root element %d", id)
	}

	t.removeFromParent(e)
	for _, node := range t.renderFringe(e) {
		t.render.Detach(node)
	}
	t.walk(e, func(el *Element) {
		el.lifecycle = LifecycleInactive
		t.clearDependencies(el)
	})
}

// Activate reinserts a deactivated subtree under its remembered parent and
// marks it dirty so the next build scope refreshes it.
func (t *Tree) Activate(id identity.ID) {
	e := t.elements[id]
	if e == nil {
		errors.ProtocolViolation("activate of unknown element %d", id)
	}
	if e.lifecycle != LifecycleInactive {
		errors.ProtocolViolation("activate of %s element %d", e.lifecycle, id)
	}
	parentEl := t.elements[e.parent]
	if parentEl == nil || parentEl.lifecycle != LifecycleActive {
		errors.ProtocolViolation("activate of element %d under missing parent %d", id, e.parent)
	}

	slot := e.slot
	if slot > len(parentEl.children) {
		slot = len(parentEl.children)
	}
	parentEl.children = slices.Insert(parentEl.children, slot, e.id)

	t.walk(e, func(el *Element) {
		el.lifecycle = LifecycleActive
	})
	t.refreshDepth(e, parentEl.depth+1)

	if host := t.findRenderHost(e); host != nil {
		for _, node := range t.renderFringe(e) {
			if err := t.render.Attach(node, host.renderNode, -1); err != nil {
				errors.ProtocolViolation("activate of element %d: %v", id, err)
			}
		}
		t.syncRenderChildren(host)
	}

	e.dirty = false // force re-scheduling even if flagged while inactive
	t.MarkNeedsBuild(id)
}

// Unmount destroys the subtree rooted at id, children first. Hooks run
// their cleanups, render nodes are released, and every element in the
// subtree becomes defunct. Defunct is terminal.
func (t *Tree) Unmount(id identity.ID) {
	e := t.elements[id]
	if e == nil {
		return
	}
	if e.lifecycle == LifecycleDefunct {
		errors.ProtocolViolation("unmount of defunct element %d", id)
	}

	for _, child := range slices.Clone(e.children) {
		t.Unmount(child)
	}
	e.children = nil

	e.hooks.dispose()
	t.clearDependencies(e)
	e.dependents = nil

	if !e.renderNode.IsNone() {
		t.render.Remove(e.renderNode)
		e.renderNode = identity.None
	}

	t.removeFromParent(e)
	e.lifecycle = LifecycleDefunct
	delete(t.elements, e.id)
	if t.root == e.id {
		t.root = identity.None
	}
}

// rebuildElement runs one element's build and reconciles its children.
// Called only from the build owner's scope.
func (t *Tree) rebuildElement(e *Element) error {
	if !e.dirty || e.lifecycle != LifecycleActive {
		return nil
	}
	e.dirty = false

	var (
		children []Widget
		err      error
	)
	switch w := e.widget.(type) {
	case StatelessWidget:
		children, err = t.safeBuild(e, func(ctx *BuildContext) []Widget {
			return []Widget{w.Build(ctx)}
		})
	case InheritedWidget:
		children, err = t.safeBuild(e, func(*BuildContext) []Widget {
			return []Widget{w.ChildWidget()}
		})
	case SliverWidget:
		children, err = t.safeBuild(e, func(*BuildContext) []Widget {
			return w.ChildWidgets()
		})
	case RenderWidget:
		children, err = t.safeBuild(e, func(*BuildContext) []Widget {
			return w.ChildWidgets()
		})
	}
	if err != nil {
		return err
	}

	if err := t.reconcileChildren(e, children); err != nil {
		return err
	}
	if !e.renderNode.IsNone() {
		t.syncRenderChildren(e)
	}
	return nil
}

// safeBuild runs user build code with panic recovery. A panic becomes a
// recoverable build-phase frame error; if the sink accepts it, the failed
// subtree is replaced with the configured error placeholder.
func (t *Tree) safeBuild(e *Element, build func(ctx *BuildContext) []Widget) (children []Widget, err error) {
	ferr := func() (ferr *errors.FrameError) {
		defer func() {
			if r := recover(); r != nil {
				if _, fatal := r.(*errors.ProtocolError); fatal {
					panic(r)
				}
				ferr = &errors.FrameError{
					Phase:      errors.PhaseBuild,
					Node:       e.id,
					Widget:     fmt.Sprintf("%T", e.widget),
					Recovered:  r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
			}
		}()
		ctx := &BuildContext{tree: t, element: e}
		e.hooks.begin()
		children = build(ctx)
		e.hooks.finish(e.id)
		return nil
	}()

	if ferr == nil {
		return children, nil
	}
	if t.sink == nil || !t.sink(ferr) {
		return nil, errBuildAborted
	}
	return []Widget{GetErrorWidgetBuilder()(ferr)}, nil
}

// reconcileChildren aligns the element's children with the widget list,
// slot by slot: a compatible widget updates the existing child in place,
// anything else unmounts it and inflates fresh. Never looks deeper than
// type and key.
func (t *Tree) reconcileChildren(e *Element, widgets []Widget) error {
	old := slices.Clone(e.children)
	keep := make([]identity.ID, 0, len(widgets))

	// Keys give children identity across reorders: a keyed widget reclaims
	// its previous element from whatever slot it occupied, so moving it in
	// the list keeps the element and its state. Unkeyed widgets match
	// strictly by position.
	var byKey map[any]identity.ID
	for _, cid := range old {
		c := t.elements[cid]
		if c == nil {
			continue
		}
		if k := c.widget.Key(); k != nil {
			if byKey == nil {
				byKey = make(map[any]identity.ID)
			}
			byKey[k] = cid
		}
	}
	consumed := make(map[identity.ID]bool, len(old))

	match := func(position int, w Widget) *Element {
		if k := w.Key(); k != nil {
			if id, ok := byKey[k]; ok && !consumed[id] {
				if el := t.elements[id]; el != nil && CanUpdate(el.widget, w) {
					consumed[id] = true
					return el
				}
			}
			return nil
		}
		if position < len(old) && !consumed[old[position]] {
			if el := t.elements[old[position]]; el != nil && CanUpdate(el.widget, w) {
				consumed[old[position]] = true
				return el
			}
		}
		return nil
	}

	slot := 0
	for i, w := range widgets {
		if w == nil {
			continue
		}

		if el := match(i, w); el != nil {
			// An unchanged configuration short-circuits the subtree
			// entirely; inherited notification reaches dependents on
			// its own edge.
			if !sameWidget(el.widget, w) {
				t.applyUpdate(el, w)
			}
			el.slot = slot
			keep = append(keep, el.id)
			slot++
			continue
		}

		id, err := t.Mount(w, e.id, slot)
		if err != nil {
			ferr := &errors.FrameError{
				Phase:     errors.PhaseBuild,
				Node:      e.id,
				Widget:    fmt.Sprintf("%T", w),
				Err:       err,
				Timestamp: time.Now(),
			}
			if t.sink == nil || !t.sink(ferr) {
				e.children = keep
				return errBuildAborted
			}
			continue
		}
		keep = append(keep, id)
		slot++
	}

	for _, cid := range old {
		if !consumed[cid] {
			t.Unmount(cid)
		}
	}
	e.children = keep
	return nil
}

// createRenderBinding allocates the render node for render and sliver
// widgets and hangs it off the nearest render-backed ancestor.
func (t *Tree) createRenderBinding(e *Element) error {
	switch w := e.widget.(type) {
	case SliverWidget:
		host := t.findRenderHost(e)
		parent := identity.None
		if host != nil {
			parent = host.renderNode
		}
		id, err := t.render.InsertSliver(w.CreateSliverNode(), parent, -1)
		if err != nil {
			return err
		}
		e.renderNode = id
	case RenderWidget:
		host := t.findRenderHost(e)
		parent := identity.None
		if host != nil {
			parent = host.renderNode
		}
		id, err := t.render.InsertBox(w.CreateRenderNode(), parent, -1)
		if err != nil {
			return err
		}
		e.renderNode = id
	}
	return nil
}

// findRenderHost returns the nearest strict ancestor element owning a
// render node, or nil above the render root.
func (t *Tree) findRenderHost(e *Element) *Element {
	current := t.elements[e.parent]
	for current != nil {
		if !current.renderNode.IsNone() {
			return current
		}
		current = t.elements[current.parent]
	}
	return nil
}

// renderFringe collects the topmost render nodes inside the subtree rooted
// at e: for each branch, the first render-backed element and nothing below it.
func (t *Tree) renderFringe(e *Element) []identity.ID {
	if !e.renderNode.IsNone() {
		return []identity.ID{e.renderNode}
	}
	var fringe []identity.ID
	for _, child := range e.children {
		if el := t.elements[child]; el != nil {
			fringe = append(fringe, t.renderFringe(el)...)
		}
	}
	return fringe
}

// syncRenderChildren realigns a render node's child order with the element
// tree. Element reconciliation appends render nodes as subtrees mount, so
// after a structural rebuild the slot order can disagree with build order.
func (t *Tree) syncRenderChildren(host *Element) {
	hostNode := t.render.Node(host.renderNode)
	if hostNode == nil {
		return
	}

	var expected []identity.ID
	for _, child := range host.children {
		if el := t.elements[child]; el != nil {
			expected = append(expected, t.renderFringe(el)...)
		}
	}
	if slices.Equal(hostNode.Children(), expected) {
		return
	}

	for _, node := range slices.Clone(hostNode.Children()) {
		t.render.Detach(node)
	}
	for i, node := range expected {
		if err := t.render.Attach(node, host.renderNode, i); err != nil {
			errors.ProtocolViolation("render child sync under element %d: %v", host.id, err)
		}
	}
}

func (t *Tree) removeFromParent(e *Element) {
	parentEl := t.elements[e.parent]
	if parentEl == nil {
		return
	}
	if i := slices.Index(parentEl.children, e.id); i >= 0 {
		parentEl.children = slices.Delete(parentEl.children, i, i+1)
	}
}

func (t *Tree) refreshDepth(e *Element, depth int) {
	e.depth = depth
	for _, child := range e.children {
		if el := t.elements[child]; el != nil {
			t.refreshDepth(el, depth+1)
		}
	}
}

// walk visits the subtree rooted at e in parent-first order.
func (t *Tree) walk(e *Element, visit func(*Element)) {
	visit(e)
	for _, child := range e.children {
		if el := t.elements[child]; el != nil {
			t.walk(el, visit)
		}
	}
}

// notifyDependents marks every registered dependent of an inherited element
// dirty. Cost is proportional to the dependent count, never to tree size.
func (t *Tree) notifyDependents(e *Element) {
	for dep := range e.dependents {
		t.MarkNeedsBuild(dep)
	}
}

// clearDependencies drops the element's registrations with the inherited
// elements it depended on.
func (t *Tree) clearDependencies(e *Element) {
	for _, dep := range e.dependencies {
		if inh := t.elements[dep]; inh != nil && inh.dependents != nil {
			delete(inh.dependents, e.id)
		}
	}
	e.dependencies = nil
}

// sameWidget reports whether two configurations are the same value.
// Widgets holding slices or functions are never "same"; equality is a
// short-circuit, not a correctness requirement.
func sameWidget(a, b Widget) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func implementsContract(w Widget) bool {
	switch w.(type) {
	case StatelessWidget, RenderWidget, SliverWidget, InheritedWidget:
		return true
	default:
		return false
	}
}
