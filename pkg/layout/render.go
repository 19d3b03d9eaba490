package layout

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// ArityKind classifies how many children a render node accepts.
type ArityKind int

const (
	// ArityLeaf admits no children.
	ArityLeaf ArityKind = iota
	// AritySingle admits at most one child.
	AritySingle
	// ArityExact admits exactly Count children.
	ArityExact
	// ArityMany admits a variable-length child set.
	ArityMany
)

// Arity describes a render node's child capacity.
type Arity struct {
	Kind  ArityKind
	Count int
}

// Leaf returns the arity of a childless node.
func Leaf() Arity { return Arity{Kind: ArityLeaf} }

// Single returns the arity of a node with at most one child.
func Single() Arity { return Arity{Kind: AritySingle, Count: 1} }

// Exactly returns the arity of a node with a fixed child count.
func Exactly(n int) Arity { return Arity{Kind: ArityExact, Count: n} }

// Variadic returns the arity of a node with any number of children.
func Variadic() Arity { return Arity{Kind: ArityMany} }

func (a Arity) admits(count int) bool {
	switch a.Kind {
	case ArityLeaf:
		return count == 0
	case AritySingle:
		return count <= 1
	case ArityExact:
		return count <= a.Count
	default:
		return true
	}
}

// BoxNode is the contract a box-protocol render participant must satisfy.
// This is the only contract a new visual primitive needs to implement to
// take part in layout and paint.
type BoxNode interface {
	// PerformLayout computes the node's natural size under
	// ctx.Constraints, laying out each child exactly once through ctx.
	// The returned size is clamped into the constraints by the tree;
	// any excess is flagged as visual overflow, never an error.
	PerformLayout(ctx *LayoutContext) (rendering.Size, error)

	// Paint draws the node's own content. Children are painted through
	// ctx.PaintChild at the offsets cached during layout.
	Paint(ctx *PaintContext) error

	// Arity reports how many children the node accepts.
	Arity() Arity
}

// HitTestable is implemented by box nodes that claim pointer hits.
// Nodes that do not implement it are transparent to hit testing but
// still forward the walk to their children.
type HitTestable interface {
	HitTest(position rendering.Offset, size rendering.Size) bool
}

// FrameErrorSink receives recoverable per-node failures during layout and
// paint. Returning true substitutes an error placeholder for the failing
// subtree and continues the frame; returning false aborts the current
// phase so the pipeline can reuse or drop the frame.
type FrameErrorSink func(err *errors.FrameError) bool

// errPhaseAborted propagates phase abandonment up the recursion after the
// sink has already seen and counted the original failure.
var errPhaseAborted = fmt.Errorf("layout: frame phase aborted by recovery policy")

// IsPhaseAborted reports whether err is the phase-abandonment sentinel.
func IsPhaseAborted(err error) bool {
	return err == errPhaseAborted
}

// RenderNode is one arena entry: a participant in layout and paint.
// Exactly one of its box or sliver behaviors is non-nil.
type RenderNode struct {
	id       identity.ID
	parent   identity.ID
	children []identity.ID
	depth    int

	box    BoxNode
	sliver SliverNode

	// Box protocol cache. Valid only between a successful layout call
	// and the next mutation that sets needsLayout.
	constraints    Constraints
	hasConstraints bool
	size           rendering.Size

	// Sliver protocol cache.
	sliverConstraints    SliverConstraints
	hasSliverConstraints bool
	geometry             SliverGeometry

	// offset is this node's position within its parent, assigned by the
	// parent during layout and consumed verbatim by paint.
	offset rendering.Offset

	needsLayout bool
	needsPaint  bool
	laidOut     bool

	// relayoutBoundary is the nearest ancestor (possibly self) whose
	// size cannot be affected by this subtree's layout changes.
	relayoutBoundary identity.ID

	// overflow is how many logical pixels the natural size exceeded the
	// received constraints by, flagged visually during paint.
	overflow float64

	// failed marks a node whose behavior errored; paint substitutes a
	// placeholder for the subtree until the next successful layout.
	failed bool
}

// ID returns the node's identifier.
func (n *RenderNode) ID() identity.ID { return n.id }

// Parent returns the node's parent identifier, or identity.None at the root.
func (n *RenderNode) Parent() identity.ID { return n.parent }

// Children returns the node's children in slot order.
func (n *RenderNode) Children() []identity.ID { return n.children }

// Depth returns the tree depth (root = 0).
func (n *RenderNode) Depth() int { return n.depth }

// Size returns the cached box geometry from the last successful layout.
func (n *RenderNode) Size() rendering.Size { return n.size }

// Geometry returns the cached sliver geometry from the last successful layout.
func (n *RenderNode) Geometry() SliverGeometry { return n.geometry }

// Offset returns the paint offset within the parent, cached at layout time.
func (n *RenderNode) Offset() rendering.Offset { return n.offset }

// NeedsLayout reports whether the node's geometry is stale.
func (n *RenderNode) NeedsLayout() bool { return n.needsLayout }

// NeedsPaint reports whether the node's painted content is stale.
func (n *RenderNode) NeedsPaint() bool { return n.needsPaint }

// Overflow returns the flagged visual overflow in logical pixels.
func (n *RenderNode) Overflow() float64 { return n.overflow }

// IsSliver reports whether the node speaks the sliver protocol.
func (n *RenderNode) IsSliver() bool { return n.sliver != nil }

// Box returns the node's box behavior, or nil for sliver nodes.
func (n *RenderNode) Box() BoxNode { return n.box }

// Sliver returns the node's sliver behavior, or nil for box nodes.
func (n *RenderNode) Sliver() SliverNode { return n.sliver }

// RenderTree is the arena of render nodes. It is mutated only by the frame
// production goroutine; cross-thread inspection goes through the pipeline's
// reader lock.
type RenderTree struct {
	alloc *identity.Allocator
	nodes map[identity.ID]*RenderNode
	root  identity.ID

	dirtyLayout    []identity.ID
	dirtyLayoutSet map[identity.ID]bool
	needsLayout    bool
	needsPaint     bool

	// DebugPaintOverflow draws the overflow indicator over regions whose
	// content exceeded their constraints.
	DebugPaintOverflow bool

	sink FrameErrorSink
}

// NewRenderTree creates an empty render tree drawing IDs from alloc.
// A nil alloc uses the process-wide default allocator.
func NewRenderTree(alloc *identity.Allocator) *RenderTree {
	if alloc == nil {
		alloc = identity.DefaultAllocator
	}
	return &RenderTree{
		alloc: alloc,
		nodes: make(map[identity.ID]*RenderNode),
	}
}

// SetErrorSink installs the recovery hook for per-node layout and paint
// failures. With no sink installed, failures abort the current phase.
func (t *RenderTree) SetErrorSink(sink FrameErrorSink) {
	t.sink = sink
}

// Node returns the arena entry for id, or nil if id is not in this tree.
func (t *RenderTree) Node(id identity.ID) *RenderNode {
	return t.nodes[id]
}

// Root returns the root node's identifier, or identity.None before one is set.
func (t *RenderTree) Root() identity.ID { return t.root }

// Len returns the number of live nodes in the arena.
func (t *RenderTree) Len() int { return len(t.nodes) }

// NeedsLayout reports whether any node awaits layout.
func (t *RenderTree) NeedsLayout() bool { return t.needsLayout }

// NeedsPaint reports whether any node awaits paint.
func (t *RenderTree) NeedsPaint() bool { return t.needsPaint }

// InsertBox allocates a box-protocol node under parent at the given slot
// index. Pass identity.None as parent to create the root.
func (t *RenderTree) InsertBox(behavior BoxNode, parent identity.ID, slot int) (identity.ID, error) {
	if behavior == nil {
		return identity.None, fmt.Errorf("layout: nil box behavior")
	}
	return t.insert(&RenderNode{box: behavior}, parent, slot)
}

// InsertSliver allocates a sliver-protocol node under parent at the given
// slot index. Sliver nodes only participate under a sliver-aware parent
// (a Viewport or another sliver container).
func (t *RenderTree) InsertSliver(behavior SliverNode, parent identity.ID, slot int) (identity.ID, error) {
	if behavior == nil {
		return identity.None, fmt.Errorf("layout: nil sliver behavior")
	}
	return t.insert(&RenderNode{sliver: behavior}, parent, slot)
}

func (t *RenderTree) insert(node *RenderNode, parent identity.ID, slot int) (identity.ID, error) {
	node.id = t.alloc.Next()
	node.needsLayout = true
	node.needsPaint = true
	t.nodes[node.id] = node

	if parent.IsNone() {
		if !t.root.IsNone() {
			delete(t.nodes, node.id)
			return identity.None, fmt.Errorf("layout: tree already has root %d", t.root)
		}
		t.root = node.id
		t.scheduleLayout(node.id)
		return node.id, nil
	}

	if err := t.Attach(node.id, parent, slot); err != nil {
		delete(t.nodes, node.id)
		return identity.None, err
	}
	return node.id, nil
}

// Attach links an existing detached node under parent at slot.
// Used both at insertion and when a preserved subtree is reparented.
func (t *RenderTree) Attach(id, parent identity.ID, slot int) error {
	node := t.nodes[id]
	parentNode := t.nodes[parent]
	if node == nil {
		return fmt.Errorf("layout: attach of unknown node %d", id)
	}
	if parentNode == nil {
		return fmt.Errorf("layout: attach under unknown parent %d", parent)
	}
	if !node.parent.IsNone() {
		return fmt.Errorf("layout: node %d already attached under %d", id, node.parent)
	}
	arity := t.arityOf(parentNode)
	if !arity.admits(len(parentNode.children) + 1) {
		return fmt.Errorf("layout: parent %d does not admit another child", parent)
	}

	if slot < 0 || slot > len(parentNode.children) {
		slot = len(parentNode.children)
	}
	parentNode.children = slices.Insert(parentNode.children, slot, id)
	node.parent = parent
	t.refreshDepth(node, parentNode.depth+1)

	// Reparenting invalidates every cache derived from the old position.
	node.hasConstraints = false
	node.hasSliverConstraints = false
	node.relayoutBoundary = identity.None
	t.MarkNeedsLayout(id)
	t.MarkNeedsLayout(parent)
	return nil
}

// Detach unlinks a node from its parent without destroying the subtree,
// supporting state-preserving reparenting. The parent is marked for layout.
func (t *RenderTree) Detach(id identity.ID) {
	node := t.nodes[id]
	if node == nil || node.parent.IsNone() {
		return
	}
	parentNode := t.nodes[node.parent]
	if parentNode != nil {
		if i := slices.Index(parentNode.children, id); i >= 0 {
			parentNode.children = slices.Delete(parentNode.children, i, i+1)
		}
		t.MarkNeedsLayout(parentNode.id)
	}
	node.parent = identity.None
}

// Remove destroys the subtree rooted at id, children first.
func (t *RenderTree) Remove(id identity.ID) {
	node := t.nodes[id]
	if node == nil {
		return
	}
	for _, child := range slices.Clone(node.children) {
		t.Remove(child)
	}
	t.Detach(id)
	if t.root == id {
		t.root = identity.None
	}
	delete(t.nodes, id)
}

func (t *RenderTree) arityOf(node *RenderNode) Arity {
	if node.box != nil {
		return node.box.Arity()
	}
	return node.sliver.Arity()
}

func (t *RenderTree) refreshDepth(node *RenderNode, depth int) {
	node.depth = depth
	for _, child := range node.children {
		if childNode := t.nodes[child]; childNode != nil {
			t.refreshDepth(childNode, depth+1)
		}
	}
}

// MarkNeedsLayout marks the node's geometry stale and walks up to the
// nearest relayout boundary, which is scheduled for the next layout flush.
// New layout implies repaint, so needsPaint is set along the way; parents
// beyond the boundary are deliberately left clean — their size cannot be
// affected, which is what keeps incremental relayout sub-linear.
func (t *RenderTree) MarkNeedsLayout(id identity.ID) {
	node := t.nodes[id]
	if node == nil || node.needsLayout {
		return
	}
	node.needsLayout = true
	t.MarkNeedsPaint(id)

	if node.relayoutBoundary == id {
		t.scheduleLayout(id)
		return
	}
	if !node.parent.IsNone() {
		t.MarkNeedsLayout(node.parent)
		return
	}
	t.scheduleLayout(id)
}

// MarkNeedsPaint marks the node's painted content stale. The flag walks to
// the root so the next frame knows painting is required, but never forces
// relayout of anything.
func (t *RenderTree) MarkNeedsPaint(id identity.ID) {
	node := t.nodes[id]
	if node == nil {
		return
	}
	t.needsPaint = true
	for node != nil && !node.needsPaint {
		node.needsPaint = true
		if node.parent.IsNone() {
			break
		}
		node = t.nodes[node.parent]
	}
}

func (t *RenderTree) scheduleLayout(id identity.ID) {
	if t.dirtyLayoutSet == nil {
		t.dirtyLayoutSet = make(map[identity.ID]bool)
	}
	if t.dirtyLayoutSet[id] {
		return
	}
	t.dirtyLayoutSet[id] = true
	t.dirtyLayout = append(t.dirtyLayout, id)
	t.needsLayout = true
	t.needsPaint = true
}

// FlushLayout runs the layout phase: the root is laid out under the given
// constraints, then any relayout boundaries scheduled during the pass are
// re-laid with their cached constraints, parents first. ctx is the frame
// deadline; expiry at a node boundary aborts the remainder of the phase
// with a recoverable cancelled error.
func (t *RenderTree) FlushLayout(ctx context.Context, rootConstraints Constraints) error {
	if t.root.IsNone() {
		return nil
	}
	if !t.needsLayout {
		return nil
	}

	if _, err := t.layoutNode(ctx, t.root, rootConstraints, false); err != nil {
		return err
	}
	if err := t.flushDirtyBoundaries(ctx); err != nil {
		return err
	}

	t.dirtyLayout = nil
	t.dirtyLayoutSet = nil
	t.needsLayout = false
	return nil
}

// flushDirtyBoundaries processes scheduled boundaries in depth order
// (parents first) so a parent's pass can satisfy a scheduled child before
// the child is visited. A boundary whose size changes under its cached
// constraints re-marks its parent, which the loop picks up.
func (t *RenderTree) flushDirtyBoundaries(ctx context.Context) error {
	for len(t.dirtyLayout) > 0 {
		dirty := t.dirtyLayout
		t.dirtyLayout = nil
		t.dirtyLayoutSet = nil

		slices.SortFunc(dirty, func(a, b identity.ID) int {
			return t.depthOf(a) - t.depthOf(b)
		})

		for i, id := range dirty {
			node := t.nodes[id]
			if node == nil || !node.needsLayout {
				continue
			}
			if err := t.relayoutBoundaryNode(ctx, node); err != nil {
				// An aborted phase retries on the next flush; everything
				// this batch has not reached keeps its place in line.
				t.requeueBoundaries(dirty[i:])
				return err
			}
		}
	}
	return nil
}

// relayoutBoundaryNode re-lays one scheduled boundary with its cached
// constraints, dispatching on the node's protocol. A parent-visible change
// in the result re-marks the parent, which the flush loop picks up.
func (t *RenderTree) relayoutBoundaryNode(ctx context.Context, node *RenderNode) error {
	if node.sliver != nil {
		if !node.hasSliverConstraints {
			return nil
		}
		prev := node.geometry
		if _, err := t.layoutSliverNode(ctx, node.id, node.sliverConstraints); err != nil {
			return err
		}
		if node.geometry != prev && !node.parent.IsNone() {
			t.MarkNeedsLayout(node.parent)
		}
		return nil
	}

	if !node.hasConstraints {
		return nil
	}
	prev := node.size
	if _, err := t.layoutNode(ctx, node.id, node.constraints, false); err != nil {
		return err
	}
	if node.size != prev && !node.parent.IsNone() {
		t.MarkNeedsLayout(node.parent)
	}
	return nil
}

// requeueBoundaries reschedules the still-dirty part of an aborted batch.
func (t *RenderTree) requeueBoundaries(remainder []identity.ID) {
	for _, id := range remainder {
		if node := t.nodes[id]; node != nil && node.needsLayout {
			t.scheduleLayout(id)
		}
	}
}

func (t *RenderTree) depthOf(id identity.ID) int {
	if node := t.nodes[id]; node != nil {
		return node.depth
	}
	return 0
}

// layoutNode is the box-protocol layout entry for one node.
//
// On return the node's size satisfies the input constraints even when its
// natural content would not; the excess is recorded as visual overflow.
// needsLayout is cleared only after a successful pass.
func (t *RenderTree) layoutNode(ctx context.Context, id identity.ID, constraints Constraints, parentUsesSize bool) (rendering.Size, error) {
	constraints.checkNormalized()
	node := t.nodes[id]
	if node == nil {
		errors.ProtocolViolation("layout of unknown render node %d", id)
	}
	if node.box == nil {
		errors.ProtocolViolation("box layout of sliver node %d (missing viewport adapter)", id)
	}

	if err := ctx.Err(); err != nil {
		return node.size, t.reportError(errors.Cancelled(id, err))
	}

	// Relayout boundary determination, inherited from the parent unless
	// this node's size is pinned (tight constraints), ignored by the
	// parent, or the node is the root.
	if constraints.IsTight() || node.parent.IsNone() || !parentUsesSize {
		node.relayoutBoundary = id
	} else if parentNode := t.nodes[node.parent]; parentNode != nil {
		node.relayoutBoundary = parentNode.relayoutBoundary
	}

	// Unchanged subtrees skip layout entirely.
	if !node.needsLayout && node.hasConstraints && node.constraints == constraints && node.laidOut {
		return node.size, nil
	}

	node.constraints = constraints
	node.hasConstraints = true
	node.failed = false

	lctx := &LayoutContext{
		tree:        t,
		node:        node,
		Constraints: constraints,
		ctx:         ctx,
	}
	natural, err := node.box.PerformLayout(lctx)
	if err != nil {
		if IsPhaseAborted(err) {
			return node.size, err
		}
		ferr := &errors.FrameError{
			Phase:     errors.PhaseLayout,
			Node:      id,
			Err:       err,
			Widget:    fmt.Sprintf("%T", node.box),
			Recovered: nil,
		}
		if sinkErr := t.reportError(ferr); sinkErr != nil {
			return node.size, sinkErr
		}
		// Placeholder substitution: the subtree collapses to the
		// smallest legal size and paints the failure indicator.
		node.failed = true
		natural = constraints.Smallest()
	}

	size := constraints.Constrain(natural)
	node.overflow = maxOverflow(natural, size)
	t.setSize(node, size)
	node.needsLayout = false
	node.laidOut = true
	return size, nil
}

// reportError routes a recoverable failure to the sink. A nil return means
// the caller should substitute a placeholder and continue; the sentinel
// means the phase is abandoned.
func (t *RenderTree) reportError(err *errors.FrameError) error {
	if t.sink == nil {
		return errPhaseAborted
	}
	if t.sink(err) {
		return nil
	}
	return errPhaseAborted
}

// setSize updates the cached geometry. A changed size invalidates the
// node's painted content but deliberately not the parent's layout; the
// call sites that can change a parent-visible size handle that themselves.
func (t *RenderTree) setSize(node *RenderNode, size rendering.Size) {
	if node.size == size {
		return
	}
	node.size = size
	t.MarkNeedsPaint(node.id)
}

func maxOverflow(natural, clamped rendering.Size) float64 {
	overflow := 0.0
	if d := natural.Width - clamped.Width; d > overflow {
		overflow = d
	}
	if d := natural.Height - clamped.Height; d > overflow {
		overflow = d
	}
	return overflow
}

// LayoutContext is handed to a box behavior's PerformLayout. It exposes the
// node's children and enforces the exactly-once-per-call child layout rule.
type LayoutContext struct {
	tree *RenderTree
	node *RenderNode

	// Constraints are what the parent offered this node.
	Constraints Constraints

	ctx     context.Context
	laidOut map[identity.ID]bool
}

// ChildCount returns the number of attached children.
func (c *LayoutContext) ChildCount() int {
	return len(c.node.children)
}

// ChildAt returns the identifier of the child in the given slot.
func (c *LayoutContext) ChildAt(slot int) identity.ID {
	return c.node.children[slot]
}

// LayoutChild lays out one child under the given constraints and returns
// its size. Each child may be laid out exactly once per PerformLayout call;
// a second attempt is a protocol violation.
func (c *LayoutContext) LayoutChild(child identity.ID, constraints Constraints, parentUsesSize bool) (rendering.Size, error) {
	if c.laidOut[child] {
		errors.ProtocolViolation("node %d laid out child %d twice in one pass", c.node.id, child)
	}
	if c.laidOut == nil {
		c.laidOut = make(map[identity.ID]bool)
	}
	c.laidOut[child] = true
	return c.tree.layoutNode(c.ctx, child, constraints, parentUsesSize)
}

// LayoutSliverChild lays out a sliver child of a box node (a viewport)
// under scroll-aware constraints. The exactly-once rule applies here too.
func (c *LayoutContext) LayoutSliverChild(child identity.ID, constraints SliverConstraints) (SliverGeometry, error) {
	if c.laidOut[child] {
		errors.ProtocolViolation("node %d laid out child %d twice in one pass", c.node.id, child)
	}
	if c.laidOut == nil {
		c.laidOut = make(map[identity.ID]bool)
	}
	c.laidOut[child] = true
	return c.tree.layoutSliverNode(c.ctx, child, constraints)
}

// PositionChild caches the child's paint offset within this node.
// Paint consumes the cached value verbatim and never recomputes positions.
func (c *LayoutContext) PositionChild(child identity.ID, offset rendering.Offset) {
	childNode := c.tree.nodes[child]
	if childNode == nil {
		return
	}
	if childNode.offset != offset {
		childNode.offset = offset
		c.tree.MarkNeedsPaint(c.node.id)
	}
}

// ChildSize returns the child's cached size from its last layout.
func (c *LayoutContext) ChildSize(child identity.ID) rendering.Size {
	if childNode := c.tree.nodes[child]; childNode != nil {
		return childNode.size
	}
	return rendering.Size{}
}
