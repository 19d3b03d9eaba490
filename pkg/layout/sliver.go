package layout

import (
	"context"
	"fmt"
	"math"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// Axis is the direction content scrolls along.
type Axis int

const (
	// AxisVertical scrolls top to bottom.
	AxisVertical Axis = iota
	// AxisHorizontal scrolls left to right.
	AxisHorizontal
)

// String returns a human-readable representation of the axis.
func (a Axis) String() string {
	switch a {
	case AxisVertical:
		return "vertical"
	case AxisHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// SliverConstraints is the scroll-aware constraint set offered to a sliver.
type SliverConstraints struct {
	// Axis is the scroll direction. Paint offsets along the main axis
	// honor this, for horizontal viewports as well as vertical ones.
	Axis Axis
	// ScrollOffset is how much of this sliver's content has already been
	// scrolled past the viewport's leading edge.
	ScrollOffset float64
	// RemainingPaintExtent is how much paintable room remains in the
	// viewport after earlier slivers consumed their share.
	RemainingPaintExtent float64
	// CrossAxisExtent is the viewport's extent perpendicular to the axis.
	CrossAxisExtent float64
	// ViewportMainAxisExtent is the viewport's full extent along the axis.
	ViewportMainAxisExtent float64
}

func (c SliverConstraints) checkNormalized() {
	if c.ScrollOffset < 0 || c.RemainingPaintExtent < 0 || c.CrossAxisExtent < 0 || c.ViewportMainAxisExtent < 0 {
		errors.ProtocolViolation(
			"sliver constraints not normalized: scroll %v remaining %v cross %v viewport %v",
			c.ScrollOffset, c.RemainingPaintExtent, c.CrossAxisExtent, c.ViewportMainAxisExtent)
	}
}

// SliverGeometry is the structured result a sliver returns from layout.
type SliverGeometry struct {
	// ScrollExtent is the sliver's total length along the scroll axis,
	// including parts scrolled out of view.
	ScrollExtent float64
	// PaintExtent is the subset currently painted, bounded by the
	// remaining paint extent the sliver was offered.
	PaintExtent float64
	// PaintOrigin is where painting starts relative to the sliver's
	// layout position along the axis.
	PaintOrigin float64
	// Visible reports whether any of the sliver is currently on screen.
	Visible bool
	// HasVisualOverflow reports that content extends beyond the painted
	// region and the viewport should clip.
	HasVisualOverflow bool
}

// SliverNode is the contract a sliver-protocol render participant must
// satisfy, parallel to BoxNode.
type SliverNode interface {
	// PerformLayout computes the sliver's geometry under
	// ctx.Constraints, laying out each sliver child exactly once.
	PerformLayout(ctx *SliverLayoutContext) (SliverGeometry, error)

	// Paint draws the visible portion. The canvas origin sits at the
	// sliver's paint position in the viewport.
	Paint(ctx *PaintContext) error

	// Arity reports how many children the sliver accepts.
	Arity() Arity
}

// SliverLayoutContext is handed to a sliver behavior's PerformLayout.
type SliverLayoutContext struct {
	tree *RenderTree
	node *RenderNode

	// Constraints are what the viewport or enclosing group offered.
	Constraints SliverConstraints

	ctx     context.Context
	laidOut map[identity.ID]bool
}

// ChildCount returns the number of attached children.
func (c *SliverLayoutContext) ChildCount() int {
	return len(c.node.children)
}

// ChildAt returns the identifier of the child in the given slot.
func (c *SliverLayoutContext) ChildAt(slot int) identity.ID {
	return c.node.children[slot]
}

// LayoutChild lays out one sliver child under the given constraints and
// returns its geometry. Each child may be laid out exactly once per call.
func (c *SliverLayoutContext) LayoutChild(child identity.ID, constraints SliverConstraints) (SliverGeometry, error) {
	if c.laidOut[child] {
		errors.ProtocolViolation("sliver %d laid out child %d twice in one pass", c.node.id, child)
	}
	if c.laidOut == nil {
		c.laidOut = make(map[identity.ID]bool)
	}
	c.laidOut[child] = true
	return c.tree.layoutSliverNode(c.ctx, child, constraints)
}

// PositionChild caches the child's paint offset along the scroll axis.
func (c *SliverLayoutContext) PositionChild(child identity.ID, mainAxisOffset float64) {
	offset := rendering.Offset{}
	if c.Constraints.Axis == AxisHorizontal {
		offset.X = mainAxisOffset
	} else {
		offset.Y = mainAxisOffset
	}
	childNode := c.tree.nodes[child]
	if childNode == nil {
		return
	}
	if childNode.offset != offset {
		childNode.offset = offset
		c.tree.MarkNeedsPaint(c.node.id)
	}
}

// layoutSliverNode is the sliver-protocol layout entry for one node.
func (t *RenderTree) layoutSliverNode(ctx context.Context, id identity.ID, constraints SliverConstraints) (SliverGeometry, error) {
	constraints.checkNormalized()
	node := t.nodes[id]
	if node == nil {
		errors.ProtocolViolation("layout of unknown render node %d", id)
	}
	if node.sliver == nil {
		errors.ProtocolViolation("sliver layout of box node %d", id)
	}

	if err := ctx.Err(); err != nil {
		return node.geometry, t.reportError(errors.Cancelled(id, err))
	}

	if !node.needsLayout && node.hasSliverConstraints && node.sliverConstraints == constraints && node.laidOut {
		return node.geometry, nil
	}

	node.sliverConstraints = constraints
	node.hasSliverConstraints = true
	node.failed = false
	node.relayoutBoundary = id

	lctx := &SliverLayoutContext{
		tree:        t,
		node:        node,
		Constraints: constraints,
		ctx:         ctx,
	}
	geometry, err := node.sliver.PerformLayout(lctx)
	if err != nil {
		if IsPhaseAborted(err) {
			return node.geometry, err
		}
		ferr := &errors.FrameError{
			Phase:  errors.PhaseLayout,
			Node:   id,
			Err:    err,
			Widget: fmt.Sprintf("%T", node.sliver),
		}
		if sinkErr := t.reportError(ferr); sinkErr != nil {
			return node.geometry, sinkErr
		}
		node.failed = true
		geometry = SliverGeometry{}
	}

	// The painted subset can never exceed what the viewport offered.
	if geometry.PaintExtent > constraints.RemainingPaintExtent {
		geometry.PaintExtent = constraints.RemainingPaintExtent
		geometry.HasVisualOverflow = true
	}
	geometry.Visible = geometry.PaintExtent > 0

	node.geometry = geometry
	t.setSize(node, sliverPaintSize(constraints, geometry))
	node.needsLayout = false
	node.laidOut = true
	return geometry, nil
}

// sliverPaintSize converts sliver geometry to the box-shaped footprint the
// paint and hit-test walks operate on.
func sliverPaintSize(constraints SliverConstraints, geometry SliverGeometry) rendering.Size {
	if constraints.Axis == AxisHorizontal {
		return rendering.Size{Width: geometry.PaintExtent, Height: constraints.CrossAxisExtent}
	}
	return rendering.Size{Width: constraints.CrossAxisExtent, Height: geometry.PaintExtent}
}

// SliverFixedExtent is a leaf sliver holding Count items of identical
// extent along the scroll axis. It paints only the visible items, which is
// what keeps long lists cheap.
type SliverFixedExtent struct {
	ItemExtent float64
	Count      int
	// ItemPaint draws one item; the canvas origin sits at the item's
	// leading corner. A nil ItemPaint paints alternating placeholder rows.
	ItemPaint func(canvas rendering.Canvas, index int, bounds rendering.Rect)
}

// Arity reports that the sliver has no render children.
func (s *SliverFixedExtent) Arity() Arity { return Leaf() }

// PerformLayout computes geometry for the fixed-extent item run.
func (s *SliverFixedExtent) PerformLayout(ctx *SliverLayoutContext) (SliverGeometry, error) {
	if s.ItemExtent < 0 {
		return SliverGeometry{}, fmt.Errorf("layout: negative item extent %v", s.ItemExtent)
	}
	constraints := ctx.Constraints
	scrollExtent := s.ItemExtent * float64(s.Count)
	paintExtent := clamp(scrollExtent-constraints.ScrollOffset, 0, constraints.RemainingPaintExtent)
	return SliverGeometry{
		ScrollExtent:      scrollExtent,
		PaintExtent:       paintExtent,
		HasVisualOverflow: scrollExtent-constraints.ScrollOffset > paintExtent,
	}, nil
}

// Paint draws the items intersecting the painted region.
func (s *SliverFixedExtent) Paint(ctx *PaintContext) error {
	if s.ItemExtent <= 0 || s.Count == 0 {
		return nil
	}
	constraints := ctx.SliverConstraints()
	geometry := ctx.SliverGeometry()

	first := int(math.Floor(constraints.ScrollOffset / s.ItemExtent))
	last := int(math.Ceil((constraints.ScrollOffset + geometry.PaintExtent) / s.ItemExtent))
	if last > s.Count {
		last = s.Count
	}

	for index := first; index < last; index++ {
		lead := float64(index)*s.ItemExtent - constraints.ScrollOffset
		var bounds rendering.Rect
		if constraints.Axis == AxisHorizontal {
			bounds = rendering.RectFromLTWH(lead, 0, s.ItemExtent, constraints.CrossAxisExtent)
		} else {
			bounds = rendering.RectFromLTWH(0, lead, constraints.CrossAxisExtent, s.ItemExtent)
		}
		if s.ItemPaint != nil {
			s.ItemPaint(ctx.Canvas, index, bounds)
			continue
		}
		shade := uint8(0xF0)
		if index%2 == 1 {
			shade = 0xE0
		}
		ctx.Canvas.DrawRect(bounds, rendering.Paint{Color: rendering.RGB(shade, shade, shade)})
	}
	return nil
}
