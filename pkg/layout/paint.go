package layout

import (
	"context"
	"fmt"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// PaintContext carries the canvas and frame deadline through the paint walk.
type PaintContext struct {
	Canvas rendering.Canvas

	tree *RenderTree
	node *RenderNode
	ctx  context.Context
}

// Size returns the painted node's laid-out size.
func (p *PaintContext) Size() rendering.Size {
	return p.node.size
}

// SliverConstraints returns the scroll-aware constraints the painted
// sliver node was last laid out under.
func (p *PaintContext) SliverConstraints() SliverConstraints {
	return p.node.sliverConstraints
}

// SliverGeometry returns the painted sliver node's cached geometry.
func (p *PaintContext) SliverGeometry() SliverGeometry {
	return p.node.geometry
}

// ChildCount returns the number of attached children.
func (p *PaintContext) ChildCount() int {
	return len(p.node.children)
}

// ChildAt returns the identifier of the child in the given slot.
func (p *PaintContext) ChildAt(slot int) identity.ID {
	return p.node.children[slot]
}

// ChildVisible reports whether a child has current geometry worth
// painting. Sliver containers use this to skip children the layout pass
// stopped before reaching.
func (p *PaintContext) ChildVisible(child identity.ID) bool {
	childNode := p.tree.nodes[child]
	if childNode == nil || !childNode.laidOut || childNode.needsLayout {
		return false
	}
	if childNode.sliver != nil {
		return childNode.geometry.Visible
	}
	return !childNode.size.IsEmpty()
}

// PaintChild paints one child at the offset cached during layout.
func (p *PaintContext) PaintChild(child identity.ID) error {
	childNode := p.tree.nodes[child]
	if childNode == nil {
		return nil
	}
	return p.tree.paintNode(p.ctx, p.Canvas, childNode)
}

// PaintRoot runs the paint phase over the whole tree, recording one frame's
// drawable output into canvas. Painting a node whose needsLayout bit is set
// is a protocol violation; a zero-size node skips painting as a no-op.
func (t *RenderTree) PaintRoot(ctx context.Context, canvas rendering.Canvas) error {
	if t.root.IsNone() {
		return nil
	}
	root := t.nodes[t.root]
	if err := t.paintNode(ctx, canvas, root); err != nil {
		return err
	}
	t.needsPaint = false
	return nil
}

func (t *RenderTree) paintNode(ctx context.Context, canvas rendering.Canvas, node *RenderNode) error {
	if node.needsLayout {
		errors.ProtocolViolation("paint of node %d with needs_layout set", node.id)
	}

	if err := ctx.Err(); err != nil {
		return t.reportError(errors.Cancelled(node.id, err))
	}

	if node.size.IsEmpty() {
		node.needsPaint = false
		return nil
	}

	canvas.Save()
	canvas.Translate(node.offset.X, node.offset.Y)

	err := t.paintContent(ctx, canvas, node)

	if node.overflow > 0 && t.DebugPaintOverflow {
		paintOverflowIndicator(canvas, node.size)
	}

	canvas.Restore()
	if err != nil {
		return err
	}
	node.needsPaint = false
	return nil
}

func (t *RenderTree) paintContent(ctx context.Context, canvas rendering.Canvas, node *RenderNode) error {
	if node.failed {
		paintErrorPlaceholder(canvas, node.size)
		return nil
	}

	pctx := &PaintContext{Canvas: canvas, tree: t, node: node, ctx: ctx}
	var err error
	if node.box != nil {
		err = node.box.Paint(pctx)
	} else {
		err = node.sliver.Paint(pctx)
	}
	if err == nil {
		return nil
	}
	if IsPhaseAborted(err) {
		return err
	}

	ferr := &errors.FrameError{
		Phase:  errors.PhasePaint,
		Node:   node.id,
		Err:    err,
		Widget: fmt.Sprintf("%T", behaviorOf(node)),
	}
	if sinkErr := t.reportError(ferr); sinkErr != nil {
		return sinkErr
	}
	paintErrorPlaceholder(canvas, node.size)
	return nil
}

func behaviorOf(node *RenderNode) any {
	if node.box != nil {
		return node.box
	}
	return node.sliver
}

// paintErrorPlaceholder draws the visible substitute for a failed subtree.
func paintErrorPlaceholder(canvas rendering.Canvas, size rendering.Size) {
	bounds := rendering.RectFromLTWH(0, 0, size.Width, size.Height)
	canvas.DrawRect(bounds, rendering.Paint{Color: rendering.RGBA(0xFF, 0x00, 0x00, 0x66)})
	canvas.DrawRect(bounds, rendering.Paint{
		Color:       rendering.ColorRed,
		Style:       rendering.PaintStyleStroke,
		StrokeWidth: 2,
	})
}

// paintOverflowIndicator draws the debug-only marker over a region whose
// content exceeded its constraints.
func paintOverflowIndicator(canvas rendering.Canvas, size rendering.Size) {
	bounds := rendering.RectFromLTWH(0, 0, size.Width, size.Height)
	indicator := rendering.Paint{
		Color:       rendering.RGBA(0xFF, 0xEB, 0x00, 0xCC),
		Style:       rendering.PaintStyleStroke,
		StrokeWidth: 3,
	}
	canvas.DrawRect(bounds, indicator)
	canvas.DrawLine(rendering.Offset{X: bounds.Left, Y: bounds.Top},
		rendering.Offset{X: bounds.Right, Y: bounds.Bottom}, indicator)
	canvas.DrawLine(rendering.Offset{X: bounds.Right, Y: bounds.Top},
		rendering.Offset{X: bounds.Left, Y: bounds.Bottom}, indicator)
}
