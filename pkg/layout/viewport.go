package layout

import (
	"math"

	"github.com/go-weave/weave/pkg/rendering"
)

// Viewport is the box-protocol node that hosts sliver content. It fills
// the constraints it receives, translates them into sliver constraints for
// its single sliver child, and owns the scroll offset.
type Viewport struct {
	// Axis is the scroll direction the viewport exposes to its content.
	Axis Axis

	scrollOffset float64
}

// Arity reports that the viewport hosts one sliver child.
func (v *Viewport) Arity() Arity { return Single() }

// ScrollOffset returns the current scroll position.
func (v *Viewport) ScrollOffset() float64 { return v.scrollOffset }

// SetScrollOffset moves the viewport. Negative offsets clamp to zero.
// The caller is responsible for marking the owning node for layout.
func (v *Viewport) SetScrollOffset(offset float64) {
	v.scrollOffset = math.Max(offset, 0)
}

// PerformLayout sizes the viewport to its constraints and lays out the
// sliver child with the scroll state converted to sliver constraints.
func (v *Viewport) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	size := ctx.Constraints.Constrain(ctx.Constraints.Biggest())
	if ctx.ChildCount() == 0 {
		return size, nil
	}

	main, cross := size.Height, size.Width
	if v.Axis == AxisHorizontal {
		main, cross = size.Width, size.Height
	}

	child := ctx.ChildAt(0)
	constraints := SliverConstraints{
		Axis:                   v.Axis,
		ScrollOffset:           v.scrollOffset,
		RemainingPaintExtent:   main,
		CrossAxisExtent:        cross,
		ViewportMainAxisExtent: main,
	}
	if _, err := ctx.LayoutSliverChild(child, constraints); err != nil {
		return size, err
	}
	ctx.PositionChild(child, rendering.Offset{})
	return size, nil
}

// Paint clips to the viewport bounds and paints the sliver child.
func (v *Viewport) Paint(ctx *PaintContext) error {
	if ctx.ChildCount() == 0 {
		return nil
	}
	size := ctx.Size()
	ctx.Canvas.Save()
	ctx.Canvas.ClipRect(rendering.RectFromLTWH(0, 0, size.Width, size.Height))
	err := ctx.PaintChild(ctx.ChildAt(0))
	ctx.Canvas.Restore()
	return err
}
