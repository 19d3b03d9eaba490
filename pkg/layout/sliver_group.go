package layout

import "math"

// SliverGroup lays out a sequence of slivers along the scroll axis.
//
// Each child is offered the scroll offset and paint room left over by its
// predecessors. Once the remaining paint extent reaches zero, no further
// children are laid out at all — scrollable lists may contain orders of
// magnitude more children than are ever visible, so this early exit is a
// required part of the protocol, not an optimization pass.
type SliverGroup struct{}

// Arity reports that the group takes a variable-length child set.
func (g *SliverGroup) Arity() Arity { return Variadic() }

// PerformLayout runs the sequential accumulation described above.
//
// For three children with scroll extents 50, 200 and 400 under a scroll
// offset of 100 and remaining paint extent 600, the group reports a total
// scroll extent of 650 and paint extent of 550.
func (g *SliverGroup) PerformLayout(ctx *SliverLayoutContext) (SliverGeometry, error) {
	constraints := ctx.Constraints

	accumulatedScroll := 0.0
	accumulatedPaint := 0.0
	overflow := false

	for slot := 0; slot < ctx.ChildCount(); slot++ {
		remaining := math.Max(constraints.RemainingPaintExtent-accumulatedPaint, 0)
		if remaining == 0 {
			// The viewport is full. Children past this point keep
			// their stale geometry and are never visited.
			overflow = true
			break
		}

		child := ctx.ChildAt(slot)
		childConstraints := SliverConstraints{
			Axis:                   constraints.Axis,
			ScrollOffset:           math.Max(constraints.ScrollOffset-accumulatedScroll, 0),
			RemainingPaintExtent:   remaining,
			CrossAxisExtent:        constraints.CrossAxisExtent,
			ViewportMainAxisExtent: constraints.ViewportMainAxisExtent,
		}
		geometry, err := ctx.LayoutChild(child, childConstraints)
		if err != nil {
			return SliverGeometry{}, err
		}

		ctx.PositionChild(child, accumulatedPaint+geometry.PaintOrigin)
		accumulatedScroll += geometry.ScrollExtent
		accumulatedPaint += geometry.PaintExtent
		overflow = overflow || geometry.HasVisualOverflow
	}

	return SliverGeometry{
		ScrollExtent:      accumulatedScroll,
		PaintExtent:       math.Min(accumulatedPaint, constraints.RemainingPaintExtent),
		HasVisualOverflow: overflow,
	}, nil
}

// Paint draws the children that were laid out visible, at the main-axis
// offsets recorded during layout. Children the layout pass never reached
// (past the full viewport) are skipped, not errors.
func (g *SliverGroup) Paint(ctx *PaintContext) error {
	for slot := 0; slot < ctx.ChildCount(); slot++ {
		child := ctx.ChildAt(slot)
		if !ctx.ChildVisible(child) {
			continue
		}
		if err := ctx.PaintChild(child); err != nil {
			return err
		}
	}
	return nil
}
