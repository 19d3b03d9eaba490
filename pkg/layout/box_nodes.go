package layout

import (
	"math"

	"github.com/go-weave/weave/pkg/rendering"
)

// The behaviors in this file are the box-protocol participants the core
// itself needs: a root, pass-through composition, edge insets, a simple
// main-axis flex and a painted leaf. Richer visual primitives live outside
// the core and implement BoxNode the same way.

// EdgeInsets describes spacing on each side of a box.
type EdgeInsets struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// EdgeInsetsAll returns uniform insets.
func EdgeInsetsAll(value float64) EdgeInsets {
	return EdgeInsets{Left: value, Top: value, Right: value, Bottom: value}
}

// Horizontal returns the combined left and right insets.
func (e EdgeInsets) Horizontal() float64 { return e.Left + e.Right }

// Vertical returns the combined top and bottom insets.
func (e EdgeInsets) Vertical() float64 { return e.Top + e.Bottom }

// RootView fills the constraints it is given and hosts at most one child
// with loosened constraints. Every render tree is rooted in one.
type RootView struct {
	// Background clears the frame before any content paints.
	Background rendering.Color
}

// Arity reports that the root hosts at most one child.
func (r *RootView) Arity() Arity { return Single() }

// PerformLayout sizes the root to the biggest admitted size.
func (r *RootView) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	size := ctx.Constraints.Constrain(ctx.Constraints.Biggest())
	if ctx.ChildCount() > 0 {
		child := ctx.ChildAt(0)
		if _, err := ctx.LayoutChild(child, Loose(size), false); err != nil {
			return size, err
		}
		ctx.PositionChild(child, rendering.Offset{})
	}
	return size, nil
}

// Paint clears the frame and paints the child.
func (r *RootView) Paint(ctx *PaintContext) error {
	ctx.Canvas.Clear(r.Background)
	if ctx.ChildCount() > 0 {
		return ctx.PaintChild(ctx.ChildAt(0))
	}
	return nil
}

// Proxy passes constraints through to a single child and adopts its size.
// Render-less composition layers delegate here rather than duplicating
// layout logic.
type Proxy struct{}

// Arity reports that the proxy hosts at most one child.
func (p *Proxy) Arity() Arity { return Single() }

// PerformLayout delegates to the child, or collapses to the smallest
// admitted size without one.
func (p *Proxy) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	if ctx.ChildCount() == 0 {
		return ctx.Constraints.Smallest(), nil
	}
	child := ctx.ChildAt(0)
	size, err := ctx.LayoutChild(child, ctx.Constraints, true)
	if err != nil {
		return rendering.Size{}, err
	}
	ctx.PositionChild(child, rendering.Offset{})
	return size, nil
}

// Paint forwards to the child.
func (p *Proxy) Paint(ctx *PaintContext) error {
	if ctx.ChildCount() > 0 {
		return ctx.PaintChild(ctx.ChildAt(0))
	}
	return nil
}

// Padder insets a single child by fixed edge spacing, exercising
// constraint deflation.
type Padder struct {
	Insets EdgeInsets
}

// Arity reports that the padder hosts at most one child.
func (p *Padder) Arity() Arity { return Single() }

// PerformLayout offers the child deflated constraints and grows the
// result back by the insets.
func (p *Padder) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	if ctx.ChildCount() == 0 {
		size := rendering.Size{Width: p.Insets.Horizontal(), Height: p.Insets.Vertical()}
		return ctx.Constraints.Constrain(size), nil
	}

	inner := ctx.Constraints.Deflate(p.Insets.Horizontal(), p.Insets.Vertical())
	child := ctx.ChildAt(0)
	childSize, err := ctx.LayoutChild(child, inner, true)
	if err != nil {
		return rendering.Size{}, err
	}
	ctx.PositionChild(child, rendering.Offset{X: p.Insets.Left, Y: p.Insets.Top})
	return rendering.Size{
		Width:  childSize.Width + p.Insets.Horizontal(),
		Height: childSize.Height + p.Insets.Vertical(),
	}, nil
}

// Paint forwards to the child.
func (p *Padder) Paint(ctx *PaintContext) error {
	if ctx.ChildCount() > 0 {
		return ctx.PaintChild(ctx.ChildAt(0))
	}
	return nil
}

// FlexRow lays a variable child set along one axis, stacking natural
// sizes and taking the largest cross extent.
type FlexRow struct {
	Axis    Axis
	Spacing float64
}

// Arity reports that the row takes a variable-length child set.
func (f *FlexRow) Arity() Arity { return Variadic() }

// PerformLayout measures children with loosened constraints, positions
// them sequentially along the main axis, and reports the accumulated size.
// The reported natural size may exceed the incoming maximum; the tree
// clamps it and flags overflow.
func (f *FlexRow) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	childConstraints := ctx.Constraints.Loosen()

	main := 0.0
	cross := 0.0
	for slot := 0; slot < ctx.ChildCount(); slot++ {
		if slot > 0 {
			main += f.Spacing
		}
		child := ctx.ChildAt(slot)
		childSize, err := ctx.LayoutChild(child, childConstraints, true)
		if err != nil {
			return rendering.Size{}, err
		}
		if f.Axis == AxisHorizontal {
			ctx.PositionChild(child, rendering.Offset{X: main})
			main += childSize.Width
			cross = math.Max(cross, childSize.Height)
		} else {
			ctx.PositionChild(child, rendering.Offset{Y: main})
			main += childSize.Height
			cross = math.Max(cross, childSize.Width)
		}
	}

	if f.Axis == AxisHorizontal {
		return rendering.Size{Width: main, Height: cross}, nil
	}
	return rendering.Size{Width: cross, Height: main}, nil
}

// Paint draws the children in slot order.
func (f *FlexRow) Paint(ctx *PaintContext) error {
	for slot := 0; slot < ctx.ChildCount(); slot++ {
		if err := ctx.PaintChild(ctx.ChildAt(slot)); err != nil {
			return err
		}
	}
	return nil
}

// ColoredBox is a painted leaf of fixed preferred size.
type ColoredBox struct {
	Color rendering.Color
	// PreferredSize is the natural size before clamping. The zero value
	// expands to the smallest admitted size.
	PreferredSize rendering.Size
}

// Arity reports that the box has no children.
func (b *ColoredBox) Arity() Arity { return Leaf() }

// PerformLayout returns the preferred size; the tree clamps it into the
// received constraints.
func (b *ColoredBox) PerformLayout(ctx *LayoutContext) (rendering.Size, error) {
	return b.PreferredSize, nil
}

// Paint fills the laid-out bounds.
func (b *ColoredBox) Paint(ctx *PaintContext) error {
	size := ctx.Size()
	ctx.Canvas.DrawRect(rendering.RectFromLTWH(0, 0, size.Width, size.Height),
		rendering.Paint{Color: b.Color})
	return nil
}
