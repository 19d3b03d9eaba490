// Package layout implements the render tree of the weave core: an arena of
// geometry-bearing nodes that speak either the box protocol (constraints
// down, sizes up) or the sliver protocol (scroll-aware constraints down,
// scroll geometry up), plus the paint and hit-test walks over that arena.
package layout

import (
	"math"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/rendering"
)

// Inf is the unbounded constraint extent.
var Inf = math.Inf(1)

// Constraints describe the box layout contract a parent offers a child:
// the child's returned size must satisfy min <= size <= max on each axis.
type Constraints struct {
	MinWidth  float64
	MaxWidth  float64
	MinHeight float64
	MaxHeight float64
}

// Tight returns constraints that admit exactly one size.
func Tight(size rendering.Size) Constraints {
	return Constraints{
		MinWidth:  size.Width,
		MaxWidth:  size.Width,
		MinHeight: size.Height,
		MaxHeight: size.Height,
	}
}

// Loose returns constraints that admit any size up to the given one.
func Loose(size rendering.Size) Constraints {
	return Constraints{MaxWidth: size.Width, MaxHeight: size.Height}
}

// Unbounded returns constraints that admit any size at all.
func Unbounded() Constraints {
	return Constraints{MaxWidth: Inf, MaxHeight: Inf}
}

// IsTight reports whether only one size satisfies the constraints.
func (c Constraints) IsTight() bool {
	return c.MinWidth == c.MaxWidth && c.MinHeight == c.MaxHeight
}

// IsNormalized reports whether min <= max holds on both axes.
func (c Constraints) IsNormalized() bool {
	return c.MinWidth <= c.MaxWidth && c.MinHeight <= c.MaxHeight
}

// Biggest returns the largest size satisfying the constraints.
func (c Constraints) Biggest() rendering.Size {
	return rendering.Size{Width: c.MaxWidth, Height: c.MaxHeight}
}

// Smallest returns the smallest size satisfying the constraints.
func (c Constraints) Smallest() rendering.Size {
	return rendering.Size{Width: c.MinWidth, Height: c.MinHeight}
}

// Constrain clamps size into the constraints.
func (c Constraints) Constrain(size rendering.Size) rendering.Size {
	return rendering.Size{
		Width:  clamp(size.Width, c.MinWidth, c.MaxWidth),
		Height: clamp(size.Height, c.MinHeight, c.MaxHeight),
	}
}

// IsSatisfiedBy reports whether the size lies within the constraints.
func (c Constraints) IsSatisfiedBy(size rendering.Size) bool {
	return size.Width >= c.MinWidth && size.Width <= c.MaxWidth &&
		size.Height >= c.MinHeight && size.Height <= c.MaxHeight
}

// Loosen drops the minimums while keeping the maximums.
func (c Constraints) Loosen() Constraints {
	return Constraints{MaxWidth: c.MaxWidth, MaxHeight: c.MaxHeight}
}

// Deflate shrinks the constraints by the given horizontal and vertical
// insets, flooring at zero. Used by nodes that reserve edge space.
func (c Constraints) Deflate(horizontal, vertical float64) Constraints {
	deflated := Constraints{
		MinWidth:  math.Max(c.MinWidth-horizontal, 0),
		MaxWidth:  math.Max(c.MaxWidth-horizontal, 0),
		MinHeight: math.Max(c.MinHeight-vertical, 0),
		MaxHeight: math.Max(c.MaxHeight-vertical, 0),
	}
	return deflated
}

// checkNormalized panics if min > max on either axis. A malformed
// constraint set is a precondition failure, not a recoverable error.
func (c Constraints) checkNormalized() {
	if !c.IsNormalized() {
		errors.ProtocolViolation("constraints not normalized: min (%v, %v) exceeds max (%v, %v)",
			c.MinWidth, c.MinHeight, c.MaxWidth, c.MaxHeight)
	}
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
