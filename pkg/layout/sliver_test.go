package layout

import (
	"context"
	"testing"

	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// fixedRun builds a fixed-extent sliver whose total scroll extent is the
// given length, in 50-pixel items.
func fixedRun(length float64) *SliverFixedExtent {
	return &SliverFixedExtent{ItemExtent: 50, Count: int(length / 50)}
}

// scrollTree assembles viewport -> group -> fixed-extent runs and returns
// the tree plus the interesting identifiers.
func scrollTree(t *testing.T, axis Axis, scrollOffset float64, lengths ...float64) (*RenderTree, *Viewport, identity.ID, []identity.ID) {
	t.Helper()
	tree := NewRenderTree(nil)
	viewport := &Viewport{Axis: axis}
	viewport.SetScrollOffset(scrollOffset)
	root, err := tree.InsertBox(viewport, identity.None, 0)
	if err != nil {
		t.Fatal(err)
	}
	group, err := tree.InsertSliver(&SliverGroup{}, root, 0)
	if err != nil {
		t.Fatal(err)
	}
	children := make([]identity.ID, len(lengths))
	for i, length := range lengths {
		children[i], err = tree.InsertSliver(fixedRun(length), group, i)
		if err != nil {
			t.Fatal(err)
		}
	}
	return tree, viewport, group, children
}

func TestSliverGroupSequentialAccumulation(t *testing.T) {
	// Children of scroll extents 50, 200 and 400 under scroll offset 100
	// in a 600-tall viewport: the first is fully scrolled past, the
	// second is half consumed, the third fits whole.
	tree, _, group, children := scrollTree(t, AxisVertical, 100, 50, 200, 400)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("FlushLayout: %v", err)
	}

	geometry := tree.Node(group).Geometry()
	if geometry.ScrollExtent != 650 {
		t.Errorf("group scroll extent = %v, want 650", geometry.ScrollExtent)
	}
	if geometry.PaintExtent != 550 {
		t.Errorf("group paint extent = %v, want 550", geometry.PaintExtent)
	}

	wantPaint := []float64{0, 150, 400}
	for i, child := range children {
		if got := tree.Node(child).Geometry().PaintExtent; got != wantPaint[i] {
			t.Errorf("child %d paint extent = %v, want %v", i, got, wantPaint[i])
		}
	}
	if tree.Node(children[0]).Geometry().Visible {
		t.Error("fully scrolled-past child reported visible")
	}

	// Positions accumulate along the main axis.
	if got := tree.Node(children[1]).Offset(); got != (rendering.Offset{Y: 0}) {
		t.Errorf("second child offset = %v, want (0, 0)", got)
	}
	if got := tree.Node(children[2]).Offset(); got != (rendering.Offset{Y: 150}) {
		t.Errorf("third child offset = %v, want (0, 150)", got)
	}
}

func TestSliverGroupHorizontalAxis(t *testing.T) {
	tree, _, group, children := scrollTree(t, AxisHorizontal, 100, 50, 200, 400)

	// An 800-wide horizontal viewport offers 800 of paint room; all three
	// children still fit after the 100 scroll.
	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("FlushLayout: %v", err)
	}

	geometry := tree.Node(group).Geometry()
	if geometry.ScrollExtent != 650 {
		t.Errorf("group scroll extent = %v, want 650", geometry.ScrollExtent)
	}
	if geometry.PaintExtent != 550 {
		t.Errorf("group paint extent = %v, want 550", geometry.PaintExtent)
	}

	// Horizontal viewports advance X, not Y.
	if got := tree.Node(children[2]).Offset(); got != (rendering.Offset{X: 150}) {
		t.Errorf("third child offset = %v, want (150, 0)", got)
	}
	if got := tree.Node(children[2]).Size(); got != (rendering.Size{Width: 400, Height: 600}) {
		t.Errorf("third child footprint = %v, want 400x600", got)
	}
}

func TestSliverGroupStopsWhenViewportFull(t *testing.T) {
	tree, _, group, children := scrollTree(t, AxisVertical, 0, 500, 500, 500)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("FlushLayout: %v", err)
	}

	geometry := tree.Node(group).Geometry()
	if geometry.PaintExtent != 600 {
		t.Errorf("group paint extent = %v, want the full 600", geometry.PaintExtent)
	}
	if !geometry.HasVisualOverflow {
		t.Error("overfull group did not flag visual overflow")
	}
	// The second child was clamped to the last 100 pixels of room, and the
	// third was never laid out at all.
	if got := tree.Node(children[1]).Geometry().PaintExtent; got != 100 {
		t.Errorf("second child paint extent = %v, want 100", got)
	}
	if !tree.Node(children[2]).NeedsLayout() {
		t.Error("child past the full viewport should remain unvisited")
	}
	// Scroll extent only covers visited children; the group reports what
	// it measured, and more content appears as the user scrolls.
	if geometry.ScrollExtent != 1000 {
		t.Errorf("group scroll extent = %v, want 1000", geometry.ScrollExtent)
	}
}

func TestSliverScrolledPastEverything(t *testing.T) {
	tree, _, group, _ := scrollTree(t, AxisVertical, 900, 200, 200)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("FlushLayout: %v", err)
	}

	geometry := tree.Node(group).Geometry()
	if geometry.PaintExtent != 0 {
		t.Errorf("paint extent = %v, want 0 past the end", geometry.PaintExtent)
	}
	if geometry.Visible {
		t.Error("off-screen group reported visible")
	}
	if geometry.ScrollExtent != 400 {
		t.Errorf("scroll extent = %v, want 400", geometry.ScrollExtent)
	}
}

func TestScrollMovesContent(t *testing.T) {
	tree, viewport, group, _ := scrollTree(t, AxisVertical, 0, 2000)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatal(err)
	}
	if got := tree.Node(group).Geometry().PaintExtent; got != 600 {
		t.Fatalf("initial paint extent = %v, want 600", got)
	}

	viewport.SetScrollOffset(1700)
	tree.MarkNeedsLayout(tree.Root())
	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatal(err)
	}
	if got := tree.Node(group).Geometry().PaintExtent; got != 300 {
		t.Errorf("paint extent near the end = %v, want the remaining 300", got)
	}
}

func TestSliverFixedExtentGeometry(t *testing.T) {
	tests := []struct {
		name        string
		constraints SliverConstraints
		sliver      SliverFixedExtent
		want        SliverGeometry
	}{
		{
			name: "fully visible",
			constraints: SliverConstraints{
				RemainingPaintExtent: 600, CrossAxisExtent: 800, ViewportMainAxisExtent: 600,
			},
			sliver: SliverFixedExtent{ItemExtent: 50, Count: 4},
			want:   SliverGeometry{ScrollExtent: 200, PaintExtent: 200, Visible: true},
		},
		{
			name: "partially scrolled past",
			constraints: SliverConstraints{
				ScrollOffset:         120,
				RemainingPaintExtent: 600, CrossAxisExtent: 800, ViewportMainAxisExtent: 600,
			},
			sliver: SliverFixedExtent{ItemExtent: 50, Count: 10},
			want:   SliverGeometry{ScrollExtent: 500, PaintExtent: 380, Visible: true},
		},
		{
			name: "taller than the viewport",
			constraints: SliverConstraints{
				RemainingPaintExtent: 600, CrossAxisExtent: 800, ViewportMainAxisExtent: 600,
			},
			sliver: SliverFixedExtent{ItemExtent: 100, Count: 20},
			want: SliverGeometry{
				ScrollExtent: 2000, PaintExtent: 600,
				Visible: true, HasVisualOverflow: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewRenderTree(nil)
			viewport, _ := tree.InsertBox(&Viewport{}, identity.None, 0)
			id, err := tree.InsertSliver(&tt.sliver, viewport, 0)
			if err != nil {
				t.Fatal(err)
			}
			got, err := tree.layoutSliverNode(context.Background(), id, tt.constraints)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("geometry = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSliverConstraintsMustBeNormalized(t *testing.T) {
	tree := NewRenderTree(nil)
	viewport, _ := tree.InsertBox(&Viewport{}, identity.None, 0)
	id, _ := tree.InsertSliver(fixedRun(200), viewport, 0)

	wantProtocolPanic(t, func() {
		_, _ = tree.layoutSliverNode(context.Background(), id, SliverConstraints{
			ScrollOffset:         -10,
			RemainingPaintExtent: 600,
		})
	})
}

func TestViewportPaintsOnlyReachedChildren(t *testing.T) {
	tree, _, _, _ := scrollTree(t, AxisVertical, 0, 500, 500, 500)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatal(err)
	}

	// The third run was never laid out; painting the frame must skip it
	// rather than trip the paint-before-layout check.
	var recorder rendering.PictureRecorder
	canvas := recorder.BeginRecording(rendering.Size{Width: 800, Height: 600})
	if err := tree.PaintRoot(context.Background(), canvas); err != nil {
		t.Fatalf("PaintRoot: %v", err)
	}
	if recorder.EndRecording().OpCount() == 0 {
		t.Fatal("scroll frame recorded no drawing commands")
	}
}

func TestSliverBoundaryReflowsAfterMark(t *testing.T) {
	tree, _, group, children := scrollTree(t, AxisVertical, 0, 200, 400)

	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("FlushLayout: %v", err)
	}

	// A sliver is always its own relayout boundary, so marking it must
	// schedule a real reflow, not fall through the flush untouched.
	tree.MarkNeedsLayout(children[0])
	if err := tree.FlushLayout(context.Background(), Tight(rendering.Size{Width: 800, Height: 600})); err != nil {
		t.Fatalf("reflow: %v", err)
	}

	if tree.Node(children[0]).NeedsLayout() {
		t.Fatal("marked sliver still needs layout after a successful flush")
	}
	if tree.NeedsLayout() {
		t.Fatal("tree-level layout flag survived the flush")
	}
	if got := tree.Node(group).Geometry().ScrollExtent; got != 600 {
		t.Errorf("group scroll extent after reflow = %v, want 600", got)
	}

	var recorder rendering.PictureRecorder
	canvas := recorder.BeginRecording(rendering.Size{Width: 800, Height: 600})
	if err := tree.PaintRoot(context.Background(), canvas); err != nil {
		t.Fatalf("PaintRoot after reflow: %v", err)
	}
}
