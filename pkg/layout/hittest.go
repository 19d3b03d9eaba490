package layout

import (
	"slices"

	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/rendering"
)

// HitTestResult collects the identifiers of nodes under a point,
// deepest first.
type HitTestResult struct {
	Entries []identity.ID
}

// Add inserts a render node into the hit test result list.
func (h *HitTestResult) Add(target identity.ID) {
	h.Entries = append(h.Entries, target)
}

// HitTest walks the render tree from the root to the deepest node under
// position, accumulating the path into result. Returns true if any node
// claimed the hit. Children are visited in reverse slot order so that the
// last-painted (topmost) child wins.
func (t *RenderTree) HitTest(position rendering.Offset, result *HitTestResult) bool {
	if t.root.IsNone() {
		return false
	}
	return t.hitTestNode(t.nodes[t.root], position, result)
}

func (t *RenderTree) hitTestNode(node *RenderNode, position rendering.Offset, result *HitTestResult) bool {
	if node == nil {
		return false
	}
	local := position.Sub(node.offset)
	if !node.size.Contains(local) {
		return false
	}

	childHit := false
	for _, child := range slices.Backward(node.children) {
		if t.hitTestNode(t.nodes[child], local, result) {
			childHit = true
			break
		}
	}

	// A node within bounds claims the hit unless its behavior opts out.
	claims := true
	if target, ok := behaviorOf(node).(HitTestable); ok {
		claims = target.HitTest(local, node.size)
	}

	if childHit || claims {
		result.Add(node.id)
		return true
	}
	return false
}
