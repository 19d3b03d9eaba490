package core

import (
	"reflect"

	"github.com/go-weave/weave/pkg/layout"
)

// Widget is an immutable description of part of the interface. Widgets are
// cheap values rebuilt freely; the persistent identity lives in the element
// tree.
type Widget interface {
	// Key distinguishes siblings of the same type during reconciliation.
	// Comparable values only; nil means "match by type alone".
	Key() any
}

// StatelessWidget describes its subtree purely as a function of its own
// fields.
type StatelessWidget interface {
	Widget

	// Build returns the widget configuration for this widget's child.
	// Returning nil means the widget has no subtree.
	Build(ctx *BuildContext) Widget
}

// RenderWidget configures a box-protocol render node.
type RenderWidget interface {
	Widget

	// CreateRenderNode builds the behavior backing this widget. Called
	// once when the hosting element mounts.
	CreateRenderNode() layout.BoxNode

	// UpdateRenderNode pushes new configuration into an existing behavior
	// after reconciliation kept the element alive.
	UpdateRenderNode(node layout.BoxNode)

	// ChildWidgets returns the configurations for the node's children in
	// slot order.
	ChildWidgets() []Widget
}

// SliverWidget configures a sliver-protocol render node. It is the scroll
// counterpart of RenderWidget.
type SliverWidget interface {
	Widget

	CreateSliverNode() layout.SliverNode
	UpdateSliverNode(node layout.SliverNode)
	ChildWidgets() []Widget
}

// InheritedWidget exposes a value to every descendant that registers a
// dependency on it.
type InheritedWidget interface {
	Widget

	// UpdateShouldNotify reports whether dependents must rebuild after
	// this widget replaced old in the tree.
	UpdateShouldNotify(old InheritedWidget) bool

	// ChildWidget returns the subtree the value is exposed to.
	ChildWidget() Widget
}

// CanUpdate reports whether an element configured with existing can accept
// next in place. Reconciliation looks at the dynamic type and the key,
// nothing deeper.
func CanUpdate(existing, next Widget) bool {
	if existing == nil || next == nil {
		return false
	}
	if reflect.TypeOf(existing) != reflect.TypeOf(next) {
		return false
	}
	return reflect.DeepEqual(existing.Key(), next.Key())
}

// StatelessBase supplies the Key plumbing for stateless widgets. Embed it
// and implement Build.
type StatelessBase struct {
	// WidgetKey is returned by Key. Leave nil to match by type alone.
	WidgetKey any
}

// Key returns the embedded key.
func (b StatelessBase) Key() any { return b.WidgetKey }

// RenderBase supplies the Key plumbing plus no-op defaults for render
// widgets whose behavior needs no reconfiguration or children.
type RenderBase struct {
	WidgetKey any
}

// Key returns the embedded key.
func (b RenderBase) Key() any { return b.WidgetKey }

// UpdateRenderNode does nothing. Override when the behavior carries
// configuration.
func (RenderBase) UpdateRenderNode(layout.BoxNode) {}

// ChildWidgets returns no children.
func (RenderBase) ChildWidgets() []Widget { return nil }

// InheritedBase supplies the Key plumbing for inherited widgets.
type InheritedBase struct {
	WidgetKey any
}

// Key returns the embedded key.
func (b InheritedBase) Key() any { return b.WidgetKey }
