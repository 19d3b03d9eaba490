package core

import (
	"slices"

	"github.com/go-weave/weave/pkg/identity"
)

// BuildContext is handed to build functions. It identifies the building
// element and gives access to inherited values and hook storage.
type BuildContext struct {
	tree    *Tree
	element *Element
}

// Element returns the identifier of the element being built.
func (ctx *BuildContext) Element() identity.ID {
	return ctx.element.id
}

// DependOn walks the ancestor chain for the nearest inherited widget of
// type W, registering the building element as a dependent. The element
// rebuilds whenever that widget is replaced and UpdateShouldNotify reports
// a change. Returns the zero value and false when no ancestor matches.
func DependOn[W InheritedWidget](ctx *BuildContext) (W, bool) {
	t := ctx.tree
	current := t.elements[ctx.element.parent]
	for current != nil {
		if w, ok := current.widget.(W); ok {
			registerDependency(t, current, ctx.element)
			return w, true
		}
		current = t.elements[current.parent]
	}
	var zero W
	return zero, false
}

// registerDependency records both directions of the dependency edge: the
// inherited element's notification set and the dependent's cleanup list.
func registerDependency(t *Tree, inherited, dependent *Element) {
	if inherited.dependents == nil {
		inherited.dependents = make(map[identity.ID]struct{})
	}
	inherited.dependents[dependent.id] = struct{}{}
	if !slices.Contains(dependent.dependencies, inherited.id) {
		dependent.dependencies = append(dependent.dependencies, inherited.id)
	}
}
