package core

import (
	"testing"

	"github.com/go-weave/weave/pkg/identity"
)

type theme struct {
	InheritedBase
	Value string
	Child Widget
}

func (w theme) UpdateShouldNotify(old InheritedWidget) bool {
	return w.Value != old.(theme).Value
}

func (w theme) ChildWidget() Widget { return w.Child }

type themed struct {
	StatelessBase
	builds *int
	seen   *[]string
}

func (w themed) Build(ctx *BuildContext) Widget {
	*w.builds++
	if th, ok := DependOn[theme](ctx); ok {
		*w.seen = append(*w.seen, th.Value)
	}
	return colorBox{Width: 5, Height: 5}
}

type pair struct {
	StatelessBase
	Left, Right Widget
}

func (w pair) Build(*BuildContext) Widget {
	return row{Items: []Widget{w.Left, w.Right}}
}

// themedFixture mounts appRoot -> theme -> pair -> row -> {themed, label}.
// The pair widget value is reused across updates so reconciliation can
// short-circuit everything below the theme; only the dependency edge
// reaches the themed leaf.
func themedFixture(t *testing.T) (tree *Tree, themeEl identity.ID, content pair, themedBuilds, labelBuilds *int, seen *[]string) {
	t.Helper()
	tree, _, _ = newFixture()
	themedBuilds, labelBuilds = new(int), new(int)
	seen = new([]string)
	content = pair{
		Left:  themed{builds: themedBuilds, seen: seen},
		Right: label{Text: "static", builds: labelBuilds},
	}
	root, err := tree.Mount(appRoot{Child: theme{Value: "dark", Child: content}}, identity.None, 0)
	if err != nil {
		t.Fatal(err)
	}
	mustBuild(t, tree)
	themeEl = childOf(t, tree, root)
	return tree, themeEl, content, themedBuilds, labelBuilds, seen
}

func TestDependOnReadsNearestAncestorValue(t *testing.T) {
	_, _, _, builds, _, seen := themedFixture(t)

	if *builds != 1 {
		t.Fatalf("themed builds = %d, want 1", *builds)
	}
	if len(*seen) != 1 || (*seen)[0] != "dark" {
		t.Errorf("themed saw %v, want [dark]", *seen)
	}
}

func TestInheritedUpdateNotifiesDependentsOnly(t *testing.T) {
	tree, themeEl, content, themedBuilds, labelBuilds, seen := themedFixture(t)

	if err := tree.Update(themeEl, theme{Value: "light", Child: content}); err != nil {
		t.Fatal(err)
	}
	mustBuild(t, tree)

	if *themedBuilds != 2 {
		t.Errorf("dependent builds = %d, want 2", *themedBuilds)
	}
	if (*seen)[len(*seen)-1] != "light" {
		t.Errorf("dependent saw %v, want light last", *seen)
	}
	if *labelBuilds != 1 {
		t.Errorf("non-dependent builds = %d, want 1 (must not rebuild)", *labelBuilds)
	}
}

func TestInheritedUpdateSkipsNotifyWhenValueUnchanged(t *testing.T) {
	tree, themeEl, content, themedBuilds, _, _ := themedFixture(t)

	if err := tree.Update(themeEl, theme{Value: "dark", Child: content}); err != nil {
		t.Fatal(err)
	}
	mustBuild(t, tree)

	if *themedBuilds != 1 {
		t.Errorf("dependent builds = %d, want 1 (UpdateShouldNotify was false)", *themedBuilds)
	}
}

func TestDependOnWithoutProviderReturnsFalse(t *testing.T) {
	tree, _, _ := newFixture()
	builds := 0
	seen := []string{}
	tree.Mount(appRoot{Child: themed{builds: &builds, seen: &seen}}, identity.None, 0)
	mustBuild(t, tree)

	if builds != 1 {
		t.Fatalf("builds = %d, want 1", builds)
	}
	if len(seen) != 0 {
		t.Errorf("orphan dependent saw %v, want nothing", seen)
	}
}

func TestUnmountDropsDependencyRegistration(t *testing.T) {
	tree, themeEl, content, _, _, _ := themedFixture(t)

	inh := tree.ElementOf(themeEl)
	if len(inh.dependents) != 1 {
		t.Fatalf("dependents = %d, want 1", len(inh.dependents))
	}

	// Unmount the themed leaf by shrinking the subtree to the label only.
	if err := tree.Update(themeEl, theme{Value: "dark", Child: wrapper{Child: content.Right}}); err != nil {
		t.Fatal(err)
	}
	mustBuild(t, tree)

	if len(inh.dependents) != 0 {
		t.Errorf("dependents after unmount = %d, want 0", len(inh.dependents))
	}
}
