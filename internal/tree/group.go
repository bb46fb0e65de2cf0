package tree

import (
	"github.com/dshills/modsettings/internal/settings"
)

// Group is a node of the tree.
type Group struct {
	tree       *Tree
	def        *settings.GroupDefinition
	parent     *Group
	properties []*Property
	groups     []*Group
	toggle     *Property
	expanded   bool
}

// Name returns the group name.
func (g *Group) Name() string { return g.def.Name }

// Path returns the full group path.
func (g *Group) Path() string { return g.def.Path }

// Definition returns the group definition.
func (g *Group) Definition() *settings.GroupDefinition { return g.def }

// Parent returns the parent group, or nil for top-level groups.
func (g *Group) Parent() *Group { return g.parent }

// Properties returns the group's own properties.
func (g *Group) Properties() []*Property { return g.properties }

// Groups returns the child groups.
func (g *Group) Groups() []*Group { return g.groups }

// ToggleProperty returns the group toggle, or nil.
func (g *Group) ToggleProperty() *Property { return g.toggle }

// HasToggle reports whether the group has a toggle property.
func (g *Group) HasToggle() bool { return g.toggle != nil }

// Toggle returns the toggle's value. Groups without a toggle are always on.
func (g *Group) Toggle() bool {
	if g.toggle == nil {
		return true
	}
	return g.toggle.Value().AsBool()
}

// SetToggle sets the toggle through the history stack.
// It is a no-op for groups without a toggle or when the value is unchanged.
func (g *Group) SetToggle(on bool) error {
	if g.toggle == nil || g.Toggle() == on {
		return nil
	}
	return g.toggle.Set(settings.Bool(on))
}

// Expanded reports whether the group shows its children.
func (g *Group) Expanded() bool { return g.expanded }

// SetExpanded expands or collapses the group. Not recorded in history.
func (g *Group) SetExpanded(expanded bool) { g.expanded = expanded }

// ToggleExpanded flips the expansion state.
func (g *Group) ToggleExpanded() { g.expanded = !g.expanded }

// SatisfiesSearch reports whether the group name or any descendant matches
// the owner's search text.
func (g *Group) SatisfiesSearch() bool {
	search := g.tree.owner.SearchText()
	if search == "" {
		return true
	}
	if containsFold(g.def.Name, search) {
		return true
	}
	return g.anyChildSatisfiesSearch()
}

func (g *Group) anyChildSatisfiesSearch() bool {
	for _, p := range g.properties {
		if p.SatisfiesSearch() {
			return true
		}
	}
	for _, sub := range g.groups {
		if sub.SatisfiesSearch() {
			return true
		}
	}
	return false
}

// Visible reports whether the group is shown: it matches the search and its
// parent, if any, is expanded and toggled on.
func (g *Group) Visible() bool {
	if !g.SatisfiesSearch() {
		return false
	}
	if g.parent != nil {
		return g.parent.expanded && g.parent.Toggle()
	}
	return true
}

// Enabled reports whether this group and all its ancestors are toggled on.
func (g *Group) Enabled() bool {
	for cur := g; cur != nil; cur = cur.parent {
		if !cur.Toggle() {
			return false
		}
	}
	return true
}

// DisplayName returns the name, suffixed with "(Disabled)" when toggled off.
func (g *Group) DisplayName() string {
	if g.Toggle() {
		return g.def.Name
	}
	return g.def.Name + " (Disabled)"
}

// HintText returns the toggle's hint, shown when hovering the group header.
func (g *Group) HintText() string {
	if g.toggle == nil {
		return ""
	}
	return g.toggle.def.Hint
}

func (g *Group) walk(fn func(*Group) bool) bool {
	if !fn(g) {
		return false
	}
	for _, sub := range g.groups {
		if !sub.walk(fn) {
			return false
		}
	}
	return true
}
