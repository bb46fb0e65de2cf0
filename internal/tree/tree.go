// Package tree builds the view-facing group tree of a settings instance.
//
// The tree mirrors the definition graph of a settings type and derives the
// display state the view layer binds to: search matches, visibility,
// enabled state and group toggles. Edits made through the tree are routed
// through the owner's history stack so they can be undone.
package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/modsettings/internal/history"
	"github.com/dshills/modsettings/internal/settings"
)

var (
	// ErrNilOwner indicates a tree was built without an owner.
	ErrNilOwner = errors.New("tree owner is nil")

	// ErrTypeChanged indicates Refresh was given an instance of another type.
	ErrTypeChanged = errors.New("instance has a different settings type")
)

// Owner supplies the shared state of an editing session.
type Owner interface {
	// SearchText returns the active search filter. Empty means no filter.
	SearchText() string

	// History returns the stack edits are recorded on.
	History() *history.Stack
}

// Tree is the group tree of one settings instance.
type Tree struct {
	owner  Owner
	inst   *settings.Instance
	groups []*Group
	props  map[string]*Property
}

// New builds the tree for inst. A definition group with more than one
// toggle property is rejected with settings.ErrDuplicateGroupToggle.
func New(owner Owner, inst *settings.Instance) (*Tree, error) {
	if owner == nil {
		return nil, ErrNilOwner
	}
	if inst == nil {
		return nil, fmt.Errorf("build tree: nil instance")
	}

	t := &Tree{
		owner: owner,
		inst:  inst,
		props: make(map[string]*Property),
	}
	for _, def := range inst.Type().Groups() {
		g, err := t.newGroup(def, nil)
		if err != nil {
			return nil, err
		}
		t.groups = append(t.groups, g)
	}
	return t, nil
}

func (t *Tree) newGroup(def *settings.GroupDefinition, parent *Group) (*Group, error) {
	g := &Group{
		tree:     t,
		def:      def,
		parent:   parent,
		expanded: true,
	}

	for _, pd := range def.Properties {
		p := &Property{
			group:  g,
			def:    pd,
			handle: t.inst.Property(pd.Name),
		}
		if p.handle == nil {
			return nil, fmt.Errorf("%w: %s", settings.ErrUnknownProperty, pd.Name)
		}
		if pd.GroupToggle {
			if g.toggle != nil {
				return nil, fmt.Errorf("%w: group %q has %s, cannot add %s",
					settings.ErrDuplicateGroupToggle, def.Path, g.toggle.Name(), pd.Name)
			}
			g.toggle = p
		}
		g.properties = append(g.properties, p)
		t.props[pd.Name] = p
	}

	for _, sub := range def.Groups {
		child, err := t.newGroup(sub, g)
		if err != nil {
			return nil, err
		}
		g.groups = append(g.groups, child)
	}
	return g, nil
}

// Instance returns the instance the tree is bound to.
func (t *Tree) Instance() *settings.Instance { return t.inst }

// Groups returns the top-level groups.
func (t *Tree) Groups() []*Group { return t.groups }

// Property returns the node of the named property, or nil.
func (t *Tree) Property(name string) *Property { return t.props[name] }

// Group returns the group with the given full path, or nil.
func (t *Tree) Group(path string) *Group {
	var found *Group
	t.Walk(func(g *Group) bool {
		if g.def.Path == path {
			found = g
			return false
		}
		return true
	})
	return found
}

// Walk visits groups depth first until fn returns false.
func (t *Tree) Walk(fn func(*Group) bool) {
	for _, g := range t.groups {
		if !g.walk(fn) {
			return
		}
	}
}

// Refresh rebinds every property to inst, which must share the tree's type.
// Call it after the registered instance was swapped by a reset or override.
// Expansion state is kept.
func (t *Tree) Refresh(inst *settings.Instance) error {
	if inst == nil || inst.Type() != t.inst.Type() {
		return ErrTypeChanged
	}
	for name, p := range t.props {
		p.handle = inst.Property(name)
	}
	t.inst = inst
	return nil
}

// VisibleProperties returns the properties currently shown, in tree order.
func (t *Tree) VisibleProperties() []*Property {
	var result []*Property
	t.Walk(func(g *Group) bool {
		for _, p := range g.properties {
			if p.Visible() {
				result = append(result, p)
			}
		}
		return true
	})
	return result
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
