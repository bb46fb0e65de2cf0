package tree

import (
	"fmt"

	"github.com/dshills/modsettings/internal/history"
	"github.com/dshills/modsettings/internal/settings"
)

// Property is a leaf of the tree bound to one property of the instance.
type Property struct {
	group  *Group
	def    *settings.PropertyDefinition
	handle *settings.Property
}

// Name returns the property name.
func (p *Property) Name() string { return p.def.Name }

// DisplayName returns the label shown to users.
func (p *Property) DisplayName() string { return p.def.Label() }

// HintText returns the property hint.
func (p *Property) HintText() string { return p.def.Hint }

// Definition returns the property definition.
func (p *Property) Definition() *settings.PropertyDefinition { return p.def }

// Group returns the owning group.
func (p *Property) Group() *Group { return p.group }

// IsGroupToggle reports whether this property toggles its group.
func (p *Property) IsGroupToggle() bool { return p.def.GroupToggle }

// Value returns the current value.
func (p *Property) Value() settings.Value { return p.handle.Value() }

// Set changes the value through the history stack.
func (p *Property) Set(v settings.Value) error {
	act, err := history.NewSetProperty(p.handle, v)
	if err != nil {
		return err
	}
	if err := p.group.tree.owner.History().Do(act); err != nil {
		return fmt.Errorf("set %s: %w", p.def.Name, err)
	}
	return nil
}

// SatisfiesSearch reports whether the property label or name matches the
// owner's search text.
func (p *Property) SatisfiesSearch() bool {
	search := p.group.tree.owner.SearchText()
	if search == "" {
		return true
	}
	return containsFold(p.def.Label(), search) || containsFold(p.def.Name, search)
}

// Enabled reports whether the owning group's toggle chain is all on.
// A group toggle is judged by its parent chain only, so it stays editable
// while its own group is off.
func (p *Property) Enabled() bool {
	if p.def.GroupToggle {
		return p.group.parent == nil || p.group.parent.Enabled()
	}
	return p.group.Enabled()
}

// Visible reports whether the property row is shown. Group toggles are
// rendered in the group header instead of as a row.
func (p *Property) Visible() bool {
	if p.def.GroupToggle {
		return false
	}
	g := p.group
	if !g.Visible() || !g.expanded || !g.Toggle() {
		return false
	}
	return p.SatisfiesSearch() || containsFold(g.def.Name, g.tree.owner.SearchText())
}
