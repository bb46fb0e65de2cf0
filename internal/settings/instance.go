package settings

import (
	"fmt"

	"github.com/dshills/modsettings/internal/notify"
)

// Instance holds the current values of one settings id.
// An Instance is not safe for concurrent mutation.
type Instance struct {
	typ      *Type
	identity Identity
	values   map[string]Value
	notifier *notify.Notifier
}

// Type returns the instance's settings type.
func (i *Instance) Type() *Type { return i.typ }

// Identity returns the structural identity.
func (i *Instance) Identity() Identity { return i.identity }

// ID returns the settings id.
func (i *Instance) ID() string { return i.identity.ID }

// ModuleFolderName returns the storage namespace.
func (i *Instance) ModuleFolderName() string { return i.identity.ModuleFolderName }

// SubFolder returns the storage sub-namespace.
func (i *Instance) SubFolder() string { return i.identity.SubFolder }

// DisplayName returns the settings owner's display name.
func (i *Instance) DisplayName() string { return i.identity.Name() }

// Observe routes value changes to the notifier. A nil notifier disables it.
func (i *Instance) Observe(n *notify.Notifier) {
	i.notifier = n
}

// Get returns the current value of a property.
func (i *Instance) Get(name string) (Value, bool) {
	v, ok := i.values[name]
	return v, ok
}

// Property returns a handle bound to this instance, or nil for unknown names.
func (i *Instance) Property(name string) *Property {
	def := i.typ.Property(name)
	if def == nil {
		return nil
	}
	return &Property{inst: i, def: def}
}

// Field is a persisted name/value pair.
type Field struct {
	Name  string
	Value Value
}

// Fields returns the persisted fields in declaration order.
// Identity fields are not included.
func (i *Instance) Fields() []Field {
	fields := make([]Field, 0, len(i.typ.props))
	for _, p := range i.typ.props {
		fields = append(fields, Field{Name: p.Name, Value: i.values[p.Name]})
	}
	return fields
}

// Snapshot returns a copy of the current values.
func (i *Instance) Snapshot() map[string]Value {
	result := make(map[string]Value, len(i.values))
	for k, v := range i.values {
		result[k] = v
	}
	return result
}

// Equal reports whether both instances have the same type, id and values.
func (i *Instance) Equal(other *Instance) bool {
	if other == nil || i.typ != other.typ || i.identity != other.identity {
		return false
	}
	for name, v := range i.values {
		if !v.Equal(other.values[name]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy sharing the type and identity.
func (i *Instance) Clone() *Instance {
	return &Instance{
		typ:      i.typ,
		identity: i.identity,
		values:   i.Snapshot(),
		notifier: i.notifier,
	}
}

// Assign copies the values of other into the instance without notifying
// observers. Both instances must share the same type.
func (i *Instance) Assign(other *Instance) error {
	if other == nil || other.typ != i.typ {
		return fmt.Errorf("%w: cannot assign values across settings types", ErrTypeMismatch)
	}
	for name, v := range other.values {
		i.values[name] = v
	}
	return nil
}

// Populate loads decoded file data into the instance field by field.
// Identity fields and unknown keys are skipped. Fields that fail to convert
// keep their current value and are reported.
func (i *Instance) Populate(data map[string]any) []*FieldError {
	var errs []*FieldError
	for _, p := range i.typ.props {
		raw, ok := data[p.Name]
		if !ok || raw == nil {
			continue
		}
		v, err := p.Coerce(raw)
		if err != nil {
			errs = append(errs, &FieldError{Property: p.Name, Err: err})
			continue
		}
		i.values[p.Name] = v
	}
	return errs
}

// RequiresRestart reports whether any property is marked RequireRestart.
func (i *Instance) RequiresRestart() bool {
	for _, p := range i.typ.props {
		if p.RequireRestart {
			return true
		}
	}
	return false
}

// Property is a reference to one property of one instance.
type Property struct {
	inst *Instance
	def  *PropertyDefinition
}

// Instance returns the owning instance.
func (p *Property) Instance() *Instance { return p.inst }

// Definition returns the property definition.
func (p *Property) Definition() *PropertyDefinition { return p.def }

// Name returns the property name.
func (p *Property) Name() string { return p.def.Name }

// Value returns the current value.
func (p *Property) Value() Value { return p.inst.values[p.def.Name] }

// Apply writes a value after validating it.
// Edits made by the view layer go through history actions, which call Apply.
func (p *Property) Apply(v Value) error {
	if err := p.def.Validate(v); err != nil {
		return err
	}
	old := p.inst.values[p.def.Name]
	p.inst.values[p.def.Name] = v
	if p.inst.notifier != nil && !old.Equal(v) {
		p.inst.notifier.NotifySet(p.Path(), old.Interface(), v.Interface(), "property")
	}
	return nil
}

// Path returns the notification path "<id>.<name>".
func (p *Property) Path() string {
	return fmt.Sprintf("%s.%s", p.inst.identity.ID, p.def.Name)
}
