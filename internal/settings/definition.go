package settings

import (
	"fmt"
	"math"
	"strings"
)

// PropertyDefinition defines one configurable field with its metadata.
type PropertyDefinition struct {
	// Name is the persisted field name (e.g., "DebugMode").
	Name string

	// DisplayName is the label shown by the view layer. Defaults to Name.
	DisplayName string

	// Hint is human-readable help text.
	Hint string

	// Kind is the property's semantic type.
	Kind Kind

	// Default is the default value. An invalid Value means the kind's zero value.
	Default Value

	// Minimum for numeric kinds (nil means no minimum).
	Minimum *float64

	// Maximum for numeric kinds (nil means no maximum).
	Maximum *float64

	// Precision is the number of decimals kept for floats. Zero keeps all.
	Precision int

	// RequireRestart marks properties whose change needs a host restart.
	RequireRestart bool

	// Group is the delimited path of the owning group (e.g., "Debugging/Test Group").
	Group string

	// GroupToggle marks the bool property that enables or disables its group.
	GroupToggle bool

	// Order sorts properties within a group. Ties keep declaration order.
	Order int
}

// Label returns DisplayName, falling back to Name.
func (d *PropertyDefinition) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// Check verifies the definition is well formed.
func (d *PropertyDefinition) Check() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if IsReservedName(d.Name) {
		return fmt.Errorf("%w: %s", ErrReservedName, d.Name)
	}
	if d.Kind > KindString {
		return fmt.Errorf("%w: %s has unknown kind %d", ErrInvalidDefinition, d.Name, d.Kind)
	}
	if d.GroupToggle && d.Kind != KindBool {
		return fmt.Errorf("%w: %s", ErrInvalidGroupToggle, d.Name)
	}
	if d.Minimum != nil && d.Maximum != nil && *d.Minimum > *d.Maximum {
		return fmt.Errorf("%w: %s minimum %v above maximum %v", ErrInvalidDefinition, d.Name, *d.Minimum, *d.Maximum)
	}
	if d.Precision < 0 {
		return fmt.Errorf("%w: %s negative precision", ErrInvalidDefinition, d.Name)
	}
	if d.Default.IsValid() {
		if d.Default.Kind() != d.Kind && !(d.Kind == KindFloat && d.Default.Kind() == KindInt) {
			return fmt.Errorf("%w: %s default is %s, want %s", ErrInvalidDefinition, d.Name, d.Default.Kind(), d.Kind)
		}
		if err := d.Validate(d.convert(d.Default)); err != nil {
			return fmt.Errorf("%w: default: %v", ErrInvalidDefinition, err)
		}
	}
	return nil
}

// DefaultValue returns the default value, or the kind's zero value.
func (d *PropertyDefinition) DefaultValue() Value {
	if !d.Default.IsValid() {
		return Zero(d.Kind)
	}
	return d.round(d.convert(d.Default))
}

// Validate checks that v has the property's kind and lies within bounds.
func (d *PropertyDefinition) Validate(v Value) error {
	if !v.IsValid() || v.Kind() != d.Kind {
		return &ValidationError{
			Property: d.Name,
			Value:    v,
			Err:      ErrTypeMismatch,
			Message:  fmt.Sprintf("expected %s, got %s", d.Kind, v.Kind()),
		}
	}

	if d.Kind == KindInt || d.Kind == KindFloat {
		f := v.AsFloat()
		if d.Minimum != nil && f < *d.Minimum {
			return &ValidationError{
				Property: d.Name,
				Value:    v,
				Err:      ErrOutOfRange,
				Message:  fmt.Sprintf("value is less than minimum %v", *d.Minimum),
			}
		}
		if d.Maximum != nil && f > *d.Maximum {
			return &ValidationError{
				Property: d.Name,
				Value:    v,
				Err:      ErrOutOfRange,
				Message:  fmt.Sprintf("value is greater than maximum %v", *d.Maximum),
			}
		}
	}
	return nil
}

// Prepare converts an edit value for this property: ints are widened for
// float properties and floats are rounded to Precision. Out of range values
// are rejected.
func (d *PropertyDefinition) Prepare(v Value) (Value, error) {
	v = d.round(d.convert(v))
	if err := d.Validate(v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Coerce converts decoded file data into a value for this property.
// Numeric values outside the bounds are clamped.
func (d *PropertyDefinition) Coerce(raw any) (Value, error) {
	v, err := Coerce(d.Kind, raw)
	if err != nil {
		return Value{}, err
	}
	return d.clamp(d.round(v)), nil
}

func (d *PropertyDefinition) convert(v Value) Value {
	if d.Kind == KindFloat && v.Kind() == KindInt && v.IsValid() {
		return Float(v.AsFloat())
	}
	return v
}

func (d *PropertyDefinition) round(v Value) Value {
	if v.Kind() != KindFloat || d.Precision <= 0 {
		return v
	}
	p := math.Pow10(d.Precision)
	return Float(math.Round(v.AsFloat()*p) / p)
}

func (d *PropertyDefinition) clamp(v Value) Value {
	switch v.Kind() {
	case KindInt:
		i := v.AsInt()
		if d.Minimum != nil && float64(i) < *d.Minimum {
			i = int64(math.Ceil(*d.Minimum))
		}
		if d.Maximum != nil && float64(i) > *d.Maximum {
			i = int64(math.Floor(*d.Maximum))
		}
		return Int(i)
	case KindFloat:
		f := v.AsFloat()
		if d.Minimum != nil && f < *d.Minimum {
			f = *d.Minimum
		}
		if d.Maximum != nil && f > *d.Maximum {
			f = *d.Maximum
		}
		return Float(f)
	}
	return v
}

// MinValue creates a pointer to a float64 for use as Minimum.
func MinValue(v float64) *float64 {
	return &v
}

// MaxValue creates a pointer to a float64 for use as Maximum.
func MaxValue(v float64) *float64 {
	return &v
}

// GroupDefinition is a named node in the definition tree.
type GroupDefinition struct {
	// Name is the last path segment.
	Name string

	// Path is the full delimited path from the root.
	Path string

	// Properties are the group's own properties, sorted by Order.
	Properties []*PropertyDefinition

	// Groups are the child groups in declaration order.
	Groups []*GroupDefinition

	// Toggle is the group toggle property, if any.
	Toggle *PropertyDefinition
}

// AddProperty appends a property to the group.
// A second group toggle returns ErrDuplicateGroupToggle.
func (g *GroupDefinition) AddProperty(p *PropertyDefinition) error {
	if p.GroupToggle {
		if p.Kind != KindBool {
			return fmt.Errorf("%w: %s", ErrInvalidGroupToggle, p.Name)
		}
		if g.Toggle != nil {
			return fmt.Errorf("%w: group %q has %s, cannot add %s",
				ErrDuplicateGroupToggle, g.Path, g.Toggle.Name, p.Name)
		}
		g.Toggle = p
	}

	// Insertion keeps declaration order among equal Order values.
	i := len(g.Properties)
	for i > 0 && g.Properties[i-1].Order > p.Order {
		i--
	}
	g.Properties = append(g.Properties, nil)
	copy(g.Properties[i+1:], g.Properties[i:])
	g.Properties[i] = p
	return nil
}

// Child returns the direct child group with the given name, creating it if needed.
func (g *GroupDefinition) Child(name, delimiter string) *GroupDefinition {
	for _, sub := range g.Groups {
		if sub.Name == name {
			return sub
		}
	}
	path := name
	if g.Path != "" {
		path = g.Path + delimiter + name
	}
	sub := &GroupDefinition{Name: name, Path: path}
	g.Groups = append(g.Groups, sub)
	return sub
}

// Find returns the descendant group with the given full path.
func (g *GroupDefinition) Find(path string) *GroupDefinition {
	if g.Path == path {
		return g
	}
	for _, sub := range g.Groups {
		if found := sub.Find(path); found != nil {
			return found
		}
	}
	return nil
}

// Walk calls fn for every property in the group and its descendants,
// depth first, own properties before child groups.
func (g *GroupDefinition) Walk(fn func(*PropertyDefinition)) {
	for _, p := range g.Properties {
		fn(p)
	}
	for _, sub := range g.Groups {
		sub.Walk(fn)
	}
}

// IsReservedName reports whether name is a structural field that is never
// persisted or populated.
func IsReservedName(name string) bool {
	switch name {
	case "ID", "Id", "ModuleFolderName", "ModName", "SubFolder", "SubGroupDelimiter", VersionKey:
		return true
	}
	return false
}

// VersionKey is the persisted field that carries the storage version.
const VersionKey = "_version"
