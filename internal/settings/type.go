package settings

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// DefaultGroupName holds properties declared without a group.
const DefaultGroupName = "Misc"

// DefaultDelimiter separates group path segments.
const DefaultDelimiter = "/"

// Identity holds the structural fields of a settings instance.
// Identity fields locate the instance in storage and are never persisted.
type Identity struct {
	// ID is the stable settings id, unique within a storage provider.
	ID string

	// ModuleFolderName is the storage namespace.
	ModuleFolderName string

	// SubFolder is an optional storage sub-namespace.
	SubFolder string

	// DisplayName is the settings owner's display name. Defaults to ID.
	DisplayName string
}

// Name returns DisplayName, falling back to ID.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.ID
}

// Type is a concrete settings type: a named, versioned definition graph.
// Types are immutable once built.
type Type struct {
	name      string
	identity  Identity
	delimiter string
	versions  *VersionTable
	groups    []*GroupDefinition
	props     []*PropertyDefinition
	index     map[string]*PropertyDefinition
}

// Name returns the type name.
func (t *Type) Name() string { return t.name }

// Identity returns the default identity of new instances.
func (t *Type) Identity() Identity { return t.identity }

// Delimiter returns the group path delimiter.
func (t *Type) Delimiter() string { return t.delimiter }

// Version returns the current storage version.
func (t *Type) Version() int { return t.versions.Current() }

// Versions returns the release tag table.
func (t *Type) Versions() *VersionTable { return t.versions }

// Groups returns the top-level group definitions.
func (t *Type) Groups() []*GroupDefinition {
	result := make([]*GroupDefinition, len(t.groups))
	copy(result, t.groups)
	return result
}

// Properties returns all property definitions in declaration order.
func (t *Type) Properties() []*PropertyDefinition {
	result := make([]*PropertyDefinition, len(t.props))
	copy(result, t.props)
	return result
}

// Property returns the definition with the given name, or nil.
func (t *Type) Property(name string) *PropertyDefinition {
	return t.index[name]
}

// New creates an instance with default values and the type's default identity.
func (t *Type) New() *Instance {
	return t.NewWithIdentity(t.identity)
}

// NewWithIdentity creates an instance with default values.
func (t *Type) NewWithIdentity(id Identity) *Instance {
	values := make(map[string]Value, len(t.props))
	for _, p := range t.props {
		values[p.Name] = p.DefaultValue()
	}
	return &Instance{
		typ:      t,
		identity: id,
		values:   values,
	}
}

// TypeBuilder assembles a Type. Errors are collected and reported by Build.
type TypeBuilder struct {
	typ  *Type
	root *GroupDefinition
	errs error
}

// NewTypeBuilder starts a type with the given name and default identity.
func NewTypeBuilder(name string, identity Identity) *TypeBuilder {
	return &TypeBuilder{
		typ: &Type{
			name:      name,
			identity:  identity,
			delimiter: DefaultDelimiter,
			versions:  NewVersionTable(),
			index:     make(map[string]*PropertyDefinition),
		},
		root: &GroupDefinition{},
	}
}

// Delimiter sets the group path delimiter. Must be called before Add.
func (b *TypeBuilder) Delimiter(d string) *TypeBuilder {
	if d == "" {
		b.errs = multierr.Append(b.errs, fmt.Errorf("%w: empty group delimiter", ErrInvalidDefinition))
		return b
	}
	b.typ.delimiter = d
	return b
}

// Version registers a release tag with its storage version.
func (b *TypeBuilder) Version(tag string, storage int) *TypeBuilder {
	if err := b.typ.versions.Register(tag, storage); err != nil {
		b.errs = multierr.Append(b.errs, err)
	}
	return b
}

// Add declares a property.
func (b *TypeBuilder) Add(def PropertyDefinition) *TypeBuilder {
	if err := def.Check(); err != nil {
		b.errs = multierr.Append(b.errs, err)
		return b
	}
	if _, exists := b.typ.index[def.Name]; exists {
		b.errs = multierr.Append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateProperty, def.Name))
		return b
	}

	p := &def
	if p.Group == "" {
		p.Group = DefaultGroupName
	}

	group := b.root
	for _, segment := range strings.Split(p.Group, b.typ.delimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		group = group.Child(segment, b.typ.delimiter)
	}
	if group == b.root {
		group = b.root.Child(DefaultGroupName, b.typ.delimiter)
	}
	p.Group = group.Path

	if err := group.AddProperty(p); err != nil {
		b.errs = multierr.Append(b.errs, err)
		return b
	}

	b.typ.index[p.Name] = p
	b.typ.props = append(b.typ.props, p)
	return b
}

// Bool declares a bool property.
func (b *TypeBuilder) Bool(name, group string, def bool) *TypeBuilder {
	return b.Add(PropertyDefinition{Name: name, Kind: KindBool, Default: Bool(def), Group: group})
}

// Int declares an int property with bounds.
func (b *TypeBuilder) Int(name, group string, def, min, max int64) *TypeBuilder {
	return b.Add(PropertyDefinition{
		Name:    name,
		Kind:    KindInt,
		Default: Int(def),
		Group:   group,
		Minimum: MinValue(float64(min)),
		Maximum: MaxValue(float64(max)),
	})
}

// Build validates and returns the type.
func (b *TypeBuilder) Build() (*Type, error) {
	if strings.TrimSpace(b.typ.name) == "" {
		b.errs = multierr.Append(b.errs, fmt.Errorf("%w: empty type name", ErrInvalidDefinition))
	}
	if strings.TrimSpace(b.typ.identity.ID) == "" {
		b.errs = multierr.Append(b.errs, fmt.Errorf("%w: type %s has no settings id", ErrInvalidDefinition, b.typ.name))
	}
	if b.errs != nil {
		return nil, fmt.Errorf("building settings type %s: %w", b.typ.name, b.errs)
	}
	b.typ.groups = b.root.Groups
	return b.typ, nil
}

// MustBuild builds the type and panics on error.
// Useful for types declared at init time.
func (b *TypeBuilder) MustBuild() *Type {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
