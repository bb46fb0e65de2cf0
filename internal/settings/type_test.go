package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/settings/testsettings"
)

func TestTestingType(t *testing.T) {
	typ := testsettings.Type()

	assert.Same(t, typ, testsettings.Type())
	assert.Equal(t, "TestSettings", typ.Name())
	assert.Equal(t, 2, typ.Version())
	assert.Equal(t, 13, typ.Versions().Len())
	assert.Len(t, typ.Properties(), 7)

	groups := typ.Groups()
	require.Len(t, groups, 1)
	debugging := groups[0]
	assert.Equal(t, "Debugging", debugging.Path)
	assert.Nil(t, debugging.Toggle)

	test := debugging.Find(testsettings.GroupTest)
	require.NotNil(t, test)
	require.NotNil(t, test.Toggle)
	assert.Equal(t, testsettings.TestProperty1, test.Toggle.Name)

	test2 := debugging.Find(testsettings.GroupTest2)
	require.NotNil(t, test2)
	assert.Equal(t, testsettings.TestProperty2, test2.Toggle.Name)

	test3 := debugging.Find(testsettings.GroupTest3)
	require.NotNil(t, test3)
	assert.Nil(t, test3.Toggle)
	assert.Len(t, test3.Properties, 2)
}

func TestTypeBuilder_DuplicateGroupToggle(t *testing.T) {
	_, err := testsettings.Builder().
		Add(settings.PropertyDefinition{
			Name:        "SecondToggle",
			Kind:        settings.KindBool,
			Group:       testsettings.GroupTest,
			GroupToggle: true,
		}).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrDuplicateGroupToggle)
}

func TestTypeBuilder_CollectsErrors(t *testing.T) {
	_, err := settings.NewTypeBuilder("Broken", settings.Identity{ID: "Broken"}).
		Bool("ModuleFolderName", "", false).
		Bool("A", "", false).
		Bool("A", "", true).
		Version("e1.1.0", 2).
		Version("e1.2.0", 1).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrReservedName)
	assert.ErrorIs(t, err, settings.ErrDuplicateProperty)
	assert.ErrorIs(t, err, settings.ErrVersionRegression)
}

func TestTypeBuilder_RequiresID(t *testing.T) {
	_, err := settings.NewTypeBuilder("NoID", settings.Identity{}).Bool("A", "", false).Build()
	assert.ErrorIs(t, err, settings.ErrInvalidDefinition)

	assert.Panics(t, func() {
		settings.NewTypeBuilder("", settings.Identity{ID: "x"}).MustBuild()
	})
}

func TestTypeBuilder_DefaultGroup(t *testing.T) {
	typ := settings.NewTypeBuilder("Loose", settings.Identity{ID: "Loose"}).
		Bool("A", "", false).
		Int("B", " / ", 3, 0, 5).
		MustBuild()

	groups := typ.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, settings.DefaultGroupName, groups[0].Name)
	assert.Len(t, groups[0].Properties, 2)
	assert.Equal(t, settings.DefaultGroupName, typ.Property("B").Group)
	assert.Equal(t, 1, typ.Version())
}

func TestTypeBuilder_Delimiter(t *testing.T) {
	typ := settings.NewTypeBuilder("Dotted", settings.Identity{ID: "Dotted"}).
		Delimiter(".").
		Bool("A", "Outer.Inner", false).
		MustBuild()

	groups := typ.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Outer", groups[0].Name)
	require.Len(t, groups[0].Groups, 1)
	assert.Equal(t, "Outer.Inner", groups[0].Groups[0].Path)
	assert.Equal(t, ".", typ.Delimiter())
}
