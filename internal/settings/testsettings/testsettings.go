// Package testsettings declares the "Testing" settings type used by tests
// and as a reference definition for settings owners.
package testsettings

import (
	"sync"

	"github.com/dshills/modsettings/internal/settings"
)

// ID is the settings id of the Testing type.
const ID = "Testing"

// Property names.
const (
	DebugMode     = "DebugMode"
	TestProperty1 = "TestProperty1"
	TestProperty5 = "TestProperty5"
	TestProperty2 = "TestProperty2"
	TestProperty4 = "TestProperty4"
	TestProperty3 = "TestProperty3"
	TestProperty6 = "TestProperty6"
)

// Group paths.
const (
	GroupDebugging = "Debugging"
	GroupTest      = "Debugging/Test Group"
	GroupTest2     = "Debugging/Test Group/Test Group 2"
	GroupTest3     = "Debugging/Test Group/Test Group 3"
	releaseVersion = 2
)

var releases = []string{
	"e1.0.0", "e1.0.1", "e1.0.2", "e1.0.3", "e1.0.4", "e1.0.5", "e1.0.6",
	"e1.0.7", "e1.0.8", "e1.0.9", "e1.0.10", "e1.0.11", "e1.1.0",
}

// Builder returns a builder preloaded with the Testing definitions so tests
// can extend or break them.
func Builder() *settings.TypeBuilder {
	b := settings.NewTypeBuilder("TestSettings", settings.Identity{
		ID:               ID,
		ModuleFolderName: "Testing",
		DisplayName:      "Testing",
	})
	for _, tag := range releases {
		b.Version(tag, releaseVersion)
	}

	return b.
		Add(settings.PropertyDefinition{
			Name:        DebugMode,
			DisplayName: "Enable Crash Error Reporting",
			Hint:        "When enabled, shows a message box showing the cause of a crash.",
			Kind:        settings.KindBool,
			Default:     settings.Bool(true),
			Group:       GroupDebugging,
		}).
		Add(settings.PropertyDefinition{
			Name:        TestProperty1,
			DisplayName: "Test Property 1",
			Kind:        settings.KindBool,
			Default:     settings.Bool(false),
			Group:       GroupTest,
			GroupToggle: true,
		}).
		Add(settings.PropertyDefinition{
			Name:        TestProperty5,
			DisplayName: "Test Property 5",
			Kind:        settings.KindBool,
			Default:     settings.Bool(false),
			Group:       GroupTest,
		}).
		Add(settings.PropertyDefinition{
			Name:        TestProperty2,
			DisplayName: "Test Property 2",
			Kind:        settings.KindBool,
			Default:     settings.Bool(false),
			Group:       GroupTest2,
			GroupToggle: true,
		}).
		Add(settings.PropertyDefinition{
			Name:        TestProperty4,
			DisplayName: "Test Property 4",
			Kind:        settings.KindFloat,
			Default:     settings.Float(0.2),
			Minimum:     settings.MinValue(0),
			Maximum:     settings.MaxValue(100),
			Precision:   2,
			Group:       GroupTest2,
		}).
		Add(settings.PropertyDefinition{
			Name:           TestProperty3,
			DisplayName:    "Test Property 3",
			Kind:           settings.KindInt,
			Default:        settings.Int(2),
			Minimum:        settings.MinValue(0),
			Maximum:        settings.MaxValue(10),
			RequireRestart: true,
			Group:          GroupTest3,
		}).
		Add(settings.PropertyDefinition{
			Name:           TestProperty6,
			DisplayName:    "Test Property 6",
			Kind:           settings.KindString,
			Default:        settings.String(""),
			RequireRestart: true,
			Group:          GroupTest3,
		})
}

// Type returns the Testing settings type. The same *settings.Type is
// returned on every call.
var Type = sync.OnceValue(func() *settings.Type {
	return Builder().MustBuild()
})

// New returns a Testing instance with default values.
func New() *settings.Instance {
	return Type().New()
}
