// Package settings provides the settings object model.
//
// A settings owner describes its configurable fields once, at startup, as a
// Type: a named definition graph of typed properties organized into nested
// groups. Instances of a Type hold the current values for one settings id.
//
// # Values
//
// Property values are carried by Value, a tagged variant over the four
// supported kinds:
//
//	settings.Bool(true)
//	settings.Int(2)
//	settings.Float(0.2)
//	settings.String("")
//
// Conversions from decoded file data happen through Coerce and
// PropertyDefinition.Coerce, which clamp numeric values to the property bounds
// and round floats to the declared precision.
//
// # Types
//
// A Type is assembled with a TypeBuilder. Group paths use "/" as delimiter,
// and at most one boolean property per group may be marked as the group
// toggle:
//
//	typ, err := settings.NewTypeBuilder("TestSettings", settings.Identity{
//	    ID:               "Testing",
//	    ModuleFolderName: "Testing",
//	}).
//	    Version("e1.0.0", 2).
//	    Add(settings.PropertyDefinition{
//	        Name:    "DebugMode",
//	        Kind:    settings.KindBool,
//	        Default: settings.Bool(true),
//	        Group:   "Debugging",
//	    }).
//	    Build()
//
// # Instances
//
// Values of an Instance change only through Property.Apply, which the
// history package's actions call. Writing values any other way bypasses the
// undo history.
package settings
