// Package history provides undo/redo for settings edits.
//
// Every edit made through the settings view is an Action: a do/undo pair
// that closes over the value it replaces. Actions are executed through a
// Stack, which records them so a cancelled session can be unwound.
//
// # Actions
//
// SetProperty changes one property and restores the captured prior value on
// undo. Composite runs arbitrary do/undo closures over a payload, and
// Compound treats several actions as a single unit:
//
//	act, err := history.NewSetProperty(inst.Property("DebugMode"), settings.Bool(false))
//	if err != nil {
//	    return err
//	}
//	if err := stack.Do(act); err != nil {
//	    return err
//	}
//
// # Cancel semantics
//
// UndoAll reverts every recorded action, newest first, and leaves the list in
// place. ClearStack drops the list without undoing anything. Cancelling an
// editing session is UndoAll followed by ClearStack; accepting it is
// ClearStack alone.
//
// # Grouping
//
// Multiple actions can be recorded as one entry:
//
//	stack.BeginGroup("Reset group")
//	stack.Do(a)
//	stack.Do(b)
//	stack.EndGroup()
//
// Or with defer:
//
//	defer stack.GroupScope("Reset group").End()
//
// A Stack is not safe for concurrent use. Each editing session owns one.
package history
