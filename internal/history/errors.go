package history

import (
	"errors"
	"fmt"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrNilAction     = errors.New("nil action")
)

// ActionPanicError reports a panic raised inside an action closure.
type ActionPanicError struct {
	Action string
	Phase  string
	Value  any
}

// Error implements the error interface.
func (e *ActionPanicError) Error() string {
	return fmt.Sprintf("action %q panicked during %s: %v", e.Action, e.Phase, e.Value)
}
