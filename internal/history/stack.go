package history

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// entry wraps an action with metadata.
type entry struct {
	action    Action
	timestamp time.Time
}

// Info provides read-only info about a recorded action.
// Used for displaying undo/redo history to users.
type Info struct {
	Description string
	Timestamp   time.Time
}

// Stack records executed actions for one editing session.
type Stack struct {
	undoStack []*entry
	redoStack []*entry

	// Grouping state
	grouping     bool
	groupName    string
	groupActions []Action
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Do executes an action and records it. The action is recorded only if it
// succeeds. Recording a new action clears the redo history.
func (s *Stack) Do(a Action) error {
	if a == nil {
		return ErrNilAction
	}
	if err := a.DoAction(); err != nil {
		return err
	}
	s.push(a)
	return nil
}

// push records an already executed action.
func (s *Stack) push(a Action) {
	if s.grouping {
		s.groupActions = append(s.groupActions, a)
		return
	}

	s.undoStack = append(s.undoStack, &entry{
		action:    a,
		timestamp: time.Now(),
	})
	s.redoStack = nil
}

// UndoAll undoes every recorded action, newest first. The list is kept;
// callers that are done with it call ClearStack. A failing undo does not
// stop the unwind; all failures are returned together.
// An open group is closed first so its actions are included.
func (s *Stack) UndoAll() error {
	s.EndGroup()

	var errs error
	for i := len(s.undoStack) - 1; i >= 0; i-- {
		e := s.undoStack[i]
		if err := e.action.UndoAction(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("undo %q: %w", e.action.Description(), err))
		}
	}
	return errs
}

// ClearStack forgets all recorded actions without undoing them.
func (s *Stack) ClearStack() {
	s.undoStack = nil
	s.redoStack = nil
	s.grouping = false
	s.groupName = ""
	s.groupActions = nil
}

// ChangesMade reports whether any action is recorded. Editing a value and
// then editing it back still counts as a change.
func (s *Stack) ChangesMade() bool {
	return len(s.undoStack) > 0 || len(s.groupActions) > 0
}

// Undo undoes the last recorded action and moves it to the redo history.
// On failure the action stays recorded.
func (s *Stack) Undo() error {
	if s.grouping {
		s.EndGroup()
	}
	if len(s.undoStack) == 0 {
		return ErrNothingToUndo
	}

	e := s.undoStack[len(s.undoStack)-1]
	if err := e.action.UndoAction(); err != nil {
		return err
	}
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.redoStack = append(s.redoStack, e)
	return nil
}

// Redo re-applies the last undone action.
func (s *Stack) Redo() error {
	if len(s.redoStack) == 0 {
		return ErrNothingToRedo
	}

	e := s.redoStack[len(s.redoStack)-1]
	if err := e.action.DoAction(); err != nil {
		return err
	}
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.undoStack = append(s.undoStack, e)
	return nil
}

// CanUndo returns true if undo is available.
func (s *Stack) CanUndo() bool {
	return len(s.undoStack) > 0 || len(s.groupActions) > 0
}

// CanRedo returns true if redo is available.
func (s *Stack) CanRedo() bool {
	return len(s.redoStack) > 0
}

// Len returns the number of recorded actions. An open group is not counted
// until it ends.
func (s *Stack) Len() int {
	return len(s.undoStack)
}

// RedoCount returns the number of redo operations available.
func (s *Stack) RedoCount() int {
	return len(s.redoStack)
}

// History returns info about recorded actions, oldest first.
func (s *Stack) History() []Info {
	return infos(s.undoStack)
}

// RedoHistory returns info about undone actions, oldest undo first.
func (s *Stack) RedoHistory() []Info {
	return infos(s.redoStack)
}

// Peek returns info about the next undo without performing it.
func (s *Stack) Peek() (Info, bool) {
	if len(s.undoStack) == 0 {
		return Info{}, false
	}
	e := s.undoStack[len(s.undoStack)-1]
	return Info{Description: e.action.Description(), Timestamp: e.timestamp}, true
}

func infos(entries []*entry) []Info {
	result := make([]Info, len(entries))
	for i, e := range entries {
		result[i] = Info{
			Description: e.action.Description(),
			Timestamp:   e.timestamp,
		}
	}
	return result
}
