package history

import "fmt"

// BeginGroup starts an action group.
// Actions done while grouping are recorded as a single Compound entry.
// Nested calls are ignored.
func (s *Stack) BeginGroup(name string) {
	if s.grouping {
		return
	}
	s.grouping = true
	s.groupName = name
	s.groupActions = nil
}

// EndGroup finishes an action group.
func (s *Stack) EndGroup() {
	if !s.grouping {
		return
	}
	s.grouping = false

	actions := s.groupActions
	s.groupActions = nil
	if len(actions) == 0 {
		return
	}
	s.push(&Compound{Name: s.groupName, Actions: actions})
}

// CancelGroup undoes the actions done since BeginGroup and drops them.
func (s *Stack) CancelGroup() error {
	if !s.grouping {
		return nil
	}
	s.grouping = false

	actions := s.groupActions
	s.groupActions = nil
	return NewCompound(s.groupName, actions...).UndoAction()
}

// IsGrouping returns true if currently in an action group.
func (s *Stack) IsGrouping() bool {
	return s.grouping
}

// GroupScope provides a convenient way to group actions using defer.
//
//	func resetGroup(s *history.Stack) {
//	    defer s.GroupScope("Reset group").End()
//	    // ... multiple actions ...
//	}
type GroupScope struct {
	stack  *Stack
	active bool
}

// GroupScope starts a new group scope.
func (s *Stack) GroupScope(name string) *GroupScope {
	s.BeginGroup(name)
	return &GroupScope{stack: s, active: true}
}

// End ends the group scope.
// Safe to call multiple times; only the first call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.stack.EndGroup()
		g.active = false
	}
}

// Cancel undoes the scope's actions without recording them.
func (g *GroupScope) Cancel() error {
	if !g.active {
		return nil
	}
	g.active = false
	return g.stack.CancelGroup()
}

// Transaction runs fn within a group. If fn returns an error, the actions
// it did are undone and nothing is recorded.
func (s *Stack) Transaction(name string, fn func() error) error {
	s.BeginGroup(name)

	if err := fn(); err != nil {
		if undoErr := s.CancelGroup(); undoErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, undoErr)
		}
		return err
	}

	s.EndGroup()
	return nil
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	depth int
}

// Checkpoint records the current history position.
func (s *Stack) Checkpoint() Checkpoint {
	return Checkpoint{depth: len(s.undoStack)}
}

// UndoToCheckpoint undoes all actions recorded since the checkpoint.
func (s *Stack) UndoToCheckpoint(cp Checkpoint) error {
	for len(s.undoStack) > cp.depth {
		if err := s.Undo(); err != nil {
			return err
		}
	}
	return nil
}
