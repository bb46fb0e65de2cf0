package screen

import (
	"fmt"

	"github.com/dshills/modsettings/internal/history"
	"github.com/dshills/modsettings/internal/notify"
	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/storage"
	"github.com/dshills/modsettings/internal/tree"
)

// Entry is the editing state of one registered settings instance.
type Entry struct {
	screen   *Screen
	id       string
	inst     *settings.Instance
	stack    *history.Stack
	tree     *tree.Tree
	selected bool

	// persisted is set once an action wrote the file during the session.
	persisted bool
}

func newEntry(s *Screen, inst *settings.Instance) (*Entry, error) {
	e := &Entry{
		screen: s,
		id:     inst.ID(),
		inst:   inst,
		stack:  history.NewStack(),
	}
	t, err := tree.New(e, inst)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", inst.ID(), err)
	}
	e.tree = t
	return e, nil
}

// ID returns the settings id.
func (e *Entry) ID() string { return e.id }

// DisplayName returns the settings owner's display name.
func (e *Entry) DisplayName() string { return e.inst.DisplayName() }

// Instance returns the instance the entry is bound to.
func (e *Entry) Instance() *settings.Instance { return e.inst }

// Tree returns the group tree.
func (e *Entry) Tree() *tree.Tree { return e.tree }

// History returns the entry's undo stack.
func (e *Entry) History() *history.Stack { return e.stack }

// SearchText returns the screen's search filter.
func (e *Entry) SearchText() string { return e.screen.searchText }

// IsSelected reports whether the entry is the selected one.
func (e *Entry) IsSelected() bool { return e.selected }

// ChangesMade reports whether the entry has unsaved actions.
func (e *Entry) ChangesMade() bool { return e.stack.ChangesMade() }

// RequiresRestart reports whether the entry's type has a property marked
// RequireRestart.
func (e *Entry) RequiresRestart() bool { return e.inst.RequiresRestart() }

// RefreshValues rebinds the entry to the instance currently registered for
// its id. Call it after the registered instance was swapped.
func (e *Entry) RefreshValues() error {
	live, ok := e.screen.provider.GetSettings(e.id)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotRegistered, e.id)
	}
	if live != e.inst {
		if err := e.tree.Refresh(live); err != nil {
			return fmt.Errorf("settings %s: %w", e.id, err)
		}
		e.inst = live
	}
	e.screen.provider.Notifier().NotifyInstance(e.id, notify.ChangeReload, "screen")
	return nil
}
