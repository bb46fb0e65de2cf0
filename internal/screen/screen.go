// Package screen implements the editing session behind a settings screen.
//
// A Screen holds one Entry per registered settings instance. Edits are
// recorded on the entry's history stack and only reach storage when the
// session is finished with Done; Cancel rolls every entry back.
package screen

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/modsettings/internal/history"
	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/storage"
)

// Errors returned by Open.
var (
	ErrNilProvider = errors.New("screen: nil storage provider")
	ErrNilHost     = errors.New("screen: nil host")
)

// Option configures a Screen.
type Option func(*Screen)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Screen) { s.logger = l }
}

// WithFilter limits the screen to instances for which keep returns true.
func WithFilter(keep func(*settings.Instance) bool) Option {
	return func(s *Screen) { s.filter = keep }
}

// Screen is one settings editing session.
type Screen struct {
	provider *storage.Provider
	host     Host
	logger   *zap.Logger
	session  string
	filter   func(*settings.Instance) bool

	entries    []*Entry
	selected   *Entry
	searchText string
	hintText   string
}

// Open starts a session over every instance registered with provider.
func Open(provider *storage.Provider, host Host, opts ...Option) (*Screen, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if host == nil {
		return nil, ErrNilHost
	}

	s := &Screen{
		provider: provider,
		host:     host,
		logger:   zap.NewNop(),
		session:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("screen").With(zap.String("session", s.session))

	instances := provider.AllSettings()
	if s.filter != nil {
		instances = lo.Filter(instances, func(inst *settings.Instance, _ int) bool {
			return s.filter(inst)
		})
	}
	for _, inst := range instances {
		e, err := newEntry(s, inst)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, e)
	}

	s.logger.Info("opened settings screen", zap.Int("entries", len(s.entries)))
	return s, nil
}

// Session returns the session id.
func (s *Screen) Session() string { return s.session }

// Entries returns the entries in display order.
func (s *Screen) Entries() []*Entry { return s.entries }

// Entry returns the entry for a settings id, or nil.
func (s *Screen) Entry(id string) *Entry {
	e, _ := lo.Find(s.entries, func(e *Entry) bool { return e.id == id })
	return e
}

// Select makes e the selected entry. A nil e clears the selection.
func (s *Screen) Select(e *Entry) {
	if s.selected == e {
		return
	}
	if s.selected != nil {
		s.selected.selected = false
	}
	s.selected = e
	if e != nil {
		e.selected = true
	}
}

// Selected returns the selected entry, or nil.
func (s *Screen) Selected() *Entry { return s.selected }

// SelectedName returns the display name of the selected entry, or "" when
// nothing is selected.
func (s *Screen) SelectedName() string {
	if s.selected == nil {
		return ""
	}
	return s.selected.DisplayName()
}

// SearchText returns the search filter.
func (s *Screen) SearchText() string { return s.searchText }

// SetSearchText sets the search filter applied to every entry's tree.
func (s *Screen) SetSearchText(text string) {
	s.searchText = text
}

// HintText returns the hint currently shown.
func (s *Screen) HintText() string { return s.hintText }

// SetHint sets the hint shown for the hovered property or group.
func (s *Screen) SetHint(text string) { s.hintText = text }

// IsHintVisible reports whether a hint is set.
func (s *Screen) IsHintVisible() bool { return s.hintText != "" }

// ChangesMade reports whether any entry has unsaved actions.
func (s *Screen) ChangesMade() bool {
	return lo.SomeBy(s.entries, (*Entry).ChangesMade)
}

// Done saves every changed entry and the session continues. With no
// changes the screen is closed. When a changed entry needs a restart the
// user is asked first; on yes the entries are saved and the host quits, on
// no nothing happens.
func (s *Screen) Done() error {
	changed := lo.Filter(s.entries, func(e *Entry, _ int) bool { return e.ChangesMade() })
	if len(changed) == 0 {
		s.host.Close()
		return nil
	}

	if lo.SomeBy(changed, (*Entry).RequiresRestart) {
		s.host.Inquire(Inquiry{
			Title:            "Restart Required",
			Text:             "Changed settings take effect after a restart. Do you want to exit now?",
			AffirmativeLabel: "Yes",
			NegativeLabel:    "No",
			OnAffirm: func() {
				if err := s.save(changed); err != nil {
					s.host.Error(err)
					return
				}
				s.host.Quit()
			},
		})
		return nil
	}

	return s.save(changed)
}

// save persists entries and clears their stacks. Entries that fail keep
// their stacks so the session can be retried.
func (s *Screen) save(entries []*Entry) error {
	insts := lo.Map(entries, func(e *Entry, _ int) *settings.Instance { return e.inst })
	var errs error
	for i, err := range s.provider.SaveAll(insts) {
		e := entries[i]
		if err != nil {
			s.logger.Error("failed to save settings", zap.String("settings_id", e.id), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		e.stack.ClearStack()
		e.persisted = false
		s.logger.Debug("saved settings", zap.String("settings_id", e.id))
	}
	return errs
}

// Close rolls back every entry without saving the edits. Files changed
// during the session by a revert are written back with the restored values.
func (s *Screen) Close() error {
	var errs error
	for _, e := range s.entries {
		if err := e.stack.UndoAll(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("settings %s: %w", e.id, err))
		}
		e.stack.ClearStack()

		if e.persisted {
			if err := s.provider.SaveSettings(e.inst); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			e.persisted = false
		}
	}
	if errs != nil {
		s.logger.Warn("rollback incomplete", zap.Error(errs))
	}
	return errs
}

// Cancel closes the screen and rolls back every entry.
func (s *Screen) Cancel() error {
	s.host.Close()
	return s.Close()
}

type revertState struct {
	entry *Entry
	prior *settings.Instance
}

// Revert asks for confirmation and then resets the selected entry to
// defaults. The reset is recorded on the entry's stack and can be undone.
func (s *Screen) Revert() {
	e := s.selected
	if e == nil {
		return
	}
	s.host.Inquire(Inquiry{
		Title:            "Revert to Defaults",
		Text:             fmt.Sprintf("Are you sure you wish to revert all settings for %s to their default values?", e.DisplayName()),
		AffirmativeLabel: "Yes",
		NegativeLabel:    "No",
		OnAffirm: func() {
			action := history.NewComposite("Revert "+e.DisplayName(),
				revertState{entry: e, prior: e.inst}, s.doRevert, s.undoRevert)
			if err := e.stack.Do(action); err != nil {
				s.host.Error(err)
			}
		},
	})
}

func (s *Screen) doRevert(st revertState) error {
	if _, err := s.provider.ResetSettings(st.entry.id); err != nil {
		return err
	}
	st.entry.persisted = true
	if err := st.entry.RefreshValues(); err != nil {
		// Put the prior instance back so the failed revert leaves no trace.
		if rerr := s.provider.OverrideSettings(st.prior); rerr != nil {
			return multierr.Append(err, rerr)
		}
		return err
	}
	s.reselect(st.entry)
	s.logger.Info("reverted settings to defaults", zap.String("settings_id", st.entry.id))
	return nil
}

func (s *Screen) undoRevert(st revertState) error {
	if err := s.provider.OverrideSettings(st.prior); err != nil {
		return err
	}
	if err := st.entry.RefreshValues(); err != nil {
		return err
	}
	if s.selected == st.entry {
		s.reselect(st.entry)
	}
	return nil
}

// reselect re-selects e so bound views pick up its rebuilt values.
func (s *Screen) reselect(e *Entry) {
	s.Select(nil)
	s.Select(e)
}
