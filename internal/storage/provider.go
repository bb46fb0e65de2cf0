// Package storage persists settings instances as one file per settings id.
//
// A Provider keeps the registry of live instances and maps each one to
// <root>/<ModuleFolderName>/<SubFolder>/<ID>.<ext>. Files hold the persisted
// fields of the instance plus a "_version" key with the storage version of
// its type; identity fields are never written. Older files are upgraded by a
// Migrator before their values are loaded.
package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/dshills/modsettings/internal/notify"
	"github.com/dshills/modsettings/internal/settings"
)

// DefaultRoot is the storage root used when none is configured.
const DefaultRoot = "ModSettings"

// Provider stores settings instances and owns the registry of live ones.
// Registry access is safe for concurrent use; the instances themselves are not.
type Provider struct {
	mu sync.RWMutex

	fs        afero.Fs
	root      string
	codec     Codec
	logger    *zap.Logger
	notifier  *notify.Notifier
	metrics   *Metrics
	migrators map[string]*Migrator

	registry map[string]*settings.Instance
	written  map[string][]byte
}

// Option configures a Provider.
type Option func(*Provider)

// WithFs sets the backing file system. Defaults to the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(p *Provider) { p.fs = fs }
}

// WithRoot sets the storage root directory.
func WithRoot(root string) Option {
	return func(p *Provider) { p.root = root }
}

// WithCodec sets the file format. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(p *Provider) { p.codec = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithNotifier routes registry and property changes to n.
func WithNotifier(n *notify.Notifier) Option {
	return func(p *Provider) { p.notifier = n }
}

// WithMetrics records operations on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithMigrator registers the migrator for a settings type name.
func WithMigrator(typeName string, m *Migrator) Option {
	return func(p *Provider) { p.migrators[typeName] = m }
}

// New creates a provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		fs:        afero.NewOsFs(),
		root:      DefaultRoot,
		codec:     JSONCodec{},
		migrators: make(map[string]*Migrator),
		registry:  make(map[string]*settings.Instance),
		written:   make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("storage")
	return p
}

// Root returns the storage root directory.
func (p *Provider) Root() string { return p.root }

// Fs returns the backing file system.
func (p *Provider) Fs() afero.Fs { return p.fs }

// Notifier returns the change notifier, which may be nil.
func (p *Provider) Notifier() *notify.Notifier { return p.notifier }

// Codec returns the file format.
func (p *Provider) Codec() Codec { return p.codec }

// Path returns the file path of an instance.
func (p *Provider) Path(inst *settings.Instance) string {
	return filepath.Join(p.root, inst.ModuleFolderName(), inst.SubFolder(), inst.ID()+p.codec.Extension())
}

// RegisterSettings loads the stored values of inst, or writes its current
// values if no file exists, and registers it under its id.
// Nothing is registered if loading or writing fails.
func (p *Provider) RegisterSettings(inst *settings.Instance) (err error) {
	if inst == nil {
		return ErrNilInstance
	}
	start := time.Now()
	defer func() { p.metrics.RecordOperation("register", err, time.Since(start)) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	id := inst.ID()
	if _, exists := p.registry[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	path := p.Path(inst)
	log := p.logger.With(zap.String("settings_id", id), zap.String("path", path))

	data, found, err := readFile(p.fs, path)
	if err != nil {
		return err
	}

	if !found {
		if err := p.write(inst, path); err != nil {
			return err
		}
		log.Info("created settings file")
	} else {
		// Load into a copy so a failed rewrite leaves inst untouched.
		next := inst.Clone()
		migrated, err := p.load(next, path, data, log)
		if err != nil {
			return err
		}
		if migrated {
			if err := p.write(next, path); err != nil {
				return err
			}
		} else {
			p.written[id] = data
		}
		if err := inst.Assign(next); err != nil {
			return err
		}
		log.Debug("loaded settings file")
	}

	inst.Observe(p.notifier)
	p.registry[id] = inst
	p.metrics.SetRegistered(len(p.registry))
	return nil
}

// load decodes file data into inst. It reports whether the data was
// migrated to a newer storage version.
func (p *Provider) load(inst *settings.Instance, path string, data []byte, log *zap.Logger) (bool, error) {
	values, err := p.codec.Decode(data)
	if err != nil {
		return false, &DecodeError{Path: path, Line: decodeLine(err), Err: err}
	}

	id := inst.ID()
	typ := inst.Type()
	current := typ.Version()
	version := FileVersion(values)
	migrated := false

	m := p.migrators[typ.Name()]
	if m == nil {
		m = NewMigrator()
	}
	switch {
	case m.NeedsMigration(values, current):
		values, _, err = m.Migrate(values, current)
		p.metrics.RecordMigration(id, err)
		if err != nil {
			return false, &DecodeError{Path: path, Err: err}
		}
		migrated = true
		log.Info("migrated settings file", zap.Int("from", version), zap.Int("to", current))
	case version > current:
		log.Warn("settings file is newer than its type", zap.Int("file_version", version), zap.Int("type_version", current))
	}

	fieldErrs := inst.Populate(values)
	for _, fe := range fieldErrs {
		log.Warn("kept default for unreadable field", zap.String("field", fe.Property), zap.Error(fe.Err))
	}
	p.metrics.RecordFieldErrors(id, len(fieldErrs))
	return migrated, nil
}

// write encodes inst and replaces its file.
func (p *Provider) write(inst *settings.Instance, path string) error {
	data, err := p.codec.Encode(inst.Fields(), inst.Type().Version())
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := writeFileAtomic(p.fs, path, data); err != nil {
		return err
	}
	p.written[inst.ID()] = data
	p.metrics.RecordWrite(len(data))
	return nil
}

// GetSettings returns the registered instance for id.
func (p *Provider) GetSettings(id string) (*settings.Instance, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.registry[id]
	return inst, ok
}

// AllSettings returns the registered instances ordered by display name,
// descending.
func (p *Provider) AllSettings() []*settings.Instance {
	p.mu.RLock()
	all := lo.Values(p.registry)
	p.mu.RUnlock()

	slices.SortFunc(all, func(a, b *settings.Instance) int {
		if c := strings.Compare(b.DisplayName(), a.DisplayName()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return all
}

// Count returns the number of registered instances.
func (p *Provider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.registry)
}

// SaveSettings writes the values of inst to its file. The id must be
// registered; the registry itself is not changed.
func (p *Provider) SaveSettings(inst *settings.Instance) error {
	if err := p.save(inst); err != nil {
		return err
	}
	p.notifier.NotifyInstance(inst.ID(), notify.ChangeSave, "storage")
	return nil
}

// SaveAll saves every instance like SaveSettings. Save notifications are
// delivered together once all files are written. The returned slice holds
// the error of each instance, in order.
func (p *Provider) SaveAll(insts []*settings.Instance) []error {
	errs := make([]error, len(insts))
	batch := p.notifier.NewBatch()
	for i, inst := range insts {
		if errs[i] = p.save(inst); errs[i] == nil {
			batch.Add(notify.Change{Path: inst.ID(), Type: notify.ChangeSave, Source: "storage"})
		}
	}
	batch.Commit()
	return errs
}

// save writes inst under the registry lock. It does not notify.
func (p *Provider) save(inst *settings.Instance) (err error) {
	if inst == nil {
		return ErrNilInstance
	}
	start := time.Now()
	defer func() { p.metrics.RecordOperation("save", err, time.Since(start)) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.registry[inst.ID()]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, inst.ID())
	}
	path := p.Path(inst)
	if err := p.write(inst, path); err != nil {
		return err
	}
	p.logger.Debug("saved settings", zap.String("settings_id", inst.ID()), zap.String("path", path))
	return nil
}

// OverrideSettings makes inst the registered instance for its id and
// persists it. If writing fails the registry is unchanged.
func (p *Provider) OverrideSettings(inst *settings.Instance) (err error) {
	if inst == nil {
		return ErrNilInstance
	}
	start := time.Now()
	defer func() { p.metrics.RecordOperation("override", err, time.Since(start)) }()

	p.mu.Lock()
	if _, ok := p.registry[inst.ID()]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, inst.ID())
	}
	if err := p.write(inst, p.Path(inst)); err != nil {
		p.mu.Unlock()
		return err
	}
	inst.Observe(p.notifier)
	p.registry[inst.ID()] = inst
	p.mu.Unlock()

	p.logger.Info("overrode settings", zap.String("settings_id", inst.ID()))
	p.notifier.NotifyInstance(inst.ID(), notify.ChangeReplace, "storage")
	return nil
}

// ResetSettings replaces the registered instance for id with a new one
// holding default values, persists it and returns it.
func (p *Provider) ResetSettings(id string) (_ *settings.Instance, err error) {
	start := time.Now()
	defer func() { p.metrics.RecordOperation("reset", err, time.Since(start)) }()

	p.mu.Lock()
	old, ok := p.registry[id]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	fresh := old.Type().NewWithIdentity(old.Identity())
	if err := p.write(fresh, p.Path(fresh)); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	fresh.Observe(p.notifier)
	p.registry[id] = fresh
	p.mu.Unlock()

	p.logger.Info("reset settings", zap.String("settings_id", id))
	p.notifier.NotifyInstance(id, notify.ChangeReplace, "storage")
	return fresh, nil
}

// ReloadSettings re-reads the file of a registered instance into it.
// Files whose content equals the provider's last write are skipped.
// A file that no longer exists is written again from the current values.
func (p *Provider) ReloadSettings(id string) (err error) {
	start := time.Now()
	defer func() { p.metrics.RecordOperation("reload", err, time.Since(start)) }()

	inst, next, err := p.reload(id)
	if err != nil || next == nil {
		return err
	}

	// Values are applied outside the lock since observers may call back
	// into the provider.
	for _, f := range next.Fields() {
		if cur, _ := inst.Get(f.Name); cur.Equal(f.Value) {
			continue
		}
		if err := inst.Property(f.Name).Apply(f.Value); err != nil {
			p.logger.Warn("skipped reloaded field",
				zap.String("settings_id", id), zap.String("field", f.Name), zap.Error(err))
		}
	}

	p.logger.Info("reloaded settings file", zap.String("settings_id", id))
	p.notifier.NotifyInstance(id, notify.ChangeReload, "storage")
	return nil
}

// reload reads the file of id into a copy of the registered instance.
// A nil copy means there is nothing to apply.
func (p *Provider) reload(id string) (*settings.Instance, *settings.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.registry[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}

	path := p.Path(inst)
	data, found, err := readFile(p.fs, path)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, p.write(inst, path)
	}
	if bytes.Equal(data, p.written[id]) {
		return nil, nil, nil
	}

	// Decode into a copy so a bad file leaves the instance untouched.
	next := inst.Clone()
	log := p.logger.With(zap.String("settings_id", id), zap.String("path", path))
	migrated, err := p.load(next, path, data, log)
	if err != nil {
		return nil, nil, err
	}
	if migrated {
		if err := p.write(next, path); err != nil {
			return nil, nil, err
		}
	} else {
		p.written[id] = data
	}
	return inst, next, nil
}

// Unregister removes id from the registry without touching its file.
func (p *Provider) Unregister(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.registry[id]; !ok {
		return false
	}
	delete(p.registry, id)
	delete(p.written, id)
	p.metrics.SetRegistered(len(p.registry))
	return true
}
