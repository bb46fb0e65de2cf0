// Package modsettings is an embeddable settings core for hosts that load
// independently authored modules.
//
// Modules declare settings types with a TypeBuilder. A Manager persists
// instances of those types, one file per settings id, and opens editing
// sessions whose changes can be rolled back as a whole.
//
//	m, err := modsettings.Open("modsettings.toml")
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	inst := myType.New()
//	if err := m.Register(inst); err != nil {
//		return err
//	}
//
// With watching enabled, edits made to the files by hand are applied when
// the host calls PollReloads, typically once per frame or tick.
package modsettings

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/modsettings/internal/config"
	"github.com/dshills/modsettings/internal/logging"
	"github.com/dshills/modsettings/internal/notify"
	"github.com/dshills/modsettings/internal/screen"
	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/storage"
	"github.com/dshills/modsettings/internal/watcher"
)

// Settings model.
type (
	Config             = config.Config
	Type               = settings.Type
	TypeBuilder        = settings.TypeBuilder
	Identity           = settings.Identity
	Instance           = settings.Instance
	PropertyDefinition = settings.PropertyDefinition
	Value              = settings.Value
	Kind               = settings.Kind
)

// Storage and sessions.
type (
	Migration    = storage.Migration
	Migrator     = storage.Migrator
	Change       = notify.Change
	Subscription = notify.Subscription
	Screen       = screen.Screen
	Host         = screen.Host
	Inquiry      = screen.Inquiry
)

// Property kinds.
const (
	KindBool   = settings.KindBool
	KindInt    = settings.KindInt
	KindFloat  = settings.KindFloat
	KindString = settings.KindString
)

// NewTypeBuilder starts a settings type declaration.
func NewTypeBuilder(name string, identity Identity) *TypeBuilder {
	return settings.NewTypeBuilder(name, identity)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// Option configures a Manager.
type Option func(*options)

type options struct {
	fs         afero.Fs
	logger     *zap.Logger
	registerer prometheus.Registerer
	migrators  map[string]*storage.Migrator
}

// WithFs sets the file system settings are stored on.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer enables storage metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithMigrator sets the migrations of a settings type, keyed by type name.
func WithMigrator(typeName string, m *Migrator) Option {
	return func(o *options) { o.migrators[typeName] = m }
}

// Manager wires storage, change notification, file watching and logging.
// Instances are owned by the host goroutine and Manager methods must be
// called from it.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	notifier *notify.Notifier
	provider *storage.Provider
	watcher  *watcher.Watcher

	screens []*Screen
	pending map[string]struct{}
	closed  bool
}

// Open loads the configuration file at path and creates a Manager.
// An empty path uses defaults and environment overrides only.
func Open(path string, opts ...Option) (*Manager, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return New(cfg, opts...)
}

// New creates a Manager from cfg.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{migrators: make(map[string]*storage.Migrator)}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = logging.New(cfg.Logging()); err != nil {
			return nil, err
		}
	}
	codec, err := storage.CodecByName(cfg.Format)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		notifier: notify.New(),
		pending:  make(map[string]struct{}),
	}

	storeOpts := []storage.Option{
		storage.WithRoot(cfg.Root),
		storage.WithCodec(codec),
		storage.WithLogger(logger),
		storage.WithNotifier(m.notifier),
	}
	if o.fs != nil {
		storeOpts = append(storeOpts, storage.WithFs(o.fs))
	}
	if o.registerer != nil {
		storeOpts = append(storeOpts, storage.WithMetrics(storage.NewMetrics(o.registerer)))
	}
	for name, mig := range o.migrators {
		storeOpts = append(storeOpts, storage.WithMigrator(name, mig))
	}
	m.provider = storage.New(storeOpts...)

	if cfg.Watch {
		w, err := watcher.New(watcher.WithDebounce(cfg.Debounce), watcher.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		m.watcher = w
	}

	logger.Info("settings manager started",
		zap.String("root", cfg.Root),
		zap.String("format", codec.Name()),
		zap.Bool("watch", cfg.Watch))
	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Logger returns the manager's logger.
func (m *Manager) Logger() *zap.Logger { return m.logger }

// Provider returns the storage provider.
func (m *Manager) Provider() *storage.Provider { return m.provider }

// Register loads or creates the file of inst and adds it to the registry.
// With watching enabled the file is watched for external edits.
func (m *Manager) Register(inst *Instance) error {
	if err := m.provider.RegisterSettings(inst); err != nil {
		return err
	}
	if m.watcher != nil {
		if err := m.watcher.Watch(inst.ID(), m.provider.Path(inst)); err != nil {
			m.logger.Warn("cannot watch settings file",
				zap.String("settings_id", inst.ID()), zap.Error(err))
		}
	}
	return nil
}

// Unregister removes id from the registry and stops watching its file.
// The file itself is kept.
func (m *Manager) Unregister(id string) bool {
	inst, ok := m.provider.GetSettings(id)
	if !ok {
		return false
	}
	path := m.provider.Path(inst)
	if !m.provider.Unregister(id) {
		return false
	}
	delete(m.pending, id)
	if m.watcher != nil {
		if err := m.watcher.Unwatch(path); err != nil {
			m.logger.Warn("cannot unwatch settings file", zap.String("settings_id", id), zap.Error(err))
		}
	}
	return true
}

// Get returns the registered instance for id.
func (m *Manager) Get(id string) (*Instance, bool) {
	return m.provider.GetSettings(id)
}

// Save writes the values of inst to its file.
func (m *Manager) Save(inst *Instance) error {
	return m.provider.SaveSettings(inst)
}

// Subscribe registers fn for changes under path. An empty path receives
// every change.
func (m *Manager) Subscribe(path string, fn func(Change)) *Subscription {
	if path == "" {
		return m.notifier.Subscribe(fn)
	}
	return m.notifier.SubscribePath(path, fn)
}

// OpenScreen starts an editing session over the registered instances.
// The session ends when the screen asks its host to close or quit.
func (m *Manager) OpenScreen(host Host, opts ...screen.Option) (*Screen, error) {
	if host == nil {
		return nil, screen.ErrNilHost
	}
	h := &sessionHost{Host: host, manager: m}
	opts = append([]screen.Option{screen.WithLogger(m.logger)}, opts...)
	s, err := screen.Open(m.provider, h, opts...)
	if err != nil {
		return nil, err
	}
	h.screen = s
	m.screens = append(m.screens, s)
	return s, nil
}

// sessionHost forwards to the host and ends the session on Close and Quit.
type sessionHost struct {
	Host
	manager *Manager
	screen  *Screen
}

func (h *sessionHost) Close() {
	h.manager.endSession(h.screen)
	h.Host.Close()
}

func (h *sessionHost) Quit() {
	h.manager.endSession(h.screen)
	h.Host.Quit()
}

func (m *Manager) endSession(s *Screen) {
	m.screens = lo.Without(m.screens, s)
}

// PollReloads reloads the settings whose files were edited on disk since
// the last call. It never blocks. Reloads of ids with unsaved edits in an
// open screen are kept pending until those edits are saved or rolled back.
// Without watching enabled it does nothing.
func (m *Manager) PollReloads() error {
	if m.watcher == nil {
		return nil
	}
	for _, ev := range m.watcher.Drain() {
		m.pending[ev.SettingsID] = struct{}{}
	}

	ids := lo.Keys(m.pending)
	slices.Sort(ids)

	var errs error
	for _, id := range ids {
		if m.editing(id) {
			m.logger.Debug("deferred reload of edited settings", zap.String("settings_id", id))
			continue
		}
		delete(m.pending, id)
		if _, ok := m.provider.GetSettings(id); !ok {
			continue
		}
		if err := m.provider.ReloadSettings(id); err != nil {
			m.logger.Warn("reloading settings failed", zap.String("settings_id", id), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("reloading %s: %w", id, err))
		}
	}
	return errs
}

// editing reports whether an open screen holds unsaved actions for id.
func (m *Manager) editing(id string) bool {
	return lo.SomeBy(m.screens, func(s *Screen) bool {
		e := s.Entry(id)
		return e != nil && e.ChangesMade()
	})
}

// Close stops file watching and change delivery. It is safe to call Close
// multiple times.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.watcher != nil {
		err = m.watcher.Close()
	}
	m.notifier.Close()
	m.logger.Info("settings manager stopped")
	_ = m.logger.Sync()
	return err
}
