package modsettings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/modsettings/internal/notify"
	"github.com/dshills/modsettings/internal/screen"
	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/settings/testsettings"
)

type acceptingHost struct {
	quits  int
	closes int
	errs   []error
}

func (h *acceptingHost) Inquire(q screen.Inquiry) { q.Affirm() }
func (h *acceptingHost) Quit()                    { h.quits++ }
func (h *acceptingHost) Close()                   { h.closes++ }
func (h *acceptingHost) Error(err error)          { h.errs = append(h.errs, err) }

func testConfig(root string) Config {
	cfg := DefaultConfig()
	cfg.Root = root
	return cfg
}

func TestNew_RegisterAndSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	reg := prometheus.NewRegistry()
	core, logs := observer.New(zapcore.InfoLevel)

	m, err := New(testConfig("Settings"),
		WithFs(fs), WithRegisterer(reg), WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer m.Close()

	inst := testsettings.New()
	require.NoError(t, m.Register(inst))

	path := filepath.Join("Settings", "Testing", "Testing.json")
	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.True(t, exists)

	got, ok := m.Get(testsettings.ID)
	require.True(t, ok)
	assert.Same(t, inst, got)

	require.NoError(t, inst.Property(testsettings.TestProperty3).Apply(settings.Int(4)))
	require.NoError(t, m.Save(inst))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TestProperty3": 4`)

	assert.Equal(t, 1, logs.FilterMessage("settings manager started").Len())
	n, err := testutil.GatherAndCount(reg, "modsettings_storage_operations_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("Settings")
	cfg.Format = "ini"
	_, err := New(cfg, WithLogger(zap.NewNop()))
	assert.Error(t, err)
}

func TestNew_Format(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig("Settings")
	cfg.Format = "yaml"

	m, err := New(cfg, WithFs(fs), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Register(testsettings.New()))
	exists, err := afero.Exists(fs, filepath.Join("Settings", "Testing", "Testing.yaml"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManager_Subscribe(t *testing.T) {
	m, err := New(testConfig("Settings"), WithFs(afero.NewMemMapFs()), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	inst := testsettings.New()
	require.NoError(t, m.Register(inst))

	var changes []Change
	sub := m.Subscribe(testsettings.ID, func(c Change) { changes = append(changes, c) })

	require.NoError(t, inst.Property(testsettings.DebugMode).Apply(settings.Bool(false)))
	require.Len(t, changes, 1)
	assert.Equal(t, notify.ChangeSet, changes[0].Type)
	assert.Equal(t, "Testing.DebugMode", changes[0].Path)

	sub.Unsubscribe()
	require.NoError(t, inst.Property(testsettings.DebugMode).Apply(settings.Bool(true)))
	assert.Len(t, changes, 1)
}

func TestManager_OpenScreen(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(testConfig("Settings"), WithFs(fs), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Register(testsettings.New()))

	_, err = m.OpenScreen(nil)
	assert.ErrorIs(t, err, screen.ErrNilHost)

	host := &acceptingHost{}
	s, err := m.OpenScreen(host)
	require.NoError(t, err)
	require.Len(t, s.Entries(), 1)

	entry := s.Entries()[0]
	require.NoError(t, entry.Tree().Property(testsettings.TestProperty3).Set(settings.Int(9)))
	require.NoError(t, s.Done())

	assert.Equal(t, 1, host.quits, "restart confirmation accepted")
	assert.Empty(t, host.errs)
	assert.Empty(t, m.screens, "quitting ends the session")

	data, err := afero.ReadFile(fs, filepath.Join("Settings", "Testing", "Testing.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TestProperty3": 9`)
}

func newWatchingManager(t *testing.T) *Manager {
	t.Helper()
	cfg := testConfig(t.TempDir())
	cfg.Watch = true
	cfg.Debounce = 20 * time.Millisecond

	m, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// pollUntil pumps reloads on the calling goroutine until done holds.
func pollUntil(t *testing.T, m *Manager, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached while polling reloads")
		}
		require.NoError(t, m.PollReloads())
		time.Sleep(10 * time.Millisecond)
	}
}

func intValue(inst *Instance, name string) int64 {
	v, _ := inst.Get(name)
	return v.AsInt()
}

func TestManager_WatchReloads(t *testing.T) {
	m := newWatchingManager(t)
	inst := testsettings.New()
	require.NoError(t, m.Register(inst))

	var reloads int
	m.Subscribe(testsettings.ID, func(c Change) {
		if c.Type == notify.ChangeReload {
			reloads++
		}
	})

	edited := []byte(`{"_version": 2, "TestProperty3": 7}`)
	require.NoError(t, os.WriteFile(m.Provider().Path(inst), edited, 0o644))

	// Nothing changes until the host polls.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(2), intValue(inst, testsettings.TestProperty3))

	pollUntil(t, m, func() bool { return intValue(inst, testsettings.TestProperty3) == 7 })
	assert.Equal(t, 1, reloads)

	assert.True(t, m.Unregister(testsettings.ID))
	assert.False(t, m.Unregister(testsettings.ID))
	assert.Equal(t, 0, m.watcher.WatchedFiles())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.NoError(t, m.PollReloads())
}

func TestManager_DefersReloadWhileEditing(t *testing.T) {
	m := newWatchingManager(t)
	inst := testsettings.New()
	require.NoError(t, m.Register(inst))

	host := &acceptingHost{}
	s, err := m.OpenScreen(host)
	require.NoError(t, err)
	prop := s.Entry(testsettings.ID).Tree().Property(testsettings.TestProperty3)
	require.NoError(t, prop.Set(settings.Int(9)))

	edited := []byte(`{"_version": 2, "TestProperty3": 7}`)
	require.NoError(t, os.WriteFile(m.Provider().Path(inst), edited, 0o644))

	pollUntil(t, m, func() bool {
		_, ok := m.pending[testsettings.ID]
		return ok
	})
	require.NoError(t, m.PollReloads())
	assert.Equal(t, int64(9), intValue(inst, testsettings.TestProperty3), "session edits win while open")

	require.NoError(t, s.Cancel())
	assert.Equal(t, 1, host.closes)
	assert.Empty(t, m.screens)
	assert.Equal(t, int64(2), intValue(inst, testsettings.TestProperty3))

	require.NoError(t, m.PollReloads())
	assert.Equal(t, int64(7), intValue(inst, testsettings.TestProperty3))
	assert.Empty(t, m.pending)
}

func TestManager_Unregister(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(testConfig("Settings"), WithFs(fs), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Register(testsettings.New()))
	require.True(t, m.Unregister(testsettings.ID))

	_, ok := m.Get(testsettings.ID)
	assert.False(t, ok)
	exists, err := afero.Exists(fs, filepath.Join("Settings", "Testing", "Testing.json"))
	require.NoError(t, err)
	assert.True(t, exists, "the file is kept")
	assert.NoError(t, m.PollReloads())
}

func TestOpen_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MODSETTINGS_ROOT", dir)
	t.Setenv("MODSETTINGS_FORMAT", "toml")

	m, err := Open("", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, dir, m.Config().Root)
	assert.Equal(t, "toml", m.Provider().Codec().Name())
}

func TestNewTypeBuilder(t *testing.T) {
	typ, err := NewTypeBuilder("Example", Identity{ID: "Example", ModuleFolderName: "Example"}).
		Add(PropertyDefinition{Name: "Speed", Kind: KindFloat, Default: settings.Float(1.5), Group: "Movement"}).
		Build()
	require.NoError(t, err)

	inst := typ.New()
	v, ok := inst.Get("Speed")
	require.True(t, ok)
	assert.Equal(t, 1.5, v.AsFloat())
}
