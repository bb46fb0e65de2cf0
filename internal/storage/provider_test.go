package storage

import (
	"errors"
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
	"github.com/dshills/modsettings/internal/settings"
	"github.com/dshills/modsettings/internal/settings/testsettings"
)

const testingFile = `{
  "_version": 2,
  "DebugMode": true,
  "TestProperty1": false,
  "TestProperty5": false,
  "TestProperty2": false,
  "TestProperty4": 0.2,
  "TestProperty3": 2,
  "TestProperty6": ""
}
`

func newTestProvider(t *testing.T, opts ...Option) (*Provider, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	opts = append([]Option{WithFs(fs)}, opts...)
	return New(opts...), fs
}

func testingPath() string {
	return filepath.Join("ModSettings", "Testing", "Testing.json")
}

func TestRegisterSettings_CreatesFile(t *testing.T) {
	p, fs := newTestProvider(t)
	inst := testsettings.New()

	require.NoError(t, p.RegisterSettings(inst))

	assert.Equal(t, testingPath(), p.Path(inst))
	data, err := afero.ReadFile(fs, testingPath())
	require.NoError(t, err)
	assert.Equal(t, testingFile, string(data))

	got, ok := p.GetSettings(testsettings.ID)
	require.True(t, ok)
	assert.Same(t, inst, got)
	assert.Equal(t, 1, p.Count())
}

func TestRegisterSettings_SubFolder(t *testing.T) {
	p, fs := newTestProvider(t, WithRoot("root"))
	inst := testsettings.Type().NewWithIdentity(settings.Identity{
		ID:               "Nested",
		ModuleFolderName: "Mod",
		SubFolder:        "Profiles",
	})

	require.NoError(t, p.RegisterSettings(inst))

	exists, err := afero.Exists(fs, filepath.Join("root", "Mod", "Profiles", "Nested.json"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegisterSettings_Duplicate(t *testing.T) {
	p, _ := newTestProvider(t)
	first := testsettings.New()
	require.NoError(t, p.RegisterSettings(first))

	second := testsettings.New()
	require.NoError(t, second.Property(testsettings.TestProperty3).Apply(settings.Int(9)))

	err := p.RegisterSettings(second)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	got, _ := p.GetSettings(testsettings.ID)
	assert.Same(t, first, got)
	v, _ := second.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(9), v.AsInt(), "rejected instance is not reloaded")
	assert.Equal(t, 1, p.Count())

	assert.ErrorIs(t, p.RegisterSettings(nil), ErrNilInstance)
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	p, fs := newTestProvider(t)
	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))

	require.NoError(t, inst.Property(testsettings.DebugMode).Apply(settings.Bool(false)))
	require.NoError(t, inst.Property(testsettings.TestProperty3).Apply(settings.Int(7)))
	require.NoError(t, inst.Property(testsettings.TestProperty4).Apply(settings.Float(12.5)))
	require.NoError(t, inst.Property(testsettings.TestProperty6).Apply(settings.String("hello \"world\"")))
	require.NoError(t, p.SaveSettings(inst))

	other := New(WithFs(fs))
	loaded := testsettings.New()
	require.NoError(t, other.RegisterSettings(loaded))

	assert.True(t, inst.Equal(loaded))
}

func TestSaveSettings_NotRegistered(t *testing.T) {
	p, fs := newTestProvider(t)

	err := p.SaveSettings(testsettings.New())
	assert.ErrorIs(t, err, ErrNotRegistered)

	exists, _ := afero.Exists(fs, testingPath())
	assert.False(t, exists, "no I/O for unregistered ids")

	assert.ErrorIs(t, p.OverrideSettings(testsettings.New()), ErrNotRegistered)
	_, err = p.ResetSettings(testsettings.ID)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.ErrorIs(t, p.ReloadSettings(testsettings.ID), ErrNotRegistered)
	assert.ErrorIs(t, p.SaveSettings(nil), ErrNilInstance)
	assert.ErrorIs(t, p.OverrideSettings(nil), ErrNilInstance)
}

func TestResetThenOverride_Restores(t *testing.T) {
	p, fs := newTestProvider(t)
	prior := testsettings.New()
	require.NoError(t, p.RegisterSettings(prior))
	require.NoError(t, prior.Property(testsettings.TestProperty3).Apply(settings.Int(5)))
	require.NoError(t, p.SaveSettings(prior))

	before, err := afero.ReadFile(fs, testingPath())
	require.NoError(t, err)

	fresh, err := p.ResetSettings(testsettings.ID)
	require.NoError(t, err)
	assert.NotSame(t, prior, fresh)
	assert.True(t, testsettings.New().Equal(fresh))
	assert.Equal(t, prior.Identity(), fresh.Identity())

	got, _ := p.GetSettings(testsettings.ID)
	assert.Same(t, fresh, got)
	reset, _ := afero.ReadFile(fs, testingPath())
	assert.Equal(t, testingFile, string(reset))

	require.NoError(t, p.OverrideSettings(prior))

	got, _ = p.GetSettings(testsettings.ID)
	assert.Same(t, prior, got)
	after, _ := afero.ReadFile(fs, testingPath())
	assert.Equal(t, before, after)
}

func TestRegisterSettings_CorruptFile(t *testing.T) {
	p, fs := newTestProvider(t)
	require.NoError(t, afero.WriteFile(fs, testingPath(), []byte("{ not json"), 0o644))

	err := p.RegisterSettings(testsettings.New())

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, testingPath(), de.Path)
	assert.Equal(t, 0, p.Count())
}

func TestRegisterSettings_FieldErrorsKeepDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p, fs := newTestProvider(t, WithLogger(zap.New(core)), WithMetrics(m))

	content := `{
  // edited by hand
  "_version": 2,
  "DebugMode": false,
  "TestProperty3": "three",
  "TestProperty4": 500
}`
	require.NoError(t, afero.WriteFile(fs, testingPath(), []byte(content), 0o644))

	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))

	v, _ := inst.Get(testsettings.DebugMode)
	assert.False(t, v.AsBool())
	v, _ = inst.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(2), v.AsInt())
	v, _ = inst.Get(testsettings.TestProperty4)
	assert.Equal(t, 100.0, v.AsFloat(), "out of range values are clamped")

	entries := logs.FilterField(zap.String("field", testsettings.TestProperty3)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "storage", entries[0].LoggerName)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldErrorsTotal.WithLabelValues(testsettings.ID)))
}

func TestRegisterSettings_Migrates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	migrator := NewMigrator(
		MigrationRename(1, 2, "Debug", testsettings.DebugMode, "rename Debug"),
		MigrationTransform(1, 2, testsettings.TestProperty3, "scale", func(v any) (any, error) {
			n, err := settings.Coerce(settings.KindInt, v)
			if err != nil {
				return nil, err
			}
			return n.AsInt() * 2, nil
		}),
	)
	p, fs := newTestProvider(t, WithMigrator(testsettings.Type().Name(), migrator), WithMetrics(m))

	require.NoError(t, afero.WriteFile(fs, testingPath(), []byte(`{"Debug": false, "TestProperty3": 3}`), 0o644))

	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))

	v, _ := inst.Get(testsettings.DebugMode)
	assert.False(t, v.AsBool())
	v, _ = inst.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(6), v.AsInt())

	data, err := afero.ReadFile(fs, testingPath())
	require.NoError(t, err)
	decoded, err := JSONCodec{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, FileVersion(decoded))
	assert.NotContains(t, decoded, "Debug")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MigrationsTotal.WithLabelValues(testsettings.ID, "success")))
}

func TestRegisterSettings_MigrationFailure(t *testing.T) {
	migrator := NewMigrator(Migration{
		FromVersion: 1,
		ToVersion:   2,
		Migrate: func(map[string]any) (map[string]any, error) {
			return nil, errors.New("unsupported layout")
		},
	})
	p, fs := newTestProvider(t, WithMigrator(testsettings.Type().Name(), migrator))
	require.NoError(t, afero.WriteFile(fs, testingPath(), []byte(`{"_version": 1}`), 0o644))

	var de *DecodeError
	require.ErrorAs(t, p.RegisterSettings(testsettings.New()), &de)
	assert.Equal(t, 0, p.Count())
}

func TestRegisterSettings_IOFailure(t *testing.T) {
	p := New(WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

	err := p.RegisterSettings(testsettings.New())

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, p.Count())
}

func TestRegisterSettings_MigratedRewriteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, testingPath(), []byte(`{"DebugMode": false, "TestProperty3": 4}`), 0o644))
	p := New(WithFs(afero.NewReadOnlyFs(base)))
	inst := testsettings.New()

	var se *StorageError
	require.ErrorAs(t, p.RegisterSettings(inst), &se)

	assert.Equal(t, 0, p.Count())
	v, _ := inst.Get(testsettings.DebugMode)
	assert.True(t, v.AsBool(), "instance keeps its defaults")
	v, _ = inst.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestReloadSettings(t *testing.T) {
	n := notify.New()
	defer n.Close()
	p, fs := newTestProvider(t, WithNotifier(n))
	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))

	var changes []notify.Change
	n.SubscribePath(testsettings.ID, func(c notify.Change) { changes = append(changes, c) })

	// Unchanged file is skipped.
	require.NoError(t, p.ReloadSettings(testsettings.ID))
	assert.Empty(t, changes)

	edited := []byte(`{"_version": 2, "TestProperty3": 8}`)
	require.NoError(t, afero.WriteFile(fs, testingPath(), edited, 0o644))
	require.NoError(t, p.ReloadSettings(testsettings.ID))

	v, _ := inst.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(8), v.AsInt())
	require.Len(t, changes, 2)
	assert.Equal(t, notify.ChangeSet, changes[0].Type)
	assert.Equal(t, notify.ChangeReload, changes[1].Type)

	require.NoError(t, afero.WriteFile(fs, testingPath(), []byte("garbage{"), 0o644))
	var de *DecodeError
	require.ErrorAs(t, p.ReloadSettings(testsettings.ID), &de)
	v, _ = inst.Get(testsettings.TestProperty3)
	assert.Equal(t, int64(8), v.AsInt())

	require.NoError(t, fs.Remove(testingPath()))
	require.NoError(t, p.ReloadSettings(testsettings.ID))
	exists, _ := afero.Exists(fs, testingPath())
	assert.True(t, exists)
}

func TestProvider_Notifications(t *testing.T) {
	n := notify.New()
	defer n.Close()
	p, _ := newTestProvider(t, WithNotifier(n))

	var types []notify.ChangeType
	n.Subscribe(func(c notify.Change) { types = append(types, c.Type) })

	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))
	require.NoError(t, inst.Property(testsettings.DebugMode).Apply(settings.Bool(false)))
	require.NoError(t, p.SaveSettings(inst))
	_, err := p.ResetSettings(testsettings.ID)
	require.NoError(t, err)

	assert.Equal(t, []notify.ChangeType{notify.ChangeSet, notify.ChangeSave, notify.ChangeReplace}, types)
}

func TestProvider_ObserversMayCallBack(t *testing.T) {
	n := notify.New()
	defer n.Close()
	p, fs := newTestProvider(t, WithNotifier(n))
	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))

	seen := make(map[notify.ChangeType]int)
	n.SubscribePath(testsettings.ID, func(c notify.Change) {
		if c.Path != testsettings.ID {
			return
		}
		_, ok := p.GetSettings(testsettings.ID)
		assert.True(t, ok)
		assert.Equal(t, 1, p.Count())
		assert.Len(t, p.AllSettings(), 1)
		seen[c.Type]++
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.SaveSettings(inst))
		assert.NoError(t, p.OverrideSettings(inst))
		fresh, err := p.ResetSettings(testsettings.ID)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []error{nil}, p.SaveAll([]*settings.Instance{fresh}))
		edited := []byte(`{"_version": 2, "TestProperty3": 4}`)
		assert.NoError(t, afero.WriteFile(fs, testingPath(), edited, 0o644))
		assert.NoError(t, p.ReloadSettings(testsettings.ID))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("provider blocked while an observer read the registry")
	}
	assert.Equal(t, map[notify.ChangeType]int{
		notify.ChangeSave:    2,
		notify.ChangeReplace: 2,
		notify.ChangeReload:  1,
	}, seen)
}

func TestSaveAll(t *testing.T) {
	n := notify.New()
	defer n.Close()
	p, fs := newTestProvider(t, WithNotifier(n))
	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))
	stranger := testsettings.Type().NewWithIdentity(settings.Identity{ID: "Stranger", ModuleFolderName: "Stranger"})

	var saved []string
	n.Subscribe(func(c notify.Change) {
		if c.Type == notify.ChangeSave {
			saved = append(saved, c.Path)
		}
	})
	require.NoError(t, inst.Property(testsettings.TestProperty3).Apply(settings.Int(3)))

	errs := p.SaveAll([]*settings.Instance{stranger, inst, nil})

	require.Len(t, errs, 3)
	assert.ErrorIs(t, errs[0], ErrNotRegistered)
	assert.NoError(t, errs[1])
	assert.ErrorIs(t, errs[2], ErrNilInstance)
	assert.Equal(t, []string{testsettings.ID}, saved)
	data, err := afero.ReadFile(fs, testingPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"TestProperty3": 3`)
}

func TestAllSettings_Order(t *testing.T) {
	p, _ := newTestProvider(t)
	for _, name := range []string{"Bravo", "Alpha", "Charlie"} {
		inst := testsettings.Type().NewWithIdentity(settings.Identity{
			ID:               name,
			ModuleFolderName: name,
			DisplayName:      name + " Mod",
		})
		require.NoError(t, p.RegisterSettings(inst))
	}

	var names []string
	for _, inst := range p.AllSettings() {
		names = append(names, inst.DisplayName())
	}
	assert.Equal(t, []string{"Charlie Mod", "Bravo Mod", "Alpha Mod"}, names)

	assert.True(t, p.Unregister("Bravo"))
	assert.False(t, p.Unregister("Bravo"))
	assert.Equal(t, 2, p.Count())
}

func TestMetrics_Operations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p, _ := newTestProvider(t, WithMetrics(m))

	inst := testsettings.New()
	require.NoError(t, p.RegisterSettings(inst))
	require.Error(t, p.RegisterSettings(testsettings.New()))
	require.NoError(t, p.SaveSettings(inst))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("register", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("register", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("save", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registered))
	assert.Equal(t, float64(2*len(testingFile)), testutil.ToFloat64(m.BytesWritten))
}

func TestProvider_OtherCodecs(t *testing.T) {
	for _, codec := range []Codec{TOMLCodec{}, YAMLCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			p, fs := newTestProvider(t, WithCodec(codec))
			inst := testsettings.New()
			require.NoError(t, p.RegisterSettings(inst))
			assert.Equal(t, filepath.Join("ModSettings", "Testing", "Testing"+codec.Extension()), p.Path(inst))

			require.NoError(t, inst.Property(testsettings.TestProperty4).Apply(settings.Float(3.25)))
			require.NoError(t, inst.Property(testsettings.TestProperty6).Apply(settings.String("x")))
			require.NoError(t, p.SaveSettings(inst))

			loaded := testsettings.New()
			require.NoError(t, New(WithFs(fs), WithCodec(codec)).RegisterSettings(loaded))
			assert.True(t, inst.Equal(loaded))
		})
	}
}
