package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/dshills/modsettings/internal/settings"
)

// Migration upgrades decoded settings data from one storage version to the next.
type Migration struct {
	// FromVersion is the source storage version.
	FromVersion int

	// ToVersion is the target storage version.
	ToVersion int

	// Description describes what the migration does.
	Description string

	// Migrate performs the migration on the decoded data.
	Migrate func(data map[string]any) (map[string]any, error)
}

// MigrationResult contains the result of a single migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Description string
	Success     bool
	Error       error
}

// Migrator upgrades settings files of one type to its current storage version.
type Migrator struct {
	migrations []Migration
}

// NewMigrator creates a migrator with the given migrations.
func NewMigrator(migrations ...Migration) *Migrator {
	m := &Migrator{}
	for _, mig := range migrations {
		m.Register(mig)
	}
	return m
}

// Register adds a migration.
func (m *Migrator) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].FromVersion < m.migrations[j].FromVersion
	})
}

// NeedsMigration reports whether data is older than target.
func (m *Migrator) NeedsMigration(data map[string]any, target int) bool {
	return FileVersion(data) < target
}

// Migrate applies every migration between the data's version and target,
// in order, and stamps the result with target. Migrations sharing a
// FromVersion all run.
func (m *Migrator) Migrate(data map[string]any, target int) (map[string]any, []MigrationResult, error) {
	from := FileVersion(data)
	var results []MigrationResult

	for _, mig := range m.migrations {
		if mig.FromVersion < from {
			continue
		}
		if mig.ToVersion > target {
			continue
		}

		migrated, err := mig.Migrate(data)
		result := MigrationResult{
			FromVersion: mig.FromVersion,
			ToVersion:   mig.ToVersion,
			Description: mig.Description,
		}
		if err != nil {
			result.Error = err
			results = append(results, result)
			return data, results, fmt.Errorf("migration from %d to %d failed: %w",
				mig.FromVersion, mig.ToVersion, err)
		}

		result.Success = true
		results = append(results, result)
		data = migrated
	}

	data[settings.VersionKey] = target
	return data, results, nil
}

// FileVersion returns the storage version recorded in decoded data.
// Files without a version key are version 1.
func FileVersion(data map[string]any) int {
	switch v := data[settings.VersionKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 1
}

// MigrationRename creates a migration that renames a field.
func MigrationRename(from, to int, oldName, newName, description string) Migration {
	return Migration{
		FromVersion: from,
		ToVersion:   to,
		Description: description,
		Migrate: func(data map[string]any) (map[string]any, error) {
			value, found := data[oldName]
			if !found {
				return data, nil
			}
			data[newName] = value
			delete(data, oldName)
			return data, nil
		},
	}
}

// MigrationTransform creates a migration that transforms a field's value.
func MigrationTransform(from, to int, name, description string, transform func(any) (any, error)) Migration {
	return Migration{
		FromVersion: from,
		ToVersion:   to,
		Description: description,
		Migrate: func(data map[string]any) (map[string]any, error) {
			value, found := data[name]
			if !found {
				return data, nil
			}
			newValue, err := transform(value)
			if err != nil {
				return nil, fmt.Errorf("transforming %s: %w", name, err)
			}
			data[name] = newValue
			return data, nil
		},
	}
}

// MigrationDelete creates a migration that deletes a field.
func MigrationDelete(from, to int, name, description string) Migration {
	return Migration{
		FromVersion: from,
		ToVersion:   to,
		Description: description,
		Migrate: func(data map[string]any) (map[string]any, error) {
			delete(data, name)
			return data, nil
		},
	}
}
