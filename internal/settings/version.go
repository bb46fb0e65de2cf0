package settings

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/hashicorp/go-version"
)

// VersionTable maps host release tags (e.g., "e1.0.10") to the storage
// version of a settings type. Storage versions never decrease as release
// tags increase.
type VersionTable struct {
	entries []versionEntry
}

type versionEntry struct {
	tag     string
	release *version.Version
	storage int
}

// NewVersionTable creates an empty table.
func NewVersionTable() *VersionTable {
	return &VersionTable{}
}

// Register associates a release tag with a storage version.
func (t *VersionTable) Register(tag string, storage int) error {
	release, err := parseReleaseTag(tag)
	if err != nil {
		return err
	}
	if storage < 1 {
		return fmt.Errorf("release %s: storage version must be positive, got %d", tag, storage)
	}

	entries := make([]versionEntry, 0, len(t.entries)+1)
	replaced := false
	for _, e := range t.entries {
		if e.release.Equal(release) {
			e = versionEntry{tag: tag, release: release, storage: storage}
			replaced = true
		}
		entries = append(entries, e)
	}
	if !replaced {
		entries = append(entries, versionEntry{tag: tag, release: release, storage: storage})
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].release.LessThan(entries[j].release)
		})
	}

	if err := checkMonotonic(entries); err != nil {
		return err
	}
	t.entries = entries
	return nil
}

// checkMonotonic verifies storage versions never decrease over release order.
func checkMonotonic(entries []versionEntry) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.storage < prev.storage {
			return fmt.Errorf("%w: %s=%d after %s=%d",
				ErrVersionRegression, cur.tag, cur.storage, prev.tag, prev.storage)
		}
	}
	return nil
}

// Lookup returns the storage version registered for a release tag.
func (t *VersionTable) Lookup(tag string) (int, bool) {
	release, err := parseReleaseTag(tag)
	if err != nil {
		return 0, false
	}
	for _, e := range t.entries {
		if e.release.Equal(release) {
			return e.storage, true
		}
	}
	return 0, false
}

// Current returns the storage version of the newest release tag.
// An empty table reports version 1.
func (t *VersionTable) Current() int {
	if t == nil || len(t.entries) == 0 {
		return 1
	}
	return t.entries[len(t.entries)-1].storage
}

// Tags returns the registered release tags, oldest first.
func (t *VersionTable) Tags() []string {
	tags := make([]string, len(t.entries))
	for i, e := range t.entries {
		tags[i] = e.tag
	}
	return tags
}

// Len returns the number of registered tags.
func (t *VersionTable) Len() int {
	return len(t.entries)
}

// parseReleaseTag parses tags with an alphabetic channel prefix ("e1.0.3").
func parseReleaseTag(tag string) (*version.Version, error) {
	trimmed := strings.TrimLeftFunc(strings.TrimSpace(tag), unicode.IsLetter)
	v, err := version.NewVersion(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", tag, err)
	}
	return v, nil
}
