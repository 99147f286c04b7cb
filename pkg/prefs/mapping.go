package prefs

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed kinds.yaml
var embeddedKinds []byte

// KindMap is the versioned Kind -> Key lookup table.
// There is exactly one table per build; earlier revisions of the system
// carried slightly different key sets in several places, which is why the
// version is recorded and the table is loaded from one source.
type KindMap struct {
	version int
	entries map[Kind]mapEntry
}

type mapEntry struct {
	Key           Key  `yaml:"key"`
	ChamberFilter bool `yaml:"chamber_filter"`
}

type mappingFile struct {
	Version int               `yaml:"version"`
	Kinds   map[Kind]mapEntry `yaml:"kinds"`
}

// LoadKindMap parses a mapping table from raw YAML.
func LoadKindMap(raw []byte) (*KindMap, error) {
	var f mappingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Join(ErrInvalidMapping, err)
	}
	if f.Version <= 0 {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidMapping)
	}
	if len(f.Kinds) == 0 {
		return nil, fmt.Errorf("%w: no kinds defined", ErrInvalidMapping)
	}
	for kind, e := range f.Kinds {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: kind %q has no key", ErrInvalidMapping, kind)
		}
	}
	return &KindMap{version: f.Version, entries: f.Kinds}, nil
}

// DefaultKindMap loads the table embedded at build time.
func DefaultKindMap() (*KindMap, error) {
	return LoadKindMap(embeddedKinds)
}

// MustDefaultKindMap panics on a broken embedded table.
// The table ships with the binary, so a parse failure is a build defect.
func MustDefaultKindMap() *KindMap {
	m, err := DefaultKindMap()
	if err != nil {
		panic(err)
	}
	return m
}

// Version returns the table revision.
func (m *KindMap) Version() int { return m.version }

// Lookup resolves a kind to its preference key.
// ok is false for kinds absent from the table; callers must surface
// those rather than treat them as disabled.
func (m *KindMap) Lookup(kind Kind) (key Key, chamberFiltered bool, ok bool) {
	e, ok := m.entries[kind]
	if !ok {
		return "", false, false
	}
	return e.Key, e.ChamberFilter, true
}
