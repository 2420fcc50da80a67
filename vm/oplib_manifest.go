package vm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// OpManifest describes a compiled operator library via a TOML manifest
// file: one [[operator]] table per primitive the library exports.
type OpManifest struct {
	Library   LibraryMeta       `toml:"library"`
	Operators []OperatorEntry   `toml:"operator"`

	// dir is the directory the manifest was loaded from.
	dir string
}

// LibraryMeta carries the library's own identifying metadata.
type LibraryMeta struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// OperatorEntry names a single primitive operator and the native symbol
// that implements it.
type OperatorEntry struct {
	Name        string `toml:"name"`
	Symbol      string `toml:"symbol"`
	SharedObject string `toml:"shared_object"`
}

// LoadOpManifest parses a TOML operator-library manifest from dir,
// following the same "read the file, unmarshal into a typed struct"
// shape as a project manifest loader, generalized here to describe an
// operator library instead of a source project.
func LoadOpManifest(dir string) (*OpManifest, error) {
	path := filepath.Join(dir, "oplib.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vm: cannot read %s: %w", path, err)
	}

	var m OpManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("vm: parse error in %s: %w", path, err)
	}

	m.dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("vm: cannot resolve path %s: %w", dir, err)
	}
	return &m, nil
}

// FindAndLoadOpManifest walks up from startDir looking for an
// oplib.toml file, returning nil (not an error) if none is found.
func FindAndLoadOpManifest(startDir string) (*OpManifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, "oplib.toml")
		if _, err := os.Stat(path); err == nil {
			return LoadOpManifest(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ManifestOpLibrary is an OpLibrary backed by a parsed OpManifest: a
// primitive resolves if it is named in the manifest's operator list.
type ManifestOpLibrary struct {
	manifest *OpManifest
	byName   map[string]OperatorEntry
}

// NewManifestOpLibrary indexes m's operator entries by name.
func NewManifestOpLibrary(m *OpManifest) *ManifestOpLibrary {
	byName := make(map[string]OperatorEntry, len(m.Operators))
	for _, op := range m.Operators {
		byName[op.Name] = op
	}
	return &ManifestOpLibrary{manifest: m, byName: byName}
}

func (l *ManifestOpLibrary) HasPrimitive(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// Entry returns the manifest entry for name, if any.
func (l *ManifestOpLibrary) Entry(name string) (OperatorEntry, bool) {
	e, ok := l.byName[name]
	return e, ok
}
