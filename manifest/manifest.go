// Package manifest handles stencil.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a stencil.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Source   Source   `toml:"source"`
	Output   Output   `toml:"output"`
	Compiler Compiler `toml:"compiler"`

	// Dir is the directory containing the stencil.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where templates are discovered.
type Source struct {
	Dirs   []string `toml:"dirs"`
	Suffix string   `toml:"suffix"`
}

// Output configures the generated source unit.
type Output struct {
	Dir     string `toml:"dir"`
	Package string `toml:"package"`
}

// Compiler holds the code-generation knobs.
type Compiler struct {
	// VariadicPaths lowers dotted paths through the runtime's generic
	// resolver instead of per-path functions.
	VariadicPaths bool `toml:"variadic-paths"`
	// MaxNativeInt is the largest magnitude an integer literal may have
	// and still construct natively; 0 means the full int64 range.
	MaxNativeInt int64 `toml:"max-native-int"`
}

// Load parses a stencil.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "stencil.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"templates"}
	}
	if m.Source.Suffix == "" {
		m.Source.Suffix = ".tmpl"
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "gen"
	}
	if m.Output.Package == "" {
		m.Output.Package = "templates"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a stencil.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "stencil.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured template directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputPath returns the path of the generated source unit.
func (m *Manifest) OutputPath() string {
	return filepath.Join(m.Dir, m.Output.Dir, m.Output.Package+".go")
}

// CachePath returns the path to the .stencil/cache.db compile cache.
func (m *Manifest) CachePath() string {
	return filepath.Join(m.Dir, ".stencil", "cache.db")
}
