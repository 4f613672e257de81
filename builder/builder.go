// Package builder orchestrates whole-project template compilation: it
// discovers template files, orders them by their declared superclasses,
// compiles them into one generated source unit through shared registries,
// and caches results in a SQLite store.
package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/stencil-lang/stencil/codegen"
	"github.com/stencil-lang/stencil/compiler"
	"github.com/stencil-lang/stencil/manifest"
)

var log = commonlog.GetLogger("stencil.builder")

// Template is one discovered template file.
type Template struct {
	// Name is the dotted template name derived from the file name.
	Name   string
	Path   string
	Source string
	// Super is the template name declared by an extends directive, or "".
	Super string
	// Hash is the hex SHA-256 of the source text.
	Hash string
}

// ScanSuperclass extracts the superclass declared by an extends directive,
// scanning the source textually. The first extends line wins; the compiler
// proper validates placement later.
func ScanSuperclass(source string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "#extends"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// Discover collects the template files under the given directories. The
// template name is the file name without the suffix; a directory without
// templates is not an error, a missing directory is.
func Discover(dirs []string, suffix string) ([]*Template, error) {
	var out []*Template
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("builder: reading template directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("builder: reading %s: %w", path, err)
			}
			src := string(data)
			sum := sha256.Sum256(data)
			out = append(out, &Template{
				Name:   strings.TrimSuffix(e.Name(), suffix),
				Path:   path,
				Source: src,
				Super:  ScanSuperclass(src),
				Hash:   hex.EncodeToString(sum[:]),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SortByExtends orders templates so every superclass precedes its
// subclasses. A cycle or a superclass absent from the project fails loudly.
func SortByExtends(templates []*Template) ([]*Template, error) {
	byName := make(map[string]*Template, len(templates))
	for _, t := range templates {
		if other, ok := byName[t.Name]; ok {
			return nil, fmt.Errorf("builder: template %s defined by both %s and %s",
				t.Name, other.Path, t.Path)
		}
		byName[t.Name] = t
	}

	indegree := make(map[string]int, len(templates))
	children := make(map[string][]string)
	for _, t := range templates {
		if t.Super == "" {
			continue
		}
		if _, ok := byName[t.Super]; !ok {
			return nil, fmt.Errorf("builder: superclass %s of %s is not in the project",
				t.Super, t.Name)
		}
		indegree[t.Name]++
		children[t.Super] = append(children[t.Super], t.Name)
	}

	var ready []string
	for _, t := range templates {
		if indegree[t.Name] == 0 {
			ready = append(ready, t.Name)
		}
	}
	sort.Strings(ready)

	out := make([]*Template, 0, len(templates))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, byName[name])
		next := children[name]
		sort.Strings(next)
		for _, c := range next {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(out) != len(templates) {
		var stuck []string
		for _, t := range templates {
			if indegree[t.Name] > 0 {
				stuck = append(stuck, t.Name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("builder: extends cycle through %s", strings.Join(stuck, ", "))
	}
	return out, nil
}

// CompileTemplates runs the full compile pipeline for each template, in the
// given order, into a shared unit. Superclasses must come first; SortByExtends
// produces a valid order.
func CompileTemplates(u *codegen.Unit, templates []*Template) error {
	for _, t := range templates {
		out, err := compiler.Transpile(t.Source)
		if err != nil {
			return fmt.Errorf("builder: %s: %w", t.Path, err)
		}
		mod, err := compiler.Parse(out.Source)
		if err != nil {
			return fmt.Errorf("builder: %s: %w", t.Path, err)
		}
		norm, err := compiler.Normalize(codegen.GoClassName(t.Name), mod)
		if err != nil {
			return fmt.Errorf("builder: %s: %w", t.Path, err)
		}
		if _, err := u.AddClass(t.Name, norm); err != nil {
			return fmt.Errorf("builder: %s: %w", t.Path, err)
		}
	}
	return nil
}

// Result is the outcome of a project build.
type Result struct {
	// Source is the generated unit.
	Source string
	// Hash is the project hash the unit is cached under.
	Hash string
	// FromCache reports that the unit was served from the compile cache
	// without recompiling.
	FromCache bool
	// Classes holds the wire descriptor of each compiled class, in
	// compilation order. Empty on a cache hit.
	Classes []*ClassDescriptor
}

// projectHash fingerprints a build: every template's name and source hash in
// sorted order, plus the compiler knobs that shape the output.
func projectHash(templates []*Template, cfg manifest.Compiler) string {
	h := sha256.New()
	for _, t := range templates {
		fmt.Fprintf(h, "%s\x00%s\n", t.Name, t.Hash)
	}
	fmt.Fprintf(h, "variadic=%v max-native-int=%d\n", cfg.VariadicPaths, cfg.MaxNativeInt)
	return hex.EncodeToString(h.Sum(nil))
}

// BuildProject compiles every template of a project into one generated
// source unit, consulting the compile cache first. A nil store disables
// caching.
func BuildProject(m *manifest.Manifest, store *Store) (*Result, error) {
	templates, err := Discover(m.SourceDirPaths(), m.Source.Suffix)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("builder: no %s templates under %s",
			m.Source.Suffix, strings.Join(m.Source.Dirs, ", "))
	}

	hash := projectHash(templates, m.Compiler)
	if store != nil {
		cached, ok, err := store.GetUnit(hash)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Infof("unit %.12s served from cache (%d templates)", hash, len(templates))
			return &Result{Source: cached, Hash: hash, FromCache: true}, nil
		}
	}

	ordered, err := SortByExtends(templates)
	if err != nil {
		return nil, err
	}
	log.Infof("compiling %d templates", len(ordered))

	u := codegen.NewUnit(m.Output.Package)
	u.VariadicPaths(m.Compiler.VariadicPaths)
	if m.Compiler.MaxNativeInt > 0 {
		u.MaxNativeInt(m.Compiler.MaxNativeInt)
	}
	if err := CompileTemplates(u, ordered); err != nil {
		return nil, err
	}
	source, err := u.Source()
	if err != nil {
		return nil, err
	}

	res := &Result{Source: source, Hash: hash}
	for _, t := range ordered {
		res.Classes = append(res.Classes, DescriptorFor(u.Class(t.Name)))
	}

	if store != nil {
		if err := store.PutUnit(hash, source); err != nil {
			return nil, err
		}
		for i, t := range ordered {
			wire, err := MarshalDescriptor(res.Classes[i])
			if err != nil {
				return nil, fmt.Errorf("builder: encoding descriptor of %s: %w", t.Name, err)
			}
			if err := store.PutClass(t.Name, t.Hash, wire); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// WriteOutput writes a build result to the manifest's output path, creating
// the output directory if needed.
func WriteOutput(m *manifest.Manifest, res *Result) error {
	path := m.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("builder: creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(res.Source), 0644); err != nil {
		return fmt.Errorf("builder: writing %s: %w", path, err)
	}
	log.Infof("wrote %s", path)
	return nil
}
