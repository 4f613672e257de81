package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stencil-lang/stencil/manifest"
)

// ---------------------------------------------------------------------------
// Superclass scanning
// ---------------------------------------------------------------------------

func TestScanSuperclass(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"#extends base\nHello\n", "base"},
		{"#extends base.layout\n", "base.layout"},
		{"Hello $name\n", ""},
		{"## comment\n#extends base\n", "base"},
		{"  #extends padded  \n", "padded"},
		{"#extendsnospace\n", ""},
	}
	for _, c := range cases {
		if got := ScanSuperclass(c.source); got != c.want {
			t.Errorf("ScanSuperclass(%q) = %q, want %q", c.source, got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

func writeTemplates(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, map[string]string{
		"base.layout.tmpl": "Hello\n",
		"page.tmpl":        "#extends base.layout\nHi\n",
		"notes.txt":        "not a template\n",
	})

	templates, err := Discover([]string{dir}, ".tmpl")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("found %d templates, want 2", len(templates))
	}
	// dots in the file name survive into the template name
	if templates[0].Name != "base.layout" {
		t.Errorf("templates[0].Name = %q, want base.layout", templates[0].Name)
	}
	if templates[1].Name != "page" || templates[1].Super != "base.layout" {
		t.Errorf("templates[1] = %q extends %q", templates[1].Name, templates[1].Super)
	}
	if templates[0].Hash == "" || templates[0].Hash == templates[1].Hash {
		t.Error("source hashes missing or colliding")
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover([]string{filepath.Join(t.TempDir(), "absent")}, ".tmpl"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

// ---------------------------------------------------------------------------
// Ordering
// ---------------------------------------------------------------------------

func TestSortByExtends(t *testing.T) {
	templates := []*Template{
		{Name: "c", Super: "b"},
		{Name: "a"},
		{Name: "b", Super: "a"},
		{Name: "d", Super: "a"},
	}
	ordered, err := SortByExtends(templates)
	if err != nil {
		t.Fatalf("SortByExtends failed: %v", err)
	}
	pos := make(map[string]int)
	for i, tpl := range ordered {
		pos[tpl.Name] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] || pos["a"] > pos["d"] {
		t.Errorf("order %v violates extends edges", pos)
	}
}

func TestSortByExtendsCycle(t *testing.T) {
	templates := []*Template{
		{Name: "a", Super: "b"},
		{Name: "b", Super: "a"},
	}
	_, err := SortByExtends(templates)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestSortByExtendsMissingSuper(t *testing.T) {
	_, err := SortByExtends([]*Template{{Name: "page", Super: "ghost"}})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected missing-superclass error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), ".stencil", "cache.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreUnitRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetUnit("deadbeef"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.PutUnit("deadbeef", "package templates\n"); err != nil {
		t.Fatal(err)
	}
	src, ok, err := s.GetUnit("deadbeef")
	if err != nil || !ok {
		t.Fatalf("GetUnit: ok=%v err=%v", ok, err)
	}
	if src != "package templates\n" {
		t.Errorf("cached source = %q", src)
	}
}

func TestStoreClassRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutClass("page", "h1", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	// same name under a different source hash is a distinct entry
	if _, ok, err := s.GetClass("page", "h2"); err != nil || ok {
		t.Fatalf("wrong hash: ok=%v err=%v", ok, err)
	}
	desc, ok, err := s.GetClass("page", "h1")
	if err != nil || !ok {
		t.Fatalf("GetClass: ok=%v err=%v", ok, err)
	}
	if len(desc) != 3 || desc[0] != 1 {
		t.Errorf("descriptor = %v", desc)
	}
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

func TestDescriptorRoundTrip(t *testing.T) {
	d := &ClassDescriptor{
		Name:  "Page",
		Super: "BaseLayout",
		Methods: []MethodDescriptor{
			{Name: "header", Params: []string{"title"}, Defaulted: []bool{true}, Virtual: true},
			{Name: "respond"},
		},
	}
	wire, err := MarshalDescriptor(d)
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalDescriptor(wire)
	if err != nil {
		t.Fatal(err)
	}
	if back.Name != "Page" || back.Super != "BaseLayout" {
		t.Errorf("class = %s(%s)", back.Name, back.Super)
	}
	if len(back.Methods) != 2 || back.Methods[0].Name != "header" {
		t.Fatalf("methods = %#v", back.Methods)
	}
	if !back.Methods[0].Virtual || !back.Methods[0].Defaulted[0] {
		t.Error("method flags lost in round trip")
	}

	// canonical mode keeps the encoding deterministic
	again, err := MarshalDescriptor(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(wire) {
		t.Error("encoding is not deterministic")
	}
}

// ---------------------------------------------------------------------------
// Whole-project builds
// ---------------------------------------------------------------------------

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, filepath.Join(dir, "templates"), map[string]string{
		"base.tmpl": "#block header\n<h1>$title</h1>\n#end block\nBody\n",
		"page.tmpl": "#extends base\nHello $user.name\n",
	})
	return &manifest.Manifest{
		Dir:     dir,
		Project: manifest.Project{Name: "site"},
		Source:  manifest.Source{Dirs: []string{"templates"}, Suffix: ".tmpl"},
		Output:  manifest.Output{Dir: "gen", Package: "views"},
	}
}

func TestBuildProject(t *testing.T) {
	m := testManifest(t)

	res, err := BuildProject(m, nil)
	if err != nil {
		t.Fatalf("BuildProject failed: %v", err)
	}
	if res.FromCache {
		t.Error("first build reported a cache hit")
	}
	for _, want := range []string{
		"package views",
		"type Base struct",
		"type Page struct",
		"func PageRespond(",
		"func InitTemplates(",
	} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("generated unit lacks %q", want)
		}
	}

	if len(res.Classes) != 2 {
		t.Fatalf("descriptors = %d, want 2", len(res.Classes))
	}
	// base compiles before page
	if res.Classes[0].Name != "Base" || res.Classes[1].Super != "Base" {
		t.Errorf("descriptor order = %s, %s(%s)",
			res.Classes[0].Name, res.Classes[1].Name, res.Classes[1].Super)
	}

	if err := WriteOutput(m, res); err != nil {
		t.Fatalf("WriteOutput failed: %v", err)
	}
	data, err := os.ReadFile(m.OutputPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != res.Source {
		t.Error("written output differs from result")
	}
}

func TestBuildProjectCaches(t *testing.T) {
	m := testManifest(t)
	s, err := OpenStore(m.CachePath())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first, err := BuildProject(m, s)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if first.FromCache {
		t.Error("first build reported a cache hit")
	}

	second, err := BuildProject(m, s)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if !second.FromCache {
		t.Error("second build missed the cache")
	}
	if second.Source != first.Source || second.Hash != first.Hash {
		t.Error("cached build differs from the original")
	}

	// editing a template invalidates the unit
	path := filepath.Join(m.Dir, "templates", "page.tmpl")
	if err := os.WriteFile(path, []byte("#extends base\nChanged\n"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := BuildProject(m, s)
	if err != nil {
		t.Fatalf("third build failed: %v", err)
	}
	if third.FromCache {
		t.Error("stale cache served after a source edit")
	}
	if third.Hash == first.Hash {
		t.Error("project hash ignored the source edit")
	}

	// class descriptors land in the store under the source hash
	templates, err := Discover(m.SourceDirPaths(), m.Source.Suffix)
	if err != nil {
		t.Fatal(err)
	}
	for _, tpl := range templates {
		wire, ok, err := s.GetClass(tpl.Name, tpl.Hash)
		if err != nil || !ok {
			t.Fatalf("descriptor of %s: ok=%v err=%v", tpl.Name, ok, err)
		}
		if _, err := UnmarshalDescriptor(wire); err != nil {
			t.Errorf("descriptor of %s does not decode: %v", tpl.Name, err)
		}
	}
}

func TestBuildProjectKnobsChangeHash(t *testing.T) {
	m := testManifest(t)
	plain, err := BuildProject(m, nil)
	if err != nil {
		t.Fatal(err)
	}

	m.Compiler.VariadicPaths = true
	variadic, err := BuildProject(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if variadic.Hash == plain.Hash {
		t.Error("compiler knobs not part of the project hash")
	}
	if !strings.Contains(variadic.Source, "ctx.ResolvePath(") {
		t.Error("variadic knob did not reach the generator")
	}
}

func TestBuildProjectEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, filepath.Join(dir, "templates"), nil)
	m := &manifest.Manifest{
		Dir:    dir,
		Source: manifest.Source{Dirs: []string{"templates"}, Suffix: ".tmpl"},
		Output: manifest.Output{Dir: "gen", Package: "views"},
	}
	if _, err := BuildProject(m, nil); err == nil {
		t.Fatal("expected error for a project without templates")
	}
}
