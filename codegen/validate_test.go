package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Generated-source validation
//
// Render a unit covering most of the statement and expression surface, then
// check it with go/parser. The render already round-trips through the imports
// processor; parsing again lets us walk the tree for structural checks.
// ---------------------------------------------------------------------------

var fixtureTemplates = []struct {
	name string
	tmpl string
}{
	{"base.layout", "#def header($title)\n" +
		"<h1>$title</h1>\n" +
		"#end def\n" +
		"#block body\n" +
		"fallback body\n" +
		"#end block\n"},
	{"page", "#extends base.layout\n" +
		"#import util\n" +
		"#block body\n" +
		"#for $item in $items\n" +
		"#if $item.visible and not $item.hidden\n" +
		"<li>$item.label</li>\n" +
		"#elif $item.count > 10\n" +
		"<li>many</li>\n" +
		"#else\n" +
		"<li>-</li>\n" +
		"#end if\n" +
		"#end for\n" +
		"#end block\n"},
	{"widget", "#def rows($n=3)\n" +
		"#set $i = 0\n" +
		"#while $i < $n\n" +
		"row $i\n" +
		"#set $i = $i + 1\n" +
		"#if $i % 2 == 0\n" +
		"#continue\n" +
		"#end if\n" +
		"#if $i > 100\n" +
		"#break\n" +
		"#end if\n" +
		"#end while\n" +
		"#end def\n" +
		"$self.rows(2)\n" +
		"$items[0]\n" +
		"${'big' if $count > 5 else 'small'}\n"},
}

func renderFixtures(t *testing.T) string {
	t.Helper()
	u := NewUnit("templates")
	for _, f := range fixtureTemplates {
		addTemplate(t, u, f.name, f.tmpl)
	}
	src, err := u.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	return src
}

func TestGeneratedUnitParses(t *testing.T) {
	src := renderFixtures(t)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "templates.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated unit does not parse: %v\n%s", err, src)
	}
	if file.Name.Name != "templates" {
		t.Errorf("package = %s, want templates", file.Name.Name)
	}

	decls := make(map[string]bool)
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Recv == nil {
			decls[fn.Name.Name] = true
		}
	}
	for _, want := range []string{
		"InitTemplates", "initLiterals", "initImports", "initExpressions",
		"BaseLayoutRespond", "PageRespond", "WidgetRespond",
	} {
		if !decls[want] {
			t.Errorf("generated unit lacks func %s", want)
		}
	}
}

func TestGeneratedResolversAreReferenced(t *testing.T) {
	src := renderFixtures(t)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "templates.go", src, 0)
	if err != nil {
		t.Fatalf("generated unit does not parse: %v", err)
	}

	// interning means every emitted resolver has a caller
	declared := make(map[string]bool)
	called := make(map[string]bool)
	for _, d := range file.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		name := fn.Name.Name
		if strings.HasPrefix(name, "resolvePath") {
			declared[name] = true
		}
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			if call, ok := n.(*ast.CallExpr); ok {
				if id, ok := call.Fun.(*ast.Ident); ok && strings.HasPrefix(id.Name, "resolvePath") {
					called[id.Name] = true
				}
			}
			return true
		})
	}
	if len(declared) == 0 {
		t.Fatal("fixtures produced no path resolvers")
	}
	for name := range declared {
		if !called[name] {
			t.Errorf("resolver %s is declared but never called", name)
		}
	}
}
