package codegen

import (
	"strings"
	"testing"

	"github.com/stencil-lang/stencil/compiler"
)

// ---------------------------------------------------------------------------
// End-to-end generation
//
// These tests drive the whole back half: template source through the
// transpiler, parser and normalizer into a unit, then render the unit. The
// render formats through the imports processor, so malformed generated Go
// fails here.
// ---------------------------------------------------------------------------

func addTemplate(t *testing.T, u *Unit, name, tmpl string) *ClassDefinition {
	t.Helper()
	out, err := compiler.Transpile(tmpl)
	if err != nil {
		t.Fatalf("Transpile failed: %v", err)
	}
	mod, err := compiler.Parse(out.Source)
	if err != nil {
		t.Fatalf("Parse failed: %v\n%s", err, out.Source)
	}
	norm, err := compiler.Normalize(GoClassName(name), mod)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	def, err := u.AddClass(name, norm)
	if err != nil {
		t.Fatalf("AddClass failed: %v", err)
	}
	return def
}

func compileOne(t *testing.T, name, tmpl string) string {
	t.Helper()
	u := NewUnit("templates")
	addTemplate(t, u, name, tmpl)
	src, err := u.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	return src
}

func wantAll(t *testing.T, src string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(src, w) {
			t.Errorf("generated source missing %q", w)
		}
	}
	if t.Failed() {
		t.Logf("source:\n%s", src)
	}
}

func TestGenerateSimpleTemplate(t *testing.T) {
	src := compileOne(t, "page", "Hello $name!\n")
	wantAll(t, src,
		"type Page struct",
		"func newPage(ctx *runtime.Context, display, transaction, receiver *runtime.Object) *Page",
		"func (self *Page) respond() *runtime.Object",
		"func PageRespond(ctx *runtime.Context, display, receiver *runtime.Object) *runtime.Object",
		"ctx.ListAppend(self.transaction",
		"runtime.DictGetItem(self.display",
		`ctx.SetKeyError("name")`,
		"return runtime.None",
		"func InitTemplates(ctx *runtime.Context) error",
	)
}

func TestGenerateSetAndPlaceholder(t *testing.T) {
	src := compileOne(t, "page", "#set $x = 1\n$x\n")
	wantAll(t, src,
		"var l_x *runtime.Object",
		`ctx.SetNameError("x")`,
		"runtime.XDecref(l_x)",
	)
}

func TestGenerateIfElse(t *testing.T) {
	src := compileOne(t, "page", "#if $cond\nYes\n#else\nNo\n#end if\n")
	wantAll(t, src,
		"ctx.IsTrue(",
		" < 0 {",
		"} else {",
	)
}

func TestGenerateForLoop(t *testing.T) {
	src := compileOne(t, "page", "#for $item in $items\n$item\n#end for\n")
	wantAll(t, src,
		`ctx.SequenceFast(`,
		"runtime.SequenceFastLen(",
		"runtime.SequenceFastItem(",
		"var l_item *runtime.Object",
		"runtime.Incref(",
		// the loop variable is cleared when the loop exits
		"l_item = nil",
	)
}

func TestGenerateDynamicKeywordCall(t *testing.T) {
	src := compileOne(t, "page", "$render($x, mode=1)\n")
	wantAll(t, src,
		"runtime.TuplePack(",
		"runtime.NewDict()",
		"ctx.DictSetItem(",
		"ctx.Call(",
	)
}

func TestGenerateDefWithDefaults(t *testing.T) {
	tmpl := "#def greet($name, $mode=1)\nHi $name\n#end def\n$self.greet($who)\n"
	src := compileOne(t, "page", tmpl)
	wantAll(t, src,
		"func (self *Page) greet(l_name *runtime.Object, l_mode *runtime.Object) *runtime.Object",
		"if l_mode == nil",
		"expressions[0]",
		"self.impl.(interface",
		", nil)",
	)
}

func TestGenerateConditionTestsEachOperandOnce(t *testing.T) {
	// A boolean operator under if/while/ternary branches on the operand
	// flags directly: one IsTrue per operand, none on a merged value.
	tests := []struct {
		name string
		tmpl string
		want int
	}{
		{"or", "#if $a or $b\nYes\n#end if\n", 2},
		{"and", "#if $a and $b\nYes\n#end if\n", 2},
		{"nested", "#if $a or $b and $c\nYes\n#end if\n", 3},
		{"while", "#set $x = 1\n#while $x and $flag\n#break\n#end while\n", 2},
		{"ternary", "${'big' if $a or $b else 'small'}\n", 2},
	}
	for _, tc := range tests {
		src := compileOne(t, "page", tc.tmpl)
		if got := strings.Count(src, "ctx.IsTrue("); got != tc.want {
			t.Errorf("%s: emitted %d truth tests, want %d\n%s",
				tc.name, got, tc.want, src)
		}
	}
}

func TestGenerateBoolOpValueKeepsShortCircuit(t *testing.T) {
	// In value position the winning operand's object survives, so the
	// merged slot still exists there.
	src := compileOne(t, "page", "#set $x = $a or $b\n$x\n")
	wantAll(t, src,
		"ctx.IsTrue(",
		"} else {",
	)
}

func TestGenerateCaptureBlock(t *testing.T) {
	src := compileOne(t, "page", "#call layout\nbody text\n#end call\n")
	wantAll(t, src,
		"runtime.NewTransaction()",
		"self.transaction = ",
		"ctx.JoinList(",
		"ctx.CallPositional(",
	)
}

func TestGenerateCaptureRestoresBufferOnFailure(t *testing.T) {
	// A failed lookup inside the capture body exits the method while the
	// instance still points at the capture list; that exit must put the
	// saved transaction back before releasing anything.
	src := compileOne(t, "page", "#call layout\n$missing\n#end call\n")
	i := strings.Index(src, `ctx.SetKeyError("missing")`)
	if i < 0 {
		t.Fatalf("lookup failure path not generated\n%s", src)
	}
	tail := src[i:]
	j := strings.Index(tail, "return nil")
	if j < 0 {
		t.Fatalf("lookup failure path does not return\n%s", src)
	}
	if !strings.Contains(tail[:j], "self.transaction = ") {
		t.Errorf("failure exit inside capture does not restore the transaction\n%s", src)
	}
}

func TestGenerateCaptureRestoresBufferOnReturn(t *testing.T) {
	src := compileOne(t, "page", "#call layout\n#return\n#end call\n")
	i := strings.Index(src, "self.transaction = v")
	if i < 0 {
		t.Fatalf("no transaction swap generated\n%s", src)
	}
	j := strings.Index(src[i:], "return runtime.None")
	if j < 0 {
		t.Fatalf("return inside capture not generated\n%s", src)
	}
	// the swap plus the restore, both before the return
	if strings.Count(src[i:i+j], "self.transaction = v") < 2 {
		t.Errorf("return inside capture does not restore the transaction\n%s", src)
	}
}

func TestGenerateExtendsAndBlocks(t *testing.T) {
	u := NewUnit("templates")
	addTemplate(t, u, "base", "#block header\ndefault header\n#end block\nbody\n")
	addTemplate(t, u, "child", "#extends base\n#block header\ncustom header\n#end block\n")
	src, err := u.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	wantAll(t, src,
		"type Child struct {\n\tBase\n}",
		"func (self *Child) header(",
		"func ChildRespond(",
	)
	// the subclass renders through the inherited respond
	if strings.Contains(src, "func (self *Child) respond(") {
		t.Error("subclass compiled its own respond method")
	}
	if !u.Class("base").Lookup("header").Virtual {
		t.Error("override did not mark the base block virtual")
	}
}

func TestGenerateSuperclassMustBeCompiledFirst(t *testing.T) {
	u := NewUnit("templates")
	out, _ := compiler.Transpile("#extends base\nHi\n")
	mod, _ := compiler.Parse(out.Source)
	norm, _ := compiler.Normalize("Child", mod)
	if _, err := u.AddClass("child", norm); err == nil {
		t.Fatal("unresolved superclass accepted")
	}
}

func TestGenerateImports(t *testing.T) {
	src := compileOne(t, "page", "#import util\n$util.version\n")
	wantAll(t, src,
		`ctx.ImportModule("util")`,
		"resolvePath0(ctx, importedNames[0])",
	)
}

func TestGenerateVariadicPaths(t *testing.T) {
	u := NewUnit("templates")
	u.VariadicPaths(true)
	addTemplate(t, u, "page", "$user.name\n")
	src, err := u.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	wantAll(t, src, "ctx.ResolvePath(")
	if strings.Contains(src, "resolvePath0") {
		t.Error("variadic mode still emitted a per-path resolver")
	}
}

func TestGenerateReceiverPaths(t *testing.T) {
	src := compileOne(t, "page", "$self.title\n")
	wantAll(t, src,
		"if self.receiver == nil",
		`ctx.SetNameError("self")`,
		"resolvePath0(ctx, self.receiver)",
	)
}

func TestGeneratePromotesAssignedParameter(t *testing.T) {
	tmpl := "#def greet($name)\n#set $name = 1\n$name\n#end def\n$self.greet($who)\n"
	src := compileOne(t, "page", tmpl)
	wantAll(t, src, "runtime.XIncref(l_name)")
}

func TestGenerateSuperCall(t *testing.T) {
	u := NewUnit("templates")
	addTemplate(t, u, "base", "#block header\nhi\n#end block\n")
	addTemplate(t, u, "child",
		"#extends base\n#block header\n$super().header()\nbye\n#end block\n")
	src, err := u.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	wantAll(t, src, "self.Base.header()")
}

// ---------------------------------------------------------------------------
// Unsupported constructs
// ---------------------------------------------------------------------------

func TestGenerateUnsupportedStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"try", "try:\n\tpass\nexcept:\n\tpass\n"},
		{"raise", "raise x\n"},
		{"yield", "yield x\n"},
		{"global", "global x\n"},
		{"del", "del x\n"},
		{"chained comparison", "a < b < c\n"},
		{"tuple-unpacking loop target", "for a, b in items:\n\tpass\n"},
		{"bare sequence literal", "[1, 2]\n"},
	}
	for _, tc := range tests {
		mod, err := compiler.Parse(tc.src)
		if err != nil {
			t.Fatalf("%s: Parse failed: %v", tc.name, err)
		}
		norm, err := compiler.Normalize("Page", mod)
		if err != nil {
			t.Fatalf("%s: Normalize failed: %v", tc.name, err)
		}
		u := NewUnit("templates")
		_, err = u.AddClass("page", norm)
		if err == nil {
			t.Errorf("%s: accepted", tc.name)
			continue
		}
		if _, ok := err.(*UnsupportedError); !ok {
			t.Errorf("%s: error type = %T, want *UnsupportedError", tc.name, err)
		}
	}
}

func TestGenerateMethodCallAsValue(t *testing.T) {
	tmpl := "#def greet($name)\nHi\n#end def\n#set $x = $self.greet($a)\n"
	out, err := compiler.Transpile(tmpl)
	if err != nil {
		t.Fatalf("Transpile failed: %v", err)
	}
	mod, err := compiler.Parse(out.Source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	norm, err := compiler.Normalize("Page", mod)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	u := NewUnit("templates")
	_, err = u.AddClass("page", norm)
	if err == nil {
		t.Fatal("method call in value position accepted")
	}
	if _, ok := err.(*UnsupportedError); !ok {
		t.Errorf("error type = %T, want *UnsupportedError", err)
	}
}

func TestGenerateArgumentMismatches(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
	}{
		{"too many", "#def greet($name)\nHi\n#end def\n$self.greet($a, $b)\n"},
		{"unknown keyword", "#def greet($name)\nHi\n#end def\n$self.greet(nope=$a)\n"},
		{"duplicate", "#def greet($name)\nHi\n#end def\n$self.greet($a, name=$b)\n"},
		{"missing", "#def greet($name)\nHi\n#end def\n$self.greet()\n"},
	}
	for _, tc := range tests {
		out, err := compiler.Transpile(tc.tmpl)
		if err != nil {
			t.Fatalf("%s: Transpile failed: %v", tc.name, err)
		}
		mod, err := compiler.Parse(out.Source)
		if err != nil {
			t.Fatalf("%s: Parse failed: %v", tc.name, err)
		}
		norm, err := compiler.Normalize("Page", mod)
		if err != nil {
			t.Fatalf("%s: Normalize failed: %v", tc.name, err)
		}
		u := NewUnit("templates")
		if _, err := u.AddClass("page", norm); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}

func TestGoClassName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"page", "Page"},
		{"base.layout", "BaseLayout"},
		{"my_site.nav-bar", "MySiteNavBar"},
	}
	for _, tc := range tests {
		if got := GoClassName(tc.in); got != tc.want {
			t.Errorf("GoClassName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
