package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"
)

// ---------------------------------------------------------------------------
// Interning
// ---------------------------------------------------------------------------

func TestLiteralRegistryInterns(t *testing.T) {
	r := NewLiteralRegistry()
	a := r.InternString("hello")
	b := r.InternString("hello")
	c := r.InternString("world")
	if a != b {
		t.Errorf("same string interned twice: %d and %d", a, b)
	}
	if a == c {
		t.Errorf("distinct strings share slot %d", a)
	}
	// same text, different kinds
	if r.InternInt("1") == r.InternString("1") {
		t.Error("int and string literal share a slot")
	}
	if r.Len() != 4 {
		t.Errorf("Len = %d, want 4", r.Len())
	}
}

func TestPathRegistryInterns(t *testing.T) {
	lits := NewLiteralRegistry()
	r := NewPathRegistry(lits)
	a := r.Intern([]string{"user", "name"})
	b := r.Intern([]string{"user", "name"})
	c := r.Intern([]string{"user"})
	if a != b {
		t.Errorf("same path interned twice: %d and %d", a, b)
	}
	if a == c {
		t.Errorf("distinct paths share slot %d", a)
	}
	// segment names land in the literal table
	if lits.Len() != 2 {
		t.Errorf("segment literals = %d, want 2", lits.Len())
	}
}

func TestImportRegistryBindAndLookup(t *testing.T) {
	lits := NewLiteralRegistry()
	r := NewImportRegistry(lits)
	a := r.Bind("util", "util", "")
	b := r.Bind("fmt", "helpers", "fmt")
	if a == b {
		t.Error("distinct bindings share a slot")
	}
	if r.Bind("util", "util", "") != a {
		t.Error("rebinding allocated a new slot")
	}
	if _, ok := r.Lookup("util"); !ok {
		t.Error("bound name not found")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("lookup invented a binding")
	}
}

func TestLiteralRegistryMaxNativeInt(t *testing.T) {
	r := NewLiteralRegistry()
	r.MaxNative = 1000
	r.InternInt("999")
	r.InternInt("2000")
	src := renderFile(t, r.Emit)
	if !strings.Contains(src, "runtime.NewInt(999)") {
		t.Errorf("in-range literal left the native path:\n%s", src)
	}
	if !strings.Contains(src, `runtime.IntFromDecimal("2000")`) {
		t.Errorf("oversized literal constructed natively:\n%s", src)
	}
}

// ---------------------------------------------------------------------------
// Emitted tables
// ---------------------------------------------------------------------------

func renderFile(t *testing.T, emit func(*jen.File)) string {
	t.Helper()
	f := jen.NewFile("generated")
	emit(f)
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return buf.String()
}

func TestLiteralRegistryEmit(t *testing.T) {
	r := NewLiteralRegistry()
	r.InternString("hi")
	r.InternInt("42")
	r.InternInt("123456789123456789123456789")
	r.InternFloat("2.5")
	src := renderFile(t, r.Emit)

	for _, want := range []string{
		"var literals [4]",
		`runtime.NewString("hi")`,
		"runtime.NewInt(42)",
		`runtime.IntFromDecimal("123456789123456789123456789")`,
		"runtime.NewFloat(2.5)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("emitted literals missing %q:\n%s", want, src)
		}
	}
}

func TestPathRegistryEmitDictFirstAttrFallback(t *testing.T) {
	lits := NewLiteralRegistry()
	r := NewPathRegistry(lits)
	r.Intern([]string{"user", "name"})
	src := renderFile(t, r.Emit)

	if !strings.Contains(src, "func resolvePath0(ctx *runtime.Context, base *runtime.Object) *runtime.Object") {
		t.Fatalf("resolver signature missing:\n%s", src)
	}
	dict := strings.Index(src, "runtime.DictGetItem")
	attr := strings.Index(src, "ctx.GetAttr")
	if dict < 0 || attr < 0 || dict > attr {
		t.Errorf("resolver must try the mapping before attributes:\n%s", src)
	}
	// intermediate references are released as the walk advances
	if !strings.Contains(src, "runtime.Decref(cur)") {
		t.Errorf("resolver never releases intermediates:\n%s", src)
	}
	if !strings.Contains(src, "if base == nil") {
		t.Errorf("resolver missing nil-base guard:\n%s", src)
	}
}

func TestImportRegistryEmit(t *testing.T) {
	lits := NewLiteralRegistry()
	r := NewImportRegistry(lits)
	r.Bind("util", "util", "")
	r.Bind("fmt", "helpers", "fmt")
	src := renderFile(t, r.Emit)

	for _, want := range []string{
		"var importedNames [2]",
		"func initImports(ctx *runtime.Context) int",
		`ctx.ImportModule("util")`,
		`ctx.ImportModule("helpers")`,
		"ctx.GetAttr(m1",
		"return -1",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("emitted imports missing %q:\n%s", want, src)
		}
	}
}

func TestExpressionRegistryReserveBind(t *testing.T) {
	r := NewExpressionRegistry()
	i := r.Reserve()
	j := r.Reserve()
	if i == j {
		t.Fatal("Reserve returned the same slot twice")
	}
	r.Bind(i, []jen.Code{jen.Id("expressions").Index(jen.Lit(i)).Op("=").Qual(runtimePkg, "None")})
	src := renderFile(t, r.Emit)
	if !strings.Contains(src, "var expressions [2]") {
		t.Errorf("expressions table missing:\n%s", src)
	}
	if !strings.Contains(src, "expressions[0] = runtime.None") {
		t.Errorf("bound initializer missing:\n%s", src)
	}
}
