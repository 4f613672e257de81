package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
)

// runtimePkg is the import path of the object runtime generated code links
// against.
const runtimePkg = "github.com/stencil-lang/stencil/lib/runtime"

// ---------------------------------------------------------------------------
// Literal registry
// ---------------------------------------------------------------------------

type literalKind int

const (
	litString literalKind = iota
	litInt
	litFloat
)

type literalKey struct {
	kind literalKind
	text string
}

// LiteralRegistry interns the constants of a unit. Each distinct (kind, text)
// pair gets one slot in the literals table, constructed once at unit
// initialization; generated code refers to slots by index, always as borrowed
// references.
type LiteralRegistry struct {
	// MaxNative is the largest magnitude an integer literal may have and
	// still construct through the native int path; larger values keep
	// their decimal text and construct as big integers.
	MaxNative int64

	slots map[literalKey]int
	order []literalKey
}

func NewLiteralRegistry() *LiteralRegistry {
	return &LiteralRegistry{
		MaxNative: math.MaxInt64,
		slots:     make(map[literalKey]int),
	}
}

func (r *LiteralRegistry) intern(k literalKey) int {
	if i, ok := r.slots[k]; ok {
		return i
	}
	i := len(r.order)
	r.slots[k] = i
	r.order = append(r.order, k)
	return i
}

// InternString interns a string constant.
func (r *LiteralRegistry) InternString(s string) int {
	return r.intern(literalKey{litString, s})
}

// InternInt interns an integer constant from its decimal text. Values beyond
// the native range keep their text and construct through the big-integer
// path.
func (r *LiteralRegistry) InternInt(text string) int {
	return r.intern(literalKey{litInt, text})
}

// InternFloat interns a floating-point constant from its literal text.
func (r *LiteralRegistry) InternFloat(text string) int {
	return r.intern(literalKey{litFloat, text})
}

// Len returns the slot count.
func (r *LiteralRegistry) Len() int { return len(r.order) }

// Ref returns an expression referring to slot i.
func (r *LiteralRegistry) Ref(i int) *jen.Statement {
	return jen.Id("literals").Index(jen.Lit(i))
}

// Emit writes the literals table and its constructor into f.
func (r *LiteralRegistry) Emit(f *jen.File) {
	f.Var().Id("literals").Index(jen.Lit(r.Len())).Op("*").Qual(runtimePkg, "Object")

	var body []jen.Code
	for i, k := range r.order {
		var ctor *jen.Statement
		switch k.kind {
		case litString:
			ctor = jen.Qual(runtimePkg, "NewString").Call(jen.Lit(k.text))
		case litInt:
			if v, err := strconv.ParseInt(k.text, 10, 64); err == nil && v <= r.MaxNative && v >= -r.MaxNative-1 {
				ctor = jen.Qual(runtimePkg, "NewInt").Call(jen.Lit(v))
			} else {
				ctor = jen.Qual(runtimePkg, "IntFromDecimal").Call(jen.Lit(k.text))
			}
		case litFloat:
			v, _ := strconv.ParseFloat(k.text, 64)
			ctor = jen.Qual(runtimePkg, "NewFloat").Call(jen.Lit(v))
		}
		body = append(body, jen.Id("literals").Index(jen.Lit(i)).Op("=").Add(ctor))
	}
	f.Func().Id("initLiterals").Params().Block(body...)
}

// ---------------------------------------------------------------------------
// Path registry
// ---------------------------------------------------------------------------

// PathRegistry interns dotted attribute paths. Each distinct path gets a
// resolver function walking the segments from a base object, trying each
// segment as a mapping entry first and an attribute second. Resolvers return
// a new reference, or nil with a pending error; intermediate references are
// released as the walk advances.
type PathRegistry struct {
	lits  *LiteralRegistry
	slots map[string]int
	paths [][]string
}

func NewPathRegistry(lits *LiteralRegistry) *PathRegistry {
	return &PathRegistry{lits: lits, slots: make(map[string]int)}
}

// Intern interns a path, interning each segment name as a string literal.
func (r *PathRegistry) Intern(path []string) int {
	key := strings.Join(path, ".")
	if i, ok := r.slots[key]; ok {
		return i
	}
	for _, seg := range path {
		r.lits.InternString(seg)
	}
	i := len(r.paths)
	r.slots[key] = i
	r.paths = append(r.paths, path)
	return i
}

// FuncName returns the resolver name for slot i.
func (r *PathRegistry) FuncName(i int) string {
	return fmt.Sprintf("resolvePath%d", i)
}

// Emit writes one resolver function per interned path into f.
func (r *PathRegistry) Emit(f *jen.File) {
	obj := func() *jen.Statement { return jen.Op("*").Qual(runtimePkg, "Object") }
	for i, path := range r.paths {
		body := []jen.Code{
			jen.If(jen.Id("base").Op("==").Nil()).Block(jen.Return(jen.Nil())),
			jen.Qual(runtimePkg, "Incref").Call(jen.Id("base")),
			jen.Id("cur").Op(":=").Id("base"),
		}
		for j, seg := range path {
			next := fmt.Sprintf("next%d", j)
			name := r.lits.Ref(r.lits.InternString(seg))
			body = append(body,
				jen.Id(next).Op(":=").Qual(runtimePkg, "DictGetItem").Call(jen.Id("cur"), name),
				jen.If(jen.Id(next).Op("!=").Nil()).Block(
					jen.Qual(runtimePkg, "Incref").Call(jen.Id(next)),
				).Else().Block(
					jen.Id(next).Op("=").Id("ctx").Dot("GetAttr").Call(jen.Id("cur"), name.Clone()),
				),
				jen.Qual(runtimePkg, "Decref").Call(jen.Id("cur")),
				jen.If(jen.Id(next).Op("==").Nil()).Block(jen.Return(jen.Nil())),
				jen.Id("cur").Op("=").Id(next),
			)
		}
		body = append(body, jen.Return(jen.Id("cur")))

		f.Comment(fmt.Sprintf("// %s resolves %q against a base object.", r.FuncName(i), strings.Join(path, ".")))
		f.Func().Id(r.FuncName(i)).
			Params(
				jen.Id("ctx").Op("*").Qual(runtimePkg, "Context"),
				jen.Id("base").Add(obj()),
			).
			Add(obj()).
			Block(body...)
	}
}

// ---------------------------------------------------------------------------
// Import registry
// ---------------------------------------------------------------------------

type importSpec struct {
	module string
	attr   string // empty for whole-module imports
}

// ImportRegistry interns the imported names of a unit. Each bound name gets
// one slot in the imports table, resolved against the context's module table
// at unit initialization. Slots hold owned references for the life of the
// process; generated code reads them as borrowed.
type ImportRegistry struct {
	lits  *LiteralRegistry
	slots map[string]int
	names []string
	specs []importSpec
}

func NewImportRegistry(lits *LiteralRegistry) *ImportRegistry {
	return &ImportRegistry{lits: lits, slots: make(map[string]int)}
}

// Bind registers a name bound by an import: the whole module when attr is
// empty, otherwise the named attribute of it.
func (r *ImportRegistry) Bind(name, module, attr string) int {
	if i, ok := r.slots[name]; ok {
		return i
	}
	if attr != "" {
		r.lits.InternString(attr)
	}
	i := len(r.specs)
	r.slots[name] = i
	r.names = append(r.names, name)
	r.specs = append(r.specs, importSpec{module: module, attr: attr})
	return i
}

// Lookup reports the slot bound to name, if any.
func (r *ImportRegistry) Lookup(name string) (int, bool) {
	i, ok := r.slots[name]
	return i, ok
}

// Ref returns an expression referring to slot i.
func (r *ImportRegistry) Ref(i int) *jen.Statement {
	return jen.Id("importedNames").Index(jen.Lit(i))
}

// Emit writes the imported-names table and its resolver into f.
func (r *ImportRegistry) Emit(f *jen.File) {
	f.Var().Id("importedNames").Index(jen.Lit(len(r.specs))).Op("*").Qual(runtimePkg, "Object")

	body := []jen.Code{jen.Id("_").Op("=").Id("ctx")}
	for i, spec := range r.specs {
		m := fmt.Sprintf("m%d", i)
		body = append(body,
			jen.Id(m).Op(":=").Id("ctx").Dot("ImportModule").Call(jen.Lit(spec.module)),
			jen.If(jen.Id(m).Op("==").Nil()).Block(jen.Return(jen.Lit(-1))),
		)
		if spec.attr == "" {
			body = append(body, jen.Id("importedNames").Index(jen.Lit(i)).Op("=").Id(m))
			continue
		}
		name := r.lits.Ref(r.lits.InternString(spec.attr))
		body = append(body,
			jen.Id("importedNames").Index(jen.Lit(i)).Op("=").Id("ctx").Dot("GetAttr").Call(jen.Id(m), name),
			jen.Qual(runtimePkg, "Decref").Call(jen.Id(m)),
			jen.If(jen.Id("importedNames").Index(jen.Lit(i)).Op("==").Nil()).Block(jen.Return(jen.Lit(-1))),
		)
	}
	body = append(body, jen.Return(jen.Lit(0)))

	f.Comment("// initImports resolves imported modules against the context's module table.")
	f.Func().Id("initImports").
		Params(jen.Id("ctx").Op("*").Qual(runtimePkg, "Context")).
		Int().
		Block(body...)
}

// ---------------------------------------------------------------------------
// Expression registry
// ---------------------------------------------------------------------------

// ExpressionRegistry interns initialization-time expressions, in practice the
// default values of method parameters. Each slot is filled by a code fragment
// supplied by the generator; fragments assign an owned reference into the
// expressions table and return -1 on failure.
type ExpressionRegistry struct {
	inits [][]jen.Code
}

func NewExpressionRegistry() *ExpressionRegistry {
	return &ExpressionRegistry{}
}

// Reserve allocates a slot; the caller binds its initializer once generated.
func (r *ExpressionRegistry) Reserve() int {
	r.inits = append(r.inits, nil)
	return len(r.inits) - 1
}

// Bind installs the initializer for a reserved slot.
func (r *ExpressionRegistry) Bind(i int, code []jen.Code) {
	r.inits[i] = code
}

// Ref returns an expression referring to slot i.
func (r *ExpressionRegistry) Ref(i int) *jen.Statement {
	return jen.Id("expressions").Index(jen.Lit(i))
}

// Emit writes the expressions table and its resolver into f.
func (r *ExpressionRegistry) Emit(f *jen.File) {
	f.Var().Id("expressions").Index(jen.Lit(len(r.inits))).Op("*").Qual(runtimePkg, "Object")

	body := []jen.Code{jen.Id("_").Op("=").Id("ctx")}
	for _, init := range r.inits {
		body = append(body, init...)
	}
	body = append(body, jen.Return(jen.Lit(0)))

	f.Func().Id("initExpressions").
		Params(jen.Id("ctx").Op("*").Qual(runtimePkg, "Context")).
		Int().
		Block(body...)
}
