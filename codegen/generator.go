package codegen

import (
	"fmt"
	"sort"

	"github.com/dave/jennifer/jen"

	"github.com/stencil-lang/stencil/compiler"
)

// The generator walks normalized class bodies and emits Go methods against
// the object runtime. Reference ownership follows the runtime's conventions:
// every fallible operation is checked immediately, and a failure releases all
// owned references accumulated so far and returns nil from the method. The
// release lists are flattened at each check site, so generated methods never
// need deferred or centralized unwinding.

// value is one computed runtime value: the expression referring to it, the
// releasable slot holding it (empty for atoms), and whether the reference is
// owned by the current method.
type value struct {
	code  *jen.Statement
	name  string
	owned bool
}

func (v value) ref() *jen.Statement { return v.code.Clone() }

func slotValue(name string) value {
	return value{code: jen.Id(name), name: name, owned: true}
}

func borrowed(code *jen.Statement) value {
	return value{code: code}
}

// Generator compiles normalized template classes into Go declarations,
// interning constants, paths and imports into the shared unit registries.
type Generator struct {
	Literals    *LiteralRegistry
	Paths       *PathRegistry
	Imports     *ImportRegistry
	Expressions *ExpressionRegistry

	// variadic switches dotted-path lowering from per-path resolver
	// functions to the runtime's generic variadic resolver.
	variadic bool

	class     *ClassDefinition
	locals    map[string]bool
	params    map[string]bool
	owned     []string
	restores  []*jen.Statement
	blocks    []*[]jen.Code
	temp      int
	loopDepth int
}

func NewGenerator(lits *LiteralRegistry, paths *PathRegistry, imports *ImportRegistry, exprs *ExpressionRegistry) *Generator {
	return &Generator{
		Literals:    lits,
		Paths:       paths,
		Imports:     imports,
		Expressions: exprs,
	}
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func rt(name string) *jen.Statement { return jen.Qual(runtimePkg, name) }

func objType() *jen.Statement { return jen.Op("*").Qual(runtimePkg, "Object") }

func localSlot(name string) string { return "l_" + name }

func (g *Generator) emit(code ...jen.Code) {
	buf := g.blocks[len(g.blocks)-1]
	*buf = append(*buf, code...)
}

// capture collects the statements emitted by fn into a detached block.
func (g *Generator) capture(fn func() error) ([]jen.Code, error) {
	var buf []jen.Code
	g.blocks = append(g.blocks, &buf)
	err := fn()
	g.blocks = g.blocks[:len(g.blocks)-1]
	return buf, err
}

func (g *Generator) newTemp(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, g.temp)
	g.temp++
	return name
}

func (g *Generator) track(name string) {
	g.owned = append(g.owned, name)
}

func (g *Generator) untrack(name string) {
	for i := len(g.owned) - 1; i >= 0; i-- {
		if g.owned[i] == name {
			g.owned = append(g.owned[:i], g.owned[i+1:]...)
			return
		}
	}
	panic("codegen: untrack of unknown slot " + name)
}

// release drops an owned value, emitting its Decref. Borrowed values are
// untouched.
func (g *Generator) release(v value) {
	if !v.owned {
		return
	}
	g.untrack(v.name)
	g.emit(rt("Decref").Call(jen.Id(v.name)))
}

// abort builds the failure exit for the current point: undo pending
// instance-state swaps innermost-first, release every owned slot in reverse
// acquisition order, then fail the method. Restores run before the releases
// because a restored field must stop aliasing a slot about to be dropped.
func (g *Generator) abort(pre ...jen.Code) []jen.Code {
	out := append([]jen.Code{}, pre...)
	for i := len(g.restores) - 1; i >= 0; i-- {
		out = append(out, g.restores[i].Clone())
	}
	for i := len(g.owned) - 1; i >= 0; i-- {
		out = append(out, rt("XDecref").Call(jen.Id(g.owned[i])))
	}
	return append(out, jen.Return(jen.Nil()))
}

func (g *Generator) abortIf(cond *jen.Statement, pre ...jen.Code) {
	g.emit(jen.If(cond).Block(g.abort(pre...)...))
}

// own transfers a value into the given pre-declared variable inside a branch,
// equalizing ownership across branches: owned temps hand over their
// reference, borrowed values take a new one.
func (g *Generator) own(target string, v value) {
	if v.owned {
		g.untrack(v.name)
		g.emit(jen.Id(target).Op("=").Id(v.name))
		return
	}
	g.emit(jen.Id(target).Op("=").Add(v.ref()))
	g.emit(rt("Incref").Call(jen.Id(target)))
}

// ---------------------------------------------------------------------------
// Method registration
// ---------------------------------------------------------------------------

// RegisterMethod adds fn's signature to def, reserving expression-registry
// slots for defaulted parameters. Registration runs for every method of a
// class before any body is generated.
func (g *Generator) RegisterMethod(def *ClassDefinition, fn *compiler.FuncDef) error {
	if len(fn.Params) == 0 || fn.Params[0].Name != compiler.SelfName {
		return structural(fn.Pos, "method %s has no receiver parameter", fn.Name)
	}
	if len(fn.Decorators) != 0 {
		return unsupported(fn.Pos, "decorator on method %s", fn.Name)
	}
	declared := fn.Params[1:]
	params := make([]string, len(declared))
	slots := make([]int, len(declared))
	for i, p := range declared {
		params[i] = p.Name
		slots[i] = -1
		if p.Default == nil {
			continue
		}
		slot := g.Expressions.Reserve()
		code, err := g.constantInit(slot, p.Default)
		if err != nil {
			return err
		}
		g.Expressions.Bind(slot, code)
		slots[i] = slot
	}
	if _, err := def.AddMethod(fn.Name, params, slots); err != nil {
		return structural(fn.Pos, "%v", err)
	}
	return nil
}

// constantInit generates the initializer filling expression slot i from a
// constant default-value expression.
func (g *Generator) constantInit(slot int, e compiler.Expr) ([]jen.Code, error) {
	target := func() *jen.Statement { return g.Expressions.Ref(slot) }
	fromLiteral := func(k int) []jen.Code {
		return []jen.Code{
			rt("Incref").Call(g.Literals.Ref(k)),
			target().Op("=").Add(g.Literals.Ref(k)),
		}
	}
	switch v := e.(type) {
	case *compiler.StrLit:
		return fromLiteral(g.Literals.InternString(v.Value)), nil
	case *compiler.NumLit:
		return fromLiteral(g.internNum(v.Kind, v.Literal)), nil
	case *compiler.NameExpr:
		switch v.Name {
		case "None", "True", "False":
			return []jen.Code{target().Op("=").Add(rt(v.Name))}, nil
		}
	case *compiler.UnaryExpr:
		if num, ok := v.Operand.(*compiler.NumLit); ok && v.Op == compiler.UnaryNeg {
			return fromLiteral(g.internNum(num.Kind, "-"+num.Literal)), nil
		}
	}
	return nil, unsupported(e.Position(), "default values must be constants")
}

func (g *Generator) internNum(kind compiler.NumKind, text string) int {
	if kind == compiler.NumFloat {
		return g.Literals.InternFloat(text)
	}
	return g.Literals.InternInt(text)
}

// ---------------------------------------------------------------------------
// Class emission
// ---------------------------------------------------------------------------

// Class generates the declarations of one template class: struct,
// constructor, methods and render hook. Methods must already be registered
// on def.
func (g *Generator) Class(cls *compiler.ClassDef, def *ClassDefinition) ([]jen.Code, error) {
	g.class = def

	out := []jen.Code{g.structDecl(def), g.constructor(def)}
	for _, stmt := range cls.Body {
		fn, ok := stmt.(*compiler.FuncDef)
		if !ok {
			return nil, structural(stmt.Position(), "class body holds a non-method statement")
		}
		// A subclass renders through the inherited respond; its own
		// top-level remnants are dropped.
		if fn.Name == compiler.RespondMethod && def.Super != nil {
			continue
		}
		m, err := g.method(def, fn)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	out = append(out, g.renderHook(def))
	return out, nil
}

func (g *Generator) structDecl(def *ClassDefinition) jen.Code {
	if def.Super != nil {
		return jen.Type().Id(def.Name).Struct(jen.Id(def.Super.Name))
	}
	return jen.Type().Id(def.Name).Struct(
		jen.Id("ctx").Op("*").Qual(runtimePkg, "Context"),
		jen.Id("display").Add(objType()),
		jen.Id("transaction").Add(objType()),
		jen.Id("receiver").Add(objType()),
		jen.Id("impl").Any(),
	)
}

func (g *Generator) constructor(def *ClassDefinition) jen.Code {
	return jen.Func().Id("new"+def.Name).
		Params(
			jen.Id("ctx").Op("*").Qual(runtimePkg, "Context"),
			jen.List(jen.Id("display"), jen.Id("transaction"), jen.Id("receiver")).Add(objType()),
		).
		Op("*").Id(def.Name).
		Block(
			jen.Id("c").Op(":=").Op("&").Id(def.Name).Values(),
			jen.Id("c").Dot("ctx").Op("=").Id("ctx"),
			jen.Id("c").Dot("display").Op("=").Id("display"),
			jen.Id("c").Dot("transaction").Op("=").Id("transaction"),
			jen.Id("c").Dot("receiver").Op("=").Id("receiver"),
			jen.Id("c").Dot("impl").Op("=").Id("c"),
			jen.Return(jen.Id("c")),
		)
}

func (g *Generator) renderHook(def *ClassDefinition) jen.Code {
	return jen.Commentf(
		"// %sRespond renders the template against display, returning the joined output as a new reference. The receiver binds self-rooted attribute paths and may be nil.",
		def.Name).
		Line().
		Func().Id(def.Name + "Respond").
		Params(
			jen.Id("ctx").Op("*").Qual(runtimePkg, "Context"),
			jen.List(jen.Id("display"), jen.Id("receiver")).Add(objType()),
		).
		Add(objType()).
		Block(
			jen.Id("transaction").Op(":=").Add(rt("NewTransaction")).Call(),
			jen.Id("c").Op(":=").Id("new"+def.Name).Call(
				jen.Id("ctx"), jen.Id("display"), jen.Id("transaction"), jen.Id("receiver")),
			jen.If(jen.Id("c").Dot(compiler.RespondMethod).Call().Op("==").Nil()).Block(
				rt("Decref").Call(jen.Id("transaction")),
				jen.Return(jen.Nil()),
			),
			jen.Id("out").Op(":=").Id("ctx").Dot("JoinList").Call(jen.Id("transaction")),
			rt("Decref").Call(jen.Id("transaction")),
			jen.Return(jen.Id("out")),
		)
}

// ---------------------------------------------------------------------------
// Method emission
// ---------------------------------------------------------------------------

func (g *Generator) method(def *ClassDefinition, fn *compiler.FuncDef) (jen.Code, error) {
	g.temp = 0
	g.owned = nil
	g.restores = nil
	g.loopDepth = 0
	g.locals = make(map[string]bool)
	g.params = make(map[string]bool)
	collectAssigned(fn.Body, g.locals)

	spec := def.Lookup(fn.Name)
	if spec == nil {
		return nil, structural(fn.Pos, "method %s was not registered", fn.Name)
	}
	// An assigned-to parameter is promoted to an owned local: it takes a
	// reference up front and releases it on every exit, like any other
	// local slot.
	promoted := make(map[string]bool)
	for _, p := range spec.Params {
		if g.locals[p] {
			promoted[p] = true
		} else {
			g.params[p] = true
		}
	}

	body, err := g.capture(func() error {
		g.emit(
			jen.Id("ctx").Op(":=").Id("self").Dot("ctx"),
			jen.Id("_").Op("=").Id("ctx"),
		)
		for i, p := range spec.Params {
			if slot := spec.DefaultSlots[i]; slot >= 0 {
				g.emit(jen.If(jen.Id(localSlot(p)).Op("==").Nil()).Block(
					jen.Id(localSlot(p)).Op("=").Add(g.Expressions.Ref(slot)),
				))
			}
		}
		for _, p := range spec.Params {
			if promoted[p] {
				g.emit(rt("XIncref").Call(jen.Id(localSlot(p))))
				g.track(localSlot(p))
			}
		}
		var names []string
		for name := range g.locals {
			if promoted[name] {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			g.emit(jen.Var().Id(localSlot(name)).Add(objType()))
			g.track(localSlot(name))
		}
		if err := g.genStmts(fn.Body); err != nil {
			return err
		}
		g.emit(g.epilogue()...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	params := make([]jen.Code, len(spec.Params))
	for i, p := range spec.Params {
		params[i] = jen.Id(localSlot(p)).Add(objType())
	}
	return jen.Func().
		Params(jen.Id("self").Op("*").Id(def.Name)).
		Id(fn.Name).
		Params(params...).
		Add(objType()).
		Block(body...), nil
}

// epilogue is the success exit: undo pending instance-state swaps, release
// owned slots and return the sentinel. Restores matter here too, for a
// return statement inside a capture body.
func (g *Generator) epilogue() []jen.Code {
	var out []jen.Code
	for i := len(g.restores) - 1; i >= 0; i-- {
		out = append(out, g.restores[i].Clone())
	}
	for i := len(g.owned) - 1; i >= 0; i-- {
		out = append(out, rt("XDecref").Call(jen.Id(g.owned[i])))
	}
	return append(out, jen.Return(rt("None")))
}

// collectAssigned gathers every name bound by assignment or loop targets, so
// the method prologue can declare one slot per local.
func collectAssigned(stmts []compiler.Stmt, into map[string]bool) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *compiler.AssignStmt:
			if name, ok := s.Target.(*compiler.NameExpr); ok {
				into[name.Name] = true
			}
		case *compiler.IfStmt:
			collectAssigned(s.Body, into)
			collectAssigned(s.Else, into)
		case *compiler.ForStmt:
			for _, t := range s.Targets {
				if name, ok := t.(*compiler.NameExpr); ok {
					into[name.Name] = true
				}
			}
			collectAssigned(s.Body, into)
		case *compiler.WhileStmt:
			collectAssigned(s.Body, into)
		case *compiler.WithStmt:
			collectAssigned(s.Body, into)
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) genStmts(stmts []compiler.Stmt) error {
	for _, stmt := range stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStmt(stmt compiler.Stmt) error {
	switch s := stmt.(type) {
	case *compiler.PassStmt:
		return nil
	case *compiler.ExprStmt:
		return g.genExprStmt(s)
	case *compiler.AssignStmt:
		return g.genAssign(s)
	case *compiler.IfStmt:
		return g.genIf(s)
	case *compiler.ForStmt:
		return g.genFor(s)
	case *compiler.WhileStmt:
		return g.genWhile(s)
	case *compiler.BreakStmt:
		if g.loopDepth == 0 {
			return structural(s.Pos, "break outside a loop")
		}
		g.emit(jen.Break())
		return nil
	case *compiler.ContinueStmt:
		if g.loopDepth == 0 {
			return structural(s.Pos, "continue outside a loop")
		}
		g.emit(jen.Continue())
		return nil
	case *compiler.ReturnStmt:
		return g.genReturn(s)
	case *compiler.WithStmt:
		return g.genCapture(s)
	case *compiler.ImportStmt:
		return unsupported(s.Pos, "import inside a method body")
	case *compiler.ImportFromStmt:
		return unsupported(s.Pos, "import inside a method body")
	case *compiler.FuncDef:
		return structural(s.Pos, "unhoisted method definition")
	case *compiler.ClassDef:
		return unsupported(s.Pos, "nested class definition")
	case *compiler.TryStmt:
		return unsupported(s.Pos, "exception handling")
	case *compiler.RaiseStmt:
		return unsupported(s.Pos, "raising exceptions")
	case *compiler.YieldStmt:
		return unsupported(s.Pos, "generators")
	case *compiler.GlobalStmt:
		return unsupported(s.Pos, "global declarations")
	case *compiler.DelStmt:
		return unsupported(s.Pos, "del statements")
	case *compiler.AssertStmt:
		return unsupported(s.Pos, "assertions")
	}
	return structural(stmt.Position(), "unhandled statement")
}

// genExprStmt writes an expression's value into the output buffer. Calls to
// the class's own methods are the exception: they write their own output and
// return the success sentinel, which is checked and dropped.
func (g *Generator) genExprStmt(s *compiler.ExprStmt) error {
	switch s.Value.(type) {
	case *compiler.ListExpr, *compiler.TupleExpr:
		return unsupported(s.Value.Position(), "sequence literal without a target")
	}
	if call, ok := s.Value.(*compiler.CallExpr); ok {
		if native, err := g.nativeTarget(call); err != nil {
			return err
		} else if native != "" {
			_, err := g.genNativeCall(native, call, nil, true)
			return err
		}
		if g.isSuperCall(call) {
			_, err := g.genSuperCall(call, nil, true)
			return err
		}
	}
	v, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	g.appendOutput(v)
	return nil
}

// appendOutput writes v into the transaction and releases it.
func (g *Generator) appendOutput(v value) {
	g.abortIf(jen.Id("ctx").Dot("ListAppend").
		Call(jen.Id("self").Dot("transaction"), v.ref()).
		Op("<").Lit(0))
	g.release(v)
}

func (g *Generator) genAssign(s *compiler.AssignStmt) error {
	name, ok := s.Target.(*compiler.NameExpr)
	if !ok {
		return unsupported(s.Pos, "assignment to a non-name target")
	}
	v, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	slot := localSlot(name.Name)
	if v.owned {
		g.untrack(v.name)
		g.emit(
			rt("XDecref").Call(jen.Id(slot)),
			jen.Id(slot).Op("=").Id(v.name),
		)
		return nil
	}
	// Incref before the release of the old binding: the value may be the
	// old binding itself.
	g.emit(
		rt("Incref").Call(v.ref()),
		rt("XDecref").Call(jen.Id(slot)),
		jen.Id(slot).Op("=").Add(v.ref()),
	)
	return nil
}

// truthTest evaluates e, releases its value, and leaves an int truth slot:
// 1 true, 0 false. Failure aborts. Boolean operators branch on their
// operands' truth flags directly, so each operand is tested exactly once.
func (g *Generator) truthTest(e compiler.Expr) (string, error) {
	if bo, ok := e.(*compiler.BoolOpExpr); ok {
		return g.boolOpTruth(bo)
	}
	v, err := g.genExpr(e)
	if err != nil {
		return "", err
	}
	b := g.newTemp("b")
	g.emit(jen.Id(b).Op(":=").Id("ctx").Dot("IsTrue").Call(v.ref()))
	g.release(v)
	g.abortIf(jen.Id(b).Op("<").Lit(0))
	return b, nil
}

// boolOpTruth lowers and/or in condition position. Only the truth of each
// operand matters, so neither value is kept: the left flag decides whether
// the right operand evaluates and, if it does, overwrites the flag.
func (g *Generator) boolOpTruth(e *compiler.BoolOpExpr) (string, error) {
	b, err := g.truthTest(e.Left)
	if err != nil {
		return "", err
	}
	evalRight, err := g.capture(func() error {
		rb, err := g.truthTest(e.Right)
		if err != nil {
			return err
		}
		g.emit(jen.Id(b).Op("=").Id(rb))
		return nil
	})
	if err != nil {
		return "", err
	}
	cond := jen.Id(b).Op("!=").Lit(0)
	if e.Op == compiler.BoolOr {
		cond = jen.Id(b).Op("==").Lit(0)
	}
	g.emit(jen.If(cond).Block(evalRight...))
	return b, nil
}

func (g *Generator) genIf(s *compiler.IfStmt) error {
	b, err := g.truthTest(s.Cond)
	if err != nil {
		return err
	}
	thenCode, err := g.capture(func() error { return g.genStmts(s.Body) })
	if err != nil {
		return err
	}
	if len(s.Else) == 0 {
		g.emit(jen.If(jen.Id(b).Op("!=").Lit(0)).Block(thenCode...))
		return nil
	}
	elseCode, err := g.capture(func() error { return g.genStmts(s.Else) })
	if err != nil {
		return err
	}
	g.emit(jen.If(jen.Id(b).Op("!=").Lit(0)).
		Block(thenCode...).
		Else().Block(elseCode...))
	return nil
}

func (g *Generator) genWhile(s *compiler.WhileStmt) error {
	g.loopDepth++
	defer func() { g.loopDepth-- }()
	body, err := g.capture(func() error {
		b, err := g.truthTest(s.Cond)
		if err != nil {
			return err
		}
		g.emit(jen.If(jen.Id(b).Op("==").Lit(0)).Block(jen.Break()))
		return g.genStmts(s.Body)
	})
	if err != nil {
		return err
	}
	g.emit(jen.For().Block(body...))
	return nil
}

func (g *Generator) genFor(s *compiler.ForStmt) error {
	if len(s.Targets) != 1 {
		return unsupported(s.Pos, "tuple-unpacking loop targets")
	}
	name, ok := s.Targets[0].(*compiler.NameExpr)
	if !ok {
		return unsupported(s.Targets[0].Position(), "loop target that is not a name")
	}
	target := localSlot(name.Name)

	iter, err := g.genExpr(s.Iter)
	if err != nil {
		return err
	}
	seq := g.newTemp("v")
	g.emit(jen.Id(seq).Op(":=").Id("ctx").Dot("SequenceFast").
		Call(iter.ref(), jen.Lit("loop over a non-sequence")))
	g.release(iter)
	g.abortIf(jen.Id(seq).Op("==").Nil())
	g.track(seq)

	n := g.newTemp("n")
	i := g.newTemp("i")
	g.emit(jen.Id(n).Op(":=").Add(rt("SequenceFastLen")).Call(jen.Id(seq)))

	g.loopDepth++
	body, err := g.capture(func() error {
		item := g.newTemp("v")
		g.emit(
			jen.Id(item).Op(":=").Add(rt("SequenceFastItem")).Call(jen.Id(seq), jen.Id(i)),
			rt("Incref").Call(jen.Id(item)),
			rt("XDecref").Call(jen.Id(target)),
			jen.Id(target).Op("=").Id(item),
		)
		return g.genStmts(s.Body)
	})
	g.loopDepth--
	if err != nil {
		return err
	}

	g.emit(jen.For(
		jen.Id(i).Op(":=").Lit(0),
		jen.Id(i).Op("<").Id(n),
		jen.Id(i).Op("++"),
	).Block(body...))
	g.release(slotValue(seq))
	// The loop variable does not outlive the loop; a read after it is a
	// name error, as if the name had never been bound.
	g.emit(
		rt("XDecref").Call(jen.Id(target)),
		jen.Id(target).Op("=").Nil(),
	)
	return nil
}

func (g *Generator) genReturn(s *compiler.ReturnStmt) error {
	if s.Value != nil {
		if name, ok := s.Value.(*compiler.NameExpr); !ok || name.Name != "None" {
			return unsupported(s.Pos, "returning a value from a template method")
		}
	}
	g.emit(g.epilogue()...)
	return nil
}
