package codegen

import (
	"github.com/dave/jennifer/jen"

	"github.com/stencil-lang/stencil/compiler"
)

// ---------------------------------------------------------------------------
// Calls
//
// Three lowerings, selected by the shape of the callee:
//   - methods of the template class dispatch through the instance's impl
//     field, so overrides in subclasses always win;
//   - super(...) calls go straight to the embedded superclass;
//   - everything else is a dynamic call through the runtime, positionally
//     when possible, through a packed tuple and keyword dict otherwise.
// ---------------------------------------------------------------------------

// genCall lowers a call in value position. Methods of the template class
// write their own output and return only a success sentinel, so their value
// use is rejected here; statement and capture positions route around this
// through genExprStmt and genCapture.
func (g *Generator) genCall(call *compiler.CallExpr) (value, error) {
	if g.isSuperCall(call) {
		return value{}, unsupported(call.Pos, "using a template method call as a value")
	}
	if name, ok := call.Func.(*compiler.NameExpr); ok && name.Name == "super" {
		return value{}, unsupported(call.Pos, "super outside a method call")
	}
	native, err := g.nativeTarget(call)
	if err != nil {
		return value{}, err
	}
	if native != "" {
		return value{}, unsupported(call.Pos, "using a template method call as a value")
	}
	return g.genDynamicCall(call, nil)
}

// nativeTarget reports the class method a call resolves to, or "". Locals,
// parameters and imports shadow method names.
func (g *Generator) nativeTarget(call *compiler.CallExpr) (string, error) {
	switch f := call.Func.(type) {
	case *compiler.NameExpr:
		if g.locals[f.Name] || g.params[f.Name] {
			return "", nil
		}
		if _, ok := g.Imports.Lookup(f.Name); ok {
			return "", nil
		}
		if g.class.Lookup(f.Name) != nil {
			return f.Name, nil
		}
	case *compiler.AttributeExpr:
		if name, ok := f.Value.(*compiler.NameExpr); ok && name.Name == compiler.SelfName {
			if g.class.Lookup(f.Attr) != nil {
				return f.Attr, nil
			}
			// Not a method of the chain; falls through to a dynamic call
			// against the bound receiver.
		}
	}
	return "", nil
}

func (g *Generator) isSuperCall(call *compiler.CallExpr) bool {
	att, ok := call.Func.(*compiler.AttributeExpr)
	if !ok {
		return false
	}
	inner, ok := att.Value.(*compiler.CallExpr)
	if !ok {
		return false
	}
	// Both the bare super() form and the spelled-out super(Base, self) form
	// resolve to the immediate superclass; the written arguments are
	// redundant and ignored.
	name, ok := inner.Func.(*compiler.NameExpr)
	return ok && name.Name == "super" && len(inner.Keywords) == 0
}

// matchArgs binds a call's arguments to spec's parameters, evaluating them in
// source order. The extra value, when present, is spliced in as the first
// positional argument ahead of the written ones. Unbound defaulted parameters
// stay nil; the callee prologue fills them.
func (g *Generator) matchArgs(spec *MethodSpec, call *compiler.CallExpr, extra *value) ([]*value, error) {
	n := len(spec.Params)
	positional := len(call.Args)
	first := 0
	if extra != nil {
		positional++
		first = 1
	}
	if positional > n {
		return nil, unsupported(call.Pos, "too many arguments in call to %s", spec.Name)
	}
	slots := make([]*value, n)
	if extra != nil {
		slots[0] = extra
	}
	for i, a := range call.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return nil, err
		}
		slots[first+i] = &v
	}
	for _, kw := range call.Keywords {
		idx := spec.ParamIndex(kw.Name)
		if idx < 0 {
			return nil, unsupported(kw.Pos, "unknown keyword argument %s in call to %s", kw.Name, spec.Name)
		}
		if slots[idx] != nil {
			return nil, unsupported(kw.Pos, "duplicate argument %s in call to %s", kw.Name, spec.Name)
		}
		v, err := g.genExpr(kw.Value)
		if err != nil {
			return nil, err
		}
		slots[idx] = &v
	}
	for i, slot := range slots {
		if slot == nil && spec.DefaultSlots[i] < 0 {
			return nil, unsupported(call.Pos, "missing argument %s in call to %s", spec.Params[i], spec.Name)
		}
	}
	return slots, nil
}

func (g *Generator) genNativeCall(name string, call *compiler.CallExpr, extra *value, discard bool) (value, error) {
	spec := g.class.Lookup(name)
	slots, err := g.matchArgs(spec, call, extra)
	if err != nil {
		return value{}, err
	}
	sigParams := make([]jen.Code, len(spec.Params))
	for i := range spec.Params {
		sigParams[i] = objType()
	}
	callee := jen.Id("self").Dot("impl").
		Assert(jen.Interface(jen.Id(name).Params(sigParams...).Add(objType()))).
		Dot(name)
	return g.emitMethodCall(callee, spec, slots, discard)
}

func (g *Generator) genSuperCall(call *compiler.CallExpr, extra *value, discard bool) (value, error) {
	att := call.Func.(*compiler.AttributeExpr)
	if g.class.Super == nil {
		return value{}, structural(call.Pos, "super call in class %s, which has no superclass", g.class.Name)
	}
	spec := g.class.Super.Lookup(att.Attr)
	if spec == nil {
		return value{}, structural(call.Pos, "superclass of %s has no method %s", g.class.Name, att.Attr)
	}
	slots, err := g.matchArgs(spec, call, extra)
	if err != nil {
		return value{}, err
	}
	callee := jen.Id("self").Dot(g.class.Super.Name).Dot(att.Attr)
	return g.emitMethodCall(callee, spec, slots, discard)
}

// emitMethodCall emits the bound call, releasing every argument value. When
// discard is set the sentinel result is checked and dropped.
func (g *Generator) emitMethodCall(callee *jen.Statement, spec *MethodSpec, slots []*value, discard bool) (value, error) {
	args := make([]jen.Code, len(slots))
	for i, slot := range slots {
		if slot == nil {
			args[i] = jen.Nil()
		} else {
			args[i] = slot.ref()
		}
	}
	releaseArgs := func() {
		for i := len(slots) - 1; i >= 0; i-- {
			if slots[i] != nil {
				g.release(*slots[i])
			}
		}
	}
	if discard {
		g.abortIf(callee.Call(args...).Op("==").Nil())
		releaseArgs()
		return value{}, nil
	}
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Add(callee).Call(args...))
	releaseArgs()
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

// genDynamicCall lowers a call through the runtime: the callee evaluates
// first, then the arguments in source order. Keyword arguments force the
// packed tuple-and-dict form.
func (g *Generator) genDynamicCall(call *compiler.CallExpr, extra *value) (value, error) {
	fn, err := g.genExpr(call.Func)
	if err != nil {
		return value{}, err
	}
	vals := make([]value, 0, len(call.Args)+1)
	if extra != nil {
		vals = append(vals, *extra)
	}
	for _, a := range call.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return value{}, err
		}
		vals = append(vals, v)
	}

	if len(call.Keywords) == 0 {
		args := []jen.Code{fn.ref()}
		for _, v := range vals {
			args = append(args, v.ref())
		}
		t := g.newTemp("v")
		g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("CallPositional").Call(args...))
		for i := len(vals) - 1; i >= 0; i-- {
			g.release(vals[i])
		}
		g.release(fn)
		g.abortIf(jen.Id(t).Op("==").Nil())
		g.track(t)
		return slotValue(t), nil
	}

	packArgs := make([]jen.Code, len(vals))
	for i, v := range vals {
		packArgs[i] = v.ref()
	}
	tup := g.newTemp("v")
	g.emit(jen.Id(tup).Op(":=").Add(rt("TuplePack")).Call(packArgs...))
	g.track(tup)
	for i := len(vals) - 1; i >= 0; i-- {
		g.release(vals[i])
	}

	kwd := g.newTemp("v")
	g.emit(jen.Id(kwd).Op(":=").Add(rt("NewDict")).Call())
	g.track(kwd)
	for _, kw := range call.Keywords {
		v, err := g.genExpr(kw.Value)
		if err != nil {
			return value{}, err
		}
		k := g.Literals.InternString(kw.Name)
		g.abortIf(jen.Id("ctx").Dot("DictSetItem").
			Call(jen.Id(kwd), g.Literals.Ref(k), v.ref()).Op("<").Lit(0))
		g.release(v)
	}

	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("Call").
		Call(fn.ref(), jen.Id(tup), jen.Id(kwd)))
	g.release(slotValue(kwd))
	g.release(slotValue(tup))
	g.release(fn)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

// ---------------------------------------------------------------------------
// Scoped capture
// ---------------------------------------------------------------------------

// genCapture lowers a capture block: the body renders into a fresh buffer,
// and the joined text is spliced in as the first argument of the captured
// call. Dynamic callees have their result written to the restored buffer;
// methods of the class write their own output and return the sentinel.
func (g *Generator) genCapture(s *compiler.WithStmt) error {
	if s.As != compiler.CallAlias {
		return unsupported(s.Pos, "general context managers")
	}
	call, ok := s.Context.(*compiler.CallExpr)
	if !ok {
		return unsupported(s.Pos, "capture of a non-call context")
	}

	cap := g.newTemp("v")
	g.emit(jen.Id(cap).Op(":=").Add(rt("NewTransaction")).Call())
	g.track(cap)
	saved := g.newTemp("v")
	g.emit(
		jen.Id(saved).Op(":=").Id("self").Dot("transaction"),
		jen.Id("self").Dot("transaction").Op("=").Id(cap),
	)
	// Every exit taken while the swap is live puts the original buffer back:
	// failure and return paths inside the body pick this up from the restore
	// stack, the normal path emits it right here.
	restore := jen.Id("self").Dot("transaction").Op("=").Id(saved)
	g.restores = append(g.restores, restore)
	if err := g.genStmts(s.Body); err != nil {
		return err
	}
	g.restores = g.restores[:len(g.restores)-1]
	g.emit(restore.Clone())

	joined := g.newTemp("v")
	g.emit(jen.Id(joined).Op(":=").Id("ctx").Dot("JoinList").Call(jen.Id(cap)))
	g.release(slotValue(cap))
	g.abortIf(jen.Id(joined).Op("==").Nil())
	g.track(joined)
	jv := slotValue(joined)

	if g.isSuperCall(call) {
		_, err := g.genSuperCall(call, &jv, true)
		return err
	}
	native, err := g.nativeTarget(call)
	if err != nil {
		return err
	}
	if native != "" {
		_, err := g.genNativeCall(native, call, &jv, true)
		return err
	}
	out, err := g.genDynamicCall(call, &jv)
	if err != nil {
		return err
	}
	g.appendOutput(out)
	return nil
}
