package codegen

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/stencil-lang/stencil/compiler"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) genExpr(e compiler.Expr) (value, error) {
	switch v := e.(type) {
	case *compiler.StrLit:
		return borrowed(g.Literals.Ref(g.Literals.InternString(v.Value))), nil
	case *compiler.NumLit:
		return borrowed(g.Literals.Ref(g.internNum(v.Kind, v.Literal))), nil
	case *compiler.NameExpr:
		return g.genName(v)
	case *compiler.AttributeExpr:
		return g.genAttribute(v)
	case *compiler.SubscriptExpr:
		return g.genSubscript(v)
	case *compiler.BinaryExpr:
		return g.genBinary(v)
	case *compiler.UnaryExpr:
		return g.genUnary(v)
	case *compiler.CompareExpr:
		return g.genCompare(v)
	case *compiler.BoolOpExpr:
		return g.genBoolOp(v)
	case *compiler.CondExpr:
		return g.genCond(v)
	case *compiler.CallExpr:
		return g.genCall(v)
	case *compiler.ListExpr:
		return g.genSequence(rt("NewListFrom"), v.Elems)
	case *compiler.TupleExpr:
		return g.genSequence(rt("TuplePack"), v.Elems)
	case *compiler.DictExpr:
		return g.genDict(v)
	}
	return value{}, unsupported(e.Position(), "expression form")
}

// genName resolves a bare name: local slot, then imported name, then builtin
// singleton, then the dynamic display context.
func (g *Generator) genName(e *compiler.NameExpr) (value, error) {
	name := e.Name
	if name == compiler.SelfName {
		return value{}, unsupported(e.Pos, "self outside an attribute path or call")
	}
	if g.params[name] {
		return borrowed(jen.Id(localSlot(name))), nil
	}
	if g.locals[name] {
		// Slots start nil; a read before the first binding is a name error.
		g.abortIf(jen.Id(localSlot(name)).Op("==").Nil(),
			jen.Id("ctx").Dot("SetNameError").Call(jen.Lit(name)))
		return borrowed(jen.Id(localSlot(name))), nil
	}
	switch name {
	case "None", "True", "False":
		return borrowed(rt(name)), nil
	}
	if i, ok := g.Imports.Lookup(name); ok {
		return borrowed(g.Imports.Ref(i)), nil
	}
	return g.displayLookup(name), nil
}

// displayLookup fetches a name from the display dict. The borrowed hit is
// promoted to an owned reference; a miss is a key error.
func (g *Generator) displayLookup(name string) value {
	k := g.Literals.InternString(name)
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Add(rt("DictGetItem")).
		Call(jen.Id("self").Dot("display"), g.Literals.Ref(k)))
	g.abortIf(jen.Id(t).Op("==").Nil(),
		jen.Id("ctx").Dot("SetKeyError").Call(jen.Lit(name)))
	g.emit(rt("Incref").Call(jen.Id(t)))
	g.track(t)
	return slotValue(t)
}

// genAttribute resolves a dotted access. Trailing attribute segments are
// collected into one interned path; the root resolves specially when it is
// an imported module prefix.
func (g *Generator) genAttribute(e *compiler.AttributeExpr) (value, error) {
	var segs []string
	var root compiler.Expr = e
	for {
		att, ok := root.(*compiler.AttributeExpr)
		if !ok {
			break
		}
		segs = append([]string{att.Attr}, segs...)
		root = att.Value
	}

	if name, ok := root.(*compiler.NameExpr); ok {
		if name.Name == compiler.SelfName {
			if g.class.Lookup(segs[0]) != nil {
				return value{}, unsupported(e.Pos, "template method %s used as a value", segs[0])
			}
			// Self-rooted paths resolve against the bound receiver, when
			// the caller supplied one.
			g.abortIf(jen.Id("self").Dot("receiver").Op("==").Nil(),
				jen.Id("ctx").Dot("SetNameError").Call(jen.Lit(compiler.SelfName)))
			return g.pathCall(borrowed(jen.Id("self").Dot("receiver")), segs), nil
		}
		// Longest dotted prefix bound by an import wins over the display.
		full := append([]string{name.Name}, segs...)
		for n := len(full); n >= 1; n-- {
			i, ok := g.Imports.Lookup(strings.Join(full[:n], "."))
			if !ok {
				continue
			}
			if n == len(full) {
				return borrowed(g.Imports.Ref(i)), nil
			}
			return g.pathCall(borrowed(g.Imports.Ref(i)), full[n:]), nil
		}
	}

	base, err := g.genExpr(root)
	if err != nil {
		return value{}, err
	}
	return g.pathCall(base, segs), nil
}

// pathCall resolves a dotted path from a base value, either through the
// path's interned resolver function or, in variadic mode, through the
// runtime's generic resolver.
func (g *Generator) pathCall(base value, segs []string) value {
	t := g.newTemp("v")
	if g.variadic {
		args := []jen.Code{base.ref()}
		for _, seg := range segs {
			args = append(args, g.Literals.Ref(g.Literals.InternString(seg)))
		}
		g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("ResolvePath").Call(args...))
	} else {
		idx := g.Paths.Intern(segs)
		g.emit(jen.Id(t).Op(":=").Id(g.Paths.FuncName(idx)).Call(jen.Id("ctx"), base.ref()))
	}
	g.release(base)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t)
}

func (g *Generator) genSubscript(e *compiler.SubscriptExpr) (value, error) {
	base, err := g.genExpr(e.Value)
	if err != nil {
		return value{}, err
	}
	index, err := g.genExpr(e.Index)
	if err != nil {
		return value{}, err
	}
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("BinaryOp").
		Call(rt("OpGetItem"), base.ref(), index.ref()))
	g.release(index)
	g.release(base)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

var binOpNames = map[compiler.BinOpKind]string{
	compiler.BinAdd:      "OpAdd",
	compiler.BinSub:      "OpSub",
	compiler.BinMul:      "OpMul",
	compiler.BinDiv:      "OpDiv",
	compiler.BinFloorDiv: "OpFloorDiv",
	compiler.BinMod:      "OpMod",
}

func (g *Generator) genBinary(e *compiler.BinaryExpr) (value, error) {
	left, err := g.genExpr(e.Left)
	if err != nil {
		return value{}, err
	}
	right, err := g.genExpr(e.Right)
	if err != nil {
		return value{}, err
	}
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("BinaryOp").
		Call(rt(binOpNames[e.Op]), left.ref(), right.ref()))
	g.release(right)
	g.release(left)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

func (g *Generator) genUnary(e *compiler.UnaryExpr) (value, error) {
	if e.Op == compiler.UnaryNot {
		v, err := g.genExpr(e.Operand)
		if err != nil {
			return value{}, err
		}
		b := g.newTemp("b")
		g.emit(jen.Id(b).Op(":=").Id("ctx").Dot("IsTrue").Call(v.ref()))
		g.release(v)
		g.abortIf(jen.Id(b).Op("<").Lit(0))
		t := g.newTemp("v")
		g.emit(jen.Id(t).Op(":=").Add(rt("BoolFor")).Call(jen.Id(b).Op("==").Lit(0)))
		return borrowed(jen.Id(t)), nil
	}
	op := "OpNeg"
	if e.Op == compiler.UnaryPos {
		op = "OpPos"
	}
	v, err := g.genExpr(e.Operand)
	if err != nil {
		return value{}, err
	}
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("UnaryOp").Call(rt(op), v.ref()))
	g.release(v)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

var cmpOpNames = map[compiler.CmpOpKind]string{
	compiler.CmpOpLt: "CmpLt",
	compiler.CmpOpLe: "CmpLe",
	compiler.CmpOpEq: "CmpEq",
	compiler.CmpOpNe: "CmpNe",
	compiler.CmpOpGt: "CmpGt",
	compiler.CmpOpGe: "CmpGe",
}

func (g *Generator) genCompare(e *compiler.CompareExpr) (value, error) {
	if len(e.Ops) != 1 {
		return value{}, unsupported(e.Pos, "chained comparisons")
	}
	left, err := g.genExpr(e.Left)
	if err != nil {
		return value{}, err
	}
	right, err := g.genExpr(e.Comparators[0])
	if err != nil {
		return value{}, err
	}

	op := e.Ops[0]
	switch op {
	case compiler.CmpOpIs, compiler.CmpOpIsNot:
		cmp := "=="
		if op == compiler.CmpOpIsNot {
			cmp = "!="
		}
		t := g.newTemp("v")
		g.emit(jen.Id(t).Op(":=").Add(rt("BoolFor")).
			Call(left.ref().Op(cmp).Add(right.ref())))
		g.release(right)
		g.release(left)
		return borrowed(jen.Id(t)), nil
	case compiler.CmpOpIn, compiler.CmpOpNotIn:
		b := g.newTemp("b")
		g.emit(jen.Id(b).Op(":=").Id("ctx").Dot("SequenceContains").
			Call(right.ref(), left.ref()))
		g.release(right)
		g.release(left)
		g.abortIf(jen.Id(b).Op("<").Lit(0))
		cmp := "!="
		if op == compiler.CmpOpNotIn {
			cmp = "=="
		}
		t := g.newTemp("v")
		g.emit(jen.Id(t).Op(":=").Add(rt("BoolFor")).Call(jen.Id(b).Op(cmp).Lit(0)))
		return borrowed(jen.Id(t)), nil
	}

	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Id("ctx").Dot("RichCompare").
		Call(left.ref(), right.ref(), rt(cmpOpNames[op])))
	g.release(right)
	g.release(left)
	g.abortIf(jen.Id(t).Op("==").Nil())
	g.track(t)
	return slotValue(t), nil
}

// genBoolOp lowers a short-circuit and/or in value position. Both arms
// converge on one owned slot; the untaken operand never evaluates. Condition
// position goes through boolOpTruth instead, which skips the merged slot.
func (g *Generator) genBoolOp(e *compiler.BoolOpExpr) (value, error) {
	out := g.newTemp("v")
	g.emit(jen.Var().Id(out).Add(objType()))

	left, err := g.genExpr(e.Left)
	if err != nil {
		return value{}, err
	}
	b := g.newTemp("b")
	g.emit(jen.Id(b).Op(":=").Id("ctx").Dot("IsTrue").Call(left.ref()))
	g.abortIf(jen.Id(b).Op("<").Lit(0))

	// The branch keeping the left value owns it; the other releases it and
	// evaluates the right operand.
	keepLeft, err := g.capture(func() error {
		g.own(out, left)
		return nil
	})
	if err != nil {
		return value{}, err
	}
	// own() untracked left inside the detached branch; retrack so the
	// other branch releases it symmetrically.
	if left.owned {
		g.track(left.name)
	}
	// The release inside this branch untracks left again, matching the
	// untrack in the other branch: both arms leave left dead.
	evalRight, err := g.capture(func() error {
		g.release(left)
		right, err := g.genExpr(e.Right)
		if err != nil {
			return err
		}
		g.own(out, right)
		return nil
	})
	if err != nil {
		return value{}, err
	}

	cond := jen.Id(b).Op("!=").Lit(0)
	if e.Op == compiler.BoolAnd {
		g.emit(jen.If(cond).Block(evalRight...).Else().Block(keepLeft...))
	} else {
		g.emit(jen.If(cond).Block(keepLeft...).Else().Block(evalRight...))
	}
	g.track(out)
	return slotValue(out), nil
}

// genCond lowers a conditional expression, reconciling ownership across the
// two arms like genBoolOp.
func (g *Generator) genCond(e *compiler.CondExpr) (value, error) {
	b, err := g.truthTest(e.Cond)
	if err != nil {
		return value{}, err
	}
	out := g.newTemp("v")
	g.emit(jen.Var().Id(out).Add(objType()))

	thenCode, err := g.capture(func() error {
		v, err := g.genExpr(e.Then)
		if err != nil {
			return err
		}
		g.own(out, v)
		return nil
	})
	if err != nil {
		return value{}, err
	}
	elseCode, err := g.capture(func() error {
		v, err := g.genExpr(e.Else)
		if err != nil {
			return err
		}
		g.own(out, v)
		return nil
	})
	if err != nil {
		return value{}, err
	}
	g.emit(jen.If(jen.Id(b).Op("!=").Lit(0)).
		Block(thenCode...).
		Else().Block(elseCode...))
	g.track(out)
	return slotValue(out), nil
}

// genSequence builds a list or tuple display through a constructor that
// takes new references to its elements.
func (g *Generator) genSequence(ctor *jen.Statement, elems []compiler.Expr) (value, error) {
	vals := make([]value, len(elems))
	args := make([]jen.Code, len(elems))
	for i, el := range elems {
		v, err := g.genExpr(el)
		if err != nil {
			return value{}, err
		}
		vals[i] = v
		args[i] = v.ref()
	}
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Add(ctor).Call(args...))
	for i := len(vals) - 1; i >= 0; i-- {
		g.release(vals[i])
	}
	g.track(t)
	return slotValue(t), nil
}

func (g *Generator) genDict(e *compiler.DictExpr) (value, error) {
	t := g.newTemp("v")
	g.emit(jen.Id(t).Op(":=").Add(rt("NewDict")).Call())
	g.track(t)
	for i := range e.Keys {
		k, err := g.genExpr(e.Keys[i])
		if err != nil {
			return value{}, err
		}
		v, err := g.genExpr(e.Values[i])
		if err != nil {
			return value{}, err
		}
		g.abortIf(jen.Id("ctx").Dot("DictSetItem").
			Call(jen.Id(t), k.ref(), v.ref()).Op("<").Lit(0))
		g.release(v)
		g.release(k)
	}
	return slotValue(t), nil
}
