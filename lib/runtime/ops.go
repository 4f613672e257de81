package runtime

import (
	"math/big"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Operations invoked by generated code. Conventions:
//   - operations returning *Object return a NEW reference, or nil with a
//     pending error on the context;
//   - operations returning int use -1 for failure (pending error set),
//     0/1 for a boolean result;
//   - arguments are borrowed.
// ---------------------------------------------------------------------------

// CompareOp selects a rich comparison.
type CompareOp int

const (
	CmpLt CompareOp = iota
	CmpLe
	CmpEq
	CmpNe
	CmpGt
	CmpGe
)

// BinOp selects a binary operation.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	// OpGetItem is the specialized two-argument subscript operation; it is
	// dispatched through the same machinery as the arithmetic operators.
	OpGetItem
)

// UnOp selects a unary operation. (Logical not is compiled to a truth test
// against the singletons and never reaches here.)
type UnOp int

const (
	OpNeg UnOp = iota
	OpPos
)

func (o *Object) numeric() (f float64, isFloat bool, ok bool) {
	switch o.kind {
	case KindInt, KindBool:
		return float64(o.i), false, true
	case KindBigInt:
		f, _ := new(big.Float).SetInt(o.big).Float64()
		return f, false, true
	case KindFloat:
		return o.f, true, true
	}
	return 0, false, false
}

// GetAttr looks up an attribute on base, returning a new reference. Dict
// values and modules resolve through their attribute table.
func (ctx *Context) GetAttr(base, name *Object) *Object {
	if name == nil || name.kind != KindString {
		ctx.SetError(ErrType, "attribute name must be a string")
		return nil
	}
	if base != nil && base.attrs != nil {
		if v, ok := base.attrs[name.s]; ok {
			Incref(v)
			return v
		}
	}
	kind := "nil"
	if base != nil {
		kind = base.kind.String()
	}
	ctx.SetError(ErrAttribute, "%s object has no attribute %q", kind, name.s)
	return nil
}

// IsTrue reports the truth value of o: 1 true, 0 false, -1 failure.
func (ctx *Context) IsTrue(o *Object) int {
	if o == nil {
		ctx.SetError(ErrType, "truth test of nil object")
		return -1
	}
	switch o.kind {
	case KindNone:
		return 0
	case KindBool, KindInt:
		if o.i != 0 {
			return 1
		}
		return 0
	case KindBigInt:
		if o.big.Sign() != 0 {
			return 1
		}
		return 0
	case KindFloat:
		if o.f != 0 {
			return 1
		}
		return 0
	case KindString:
		if len(o.s) != 0 {
			return 1
		}
		return 0
	case KindList, KindTuple, KindDict:
		if o.Len() != 0 {
			return 1
		}
		return 0
	}
	return 1
}

// RichCompare applies a rich comparison and returns a new reference to the
// boolean result. (The singletons are immortal, so the "new" reference is
// free, but the ownership contract matches the other value-producing ops.)
func (ctx *Context) RichCompare(a, b *Object, op CompareOp) *Object {
	if a.kind == KindString && b.kind == KindString {
		return BoolFor(compareOrdered(strings.Compare(a.s, b.s), op))
	}
	af, _, aok := a.numeric()
	bf, _, bok := b.numeric()
	if aok && bok {
		switch {
		case af < bf:
			return BoolFor(compareOrdered(-1, op))
		case af > bf:
			return BoolFor(compareOrdered(1, op))
		default:
			return BoolFor(compareOrdered(0, op))
		}
	}
	// Fall back to identity for eq/ne between unordered kinds.
	switch op {
	case CmpEq:
		return BoolFor(a == b)
	case CmpNe:
		return BoolFor(a != b)
	}
	ctx.SetError(ErrType, "unorderable kinds: %s and %s", a.kind, b.kind)
	return nil
}

func compareOrdered(cmp int, op CompareOp) bool {
	switch op {
	case CmpLt:
		return cmp < 0
	case CmpLe:
		return cmp <= 0
	case CmpEq:
		return cmp == 0
	case CmpNe:
		return cmp != 0
	case CmpGt:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// SequenceContains reports whether item occurs in seq: 1/0/-1.
func (ctx *Context) SequenceContains(seq, item *Object) int {
	switch seq.kind {
	case KindList, KindTuple:
		for _, e := range seq.items {
			eq := ctx.RichCompare(e, item, CmpEq)
			if eq == nil {
				return -1
			}
			if eq == True {
				return 1
			}
		}
		return 0
	case KindDict:
		if item.kind != KindString {
			return 0
		}
		if _, ok := seq.entries[item.s]; ok {
			return 1
		}
		return 0
	case KindString:
		if item.kind != KindString {
			ctx.SetError(ErrType, "string containment requires a string operand")
			return -1
		}
		if strings.Contains(seq.s, item.s) {
			return 1
		}
		return 0
	}
	ctx.SetError(ErrType, "%s object is not a container", seq.kind)
	return -1
}

// BinaryOp applies op to a and b, returning a new reference.
func (ctx *Context) BinaryOp(op BinOp, a, b *Object) *Object {
	if op == OpGetItem {
		return ctx.getItem(a, b)
	}
	if op == OpAdd && a.kind == KindString && b.kind == KindString {
		return NewString(a.s + b.s)
	}
	if op == OpAdd && a.kind == KindList && b.kind == KindList {
		out := NewListFrom(a.items...)
		for _, e := range b.items {
			Incref(e)
			out.items = append(out.items, e)
		}
		return out
	}
	af, aFloat, aok := a.numeric()
	bf, bFloat, bok := b.numeric()
	if !aok || !bok {
		ctx.SetError(ErrType, "unsupported operand kinds: %s and %s", a.kind, b.kind)
		return nil
	}
	if aFloat || bFloat || op == OpDiv {
		var r float64
		switch op {
		case OpAdd:
			r = af + bf
		case OpSub:
			r = af - bf
		case OpMul:
			r = af * bf
		case OpDiv, OpFloorDiv:
			if bf == 0 {
				ctx.SetError(ErrType, "division by zero")
				return nil
			}
			r = af / bf
			if op == OpFloorDiv {
				r = float64(int64(r))
			}
		case OpMod:
			if bf == 0 {
				ctx.SetError(ErrType, "division by zero")
				return nil
			}
			r = af - bf*float64(int64(af/bf))
		}
		return NewFloat(r)
	}
	ai, bi := int64(af), int64(bf)
	var r int64
	switch op {
	case OpAdd:
		r = ai + bi
	case OpSub:
		r = ai - bi
	case OpMul:
		r = ai * bi
	case OpFloorDiv:
		if bi == 0 {
			ctx.SetError(ErrType, "division by zero")
			return nil
		}
		r = ai / bi
	case OpMod:
		if bi == 0 {
			ctx.SetError(ErrType, "division by zero")
			return nil
		}
		r = ai % bi
	}
	return NewInt(r)
}

func (ctx *Context) getItem(base, key *Object) *Object {
	switch base.kind {
	case KindList, KindTuple:
		if key.kind != KindInt {
			ctx.SetError(ErrType, "%s indices must be integers", base.kind)
			return nil
		}
		i := key.i
		if i < 0 {
			i += int64(len(base.items))
		}
		if i < 0 || i >= int64(len(base.items)) {
			ctx.SetError(ErrKey, "index out of range: %d", key.i)
			return nil
		}
		v := base.items[i]
		Incref(v)
		return v
	case KindDict:
		v := DictGetItem(base, key)
		if v == nil {
			ctx.SetKeyError(Str(key))
			return nil
		}
		Incref(v)
		return v
	}
	ctx.SetError(ErrType, "%s object is not subscriptable", base.kind)
	return nil
}

// UnaryOp applies op to a, returning a new reference.
func (ctx *Context) UnaryOp(op UnOp, a *Object) *Object {
	switch a.kind {
	case KindInt, KindBool:
		if op == OpNeg {
			return NewInt(-a.i)
		}
		return NewInt(a.i)
	case KindFloat:
		if op == OpNeg {
			return NewFloat(-a.f)
		}
		return NewFloat(a.f)
	}
	ctx.SetError(ErrType, "bad operand kind for unary operator: %s", a.kind)
	return nil
}

// ResolvePath walks a dotted attribute path from base, one name per segment,
// trying each as a mapping entry first and an attribute second. Returns a new
// reference, or nil; intermediate references are released as the walk
// advances, and the empty path is identity with an explicit new reference.
// It is the variadic counterpart of the per-path resolver functions emitted
// by the compiler.
func (ctx *Context) ResolvePath(base *Object, names ...*Object) *Object {
	if base == nil {
		return nil
	}
	Incref(base)
	cur := base
	for _, name := range names {
		next := DictGetItem(cur, name)
		if next != nil {
			Incref(next)
		} else {
			next = ctx.GetAttr(cur, name)
		}
		Decref(cur)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// SequenceFast returns a list or tuple view of o (a new reference). The
// message is reported if o is not a sequence.
func (ctx *Context) SequenceFast(o *Object, message string) *Object {
	if o == nil {
		ctx.SetError(ErrType, "%s", message)
		return nil
	}
	switch o.kind {
	case KindList, KindTuple:
		Incref(o)
		return o
	}
	ctx.SetError(ErrType, "%s", message)
	return nil
}

// SequenceFastLen returns the element count of a fast-sequence view.
func SequenceFastLen(o *Object) int { return len(o.items) }

// SequenceFastItem returns a borrowed reference to element i of a
// fast-sequence view, or nil if i is out of range.
func SequenceFastItem(o *Object, i int) *Object {
	if i < 0 || i >= len(o.items) {
		return nil
	}
	return o.items[i]
}

// DictSetItem binds key to value in d, taking a new reference to the value.
// Returns 0 on success, -1 on failure.
func (ctx *Context) DictSetItem(d, key, value *Object) int {
	if d.kind != KindDict || key.kind != KindString {
		ctx.SetError(ErrType, "mapping insert requires a dict and a string key")
		return -1
	}
	d.SetItem(key.s, value)
	return 0
}

// CallPositional invokes callable with positional arguments only, returning
// a new reference.
func (ctx *Context) CallPositional(callable *Object, args ...*Object) *Object {
	if callable == nil || callable.call == nil {
		ctx.SetError(ErrType, "object is not callable")
		return nil
	}
	res := callable.call(ctx, args, nil)
	if res == nil && ctx.pending == nil {
		ctx.SetError(ErrType, "call to %s failed", callable.name)
	}
	return res
}

// Call invokes callable with a packed argument tuple and keyword mapping,
// returning a new reference.
func (ctx *Context) Call(callable, argsTuple, kwDict *Object) *Object {
	if callable == nil || callable.call == nil {
		ctx.SetError(ErrType, "object is not callable")
		return nil
	}
	var kwargs map[string]*Object
	if kwDict != nil && len(kwDict.entries) > 0 {
		kwargs = kwDict.entries
	}
	res := callable.call(ctx, argsTuple.items, kwargs)
	if res == nil && ctx.pending == nil {
		ctx.SetError(ErrType, "call to %s failed", callable.name)
	}
	return res
}

// Str returns the display string of o.
func Str(o *Object) string {
	switch o.kind {
	case KindNone:
		return "None"
	case KindBool:
		if o.i != 0 {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(o.i, 10)
	case KindBigInt:
		return o.big.String()
	case KindFloat:
		return strconv.FormatFloat(o.f, 'g', -1, 64)
	case KindString:
		return o.s
	case KindList, KindTuple:
		parts := make([]string, len(o.items))
		for i, e := range o.items {
			parts[i] = Str(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindCallable:
		return "<callable " + o.name + ">"
	case KindModule:
		return "<module " + o.name + ">"
	}
	return "<object>"
}
