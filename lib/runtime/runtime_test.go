package runtime

import (
	"testing"
)

func TestRefcountBasics(t *testing.T) {
	s := NewString("hello")
	if got := s.RefCount(); got != 1 {
		t.Errorf("new object refcount = %d, want 1", got)
	}
	Incref(s)
	if got := s.RefCount(); got != 2 {
		t.Errorf("after Incref refcount = %d, want 2", got)
	}
	Decref(s)
	if got := s.RefCount(); got != 1 {
		t.Errorf("after Decref refcount = %d, want 1", got)
	}
}

func TestXDecrefNilTolerant(t *testing.T) {
	XDecref(nil) // must not panic
}

func TestXIncrefNilTolerant(t *testing.T) {
	XIncref(nil) // must not panic
	s := NewString("x")
	XIncref(s)
	if got := s.RefCount(); got != 2 {
		t.Errorf("after XIncref refcount = %d, want 2", got)
	}
	Decref(s)
	Decref(s)
}

func TestSingletonsImmortal(t *testing.T) {
	for _, o := range []*Object{None, True, False} {
		Incref(o)
		Decref(o)
		Decref(o) // over-release must be harmless on immortals
		if got := o.RefCount(); got != -1 {
			t.Errorf("singleton refcount = %d, want -1", got)
		}
	}
}

func TestContainerReleasesChildren(t *testing.T) {
	child := NewString("x")
	list := NewListFrom(child)
	if got := child.RefCount(); got != 2 {
		t.Fatalf("child refcount after pack = %d, want 2", got)
	}
	Decref(list)
	if got := child.RefCount(); got != 1 {
		t.Errorf("child refcount after container release = %d, want 1", got)
	}
	Decref(child)
}

func TestDictGetItemBorrows(t *testing.T) {
	v := NewString("World")
	d := NewDictFrom(map[string]*Object{"name": v})
	key := NewString("name")

	got := DictGetItem(d, key)
	if got == nil || got.StringVal() != "World" {
		t.Fatalf("DictGetItem = %v, want World", got)
	}
	if got.RefCount() != 2 {
		t.Errorf("borrowed lookup changed refcount: %d, want 2", got.RefCount())
	}
	if miss := DictGetItem(d, NewString("absent")); miss != nil {
		t.Errorf("lookup of absent key = %v, want nil", miss)
	}
}

func TestGetAttrOwns(t *testing.T) {
	ctx := NewContext()
	v := NewInt(7)
	m := NewModule("mod")
	m.SetAttr("seven", v)
	if got := v.RefCount(); got != 2 {
		t.Fatalf("refcount after SetAttr = %d, want 2", got)
	}

	name := NewString("seven")
	got := ctx.GetAttr(m, name)
	if got != v {
		t.Fatalf("GetAttr returned wrong object")
	}
	if got.RefCount() != 3 {
		t.Errorf("GetAttr must return a new reference: refcount = %d, want 3", got.RefCount())
	}
	Decref(got)

	if miss := ctx.GetAttr(m, NewString("eight")); miss != nil {
		t.Errorf("GetAttr of absent attribute = %v, want nil", miss)
	}
	if ctx.Pending() == nil || ctx.Pending().Kind != ErrAttribute {
		t.Errorf("expected pending attribute error, got %v", ctx.Pending())
	}
}

func TestIsTrue(t *testing.T) {
	ctx := NewContext()
	tests := []struct {
		name string
		obj  *Object
		want int
	}{
		{"none", None, 0},
		{"true", True, 1},
		{"false", False, 0},
		{"zero", NewInt(0), 0},
		{"nonzero", NewInt(5), 1},
		{"empty string", NewString(""), 0},
		{"string", NewString("x"), 1},
		{"empty list", NewList(), 0},
		{"list", NewListFrom(None), 1},
	}
	for _, tc := range tests {
		if got := ctx.IsTrue(tc.obj); got != tc.want {
			t.Errorf("IsTrue(%s) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRichCompare(t *testing.T) {
	ctx := NewContext()
	tests := []struct {
		a, b *Object
		op   CompareOp
		want *Object
	}{
		{NewInt(1), NewInt(2), CmpLt, True},
		{NewInt(2), NewInt(2), CmpLe, True},
		{NewInt(3), NewInt(2), CmpGt, True},
		{NewInt(3), NewFloat(3.0), CmpEq, True},
		{NewString("a"), NewString("b"), CmpLt, True},
		{NewString("a"), NewString("a"), CmpNe, False},
	}
	for i, tc := range tests {
		if got := ctx.RichCompare(tc.a, tc.b, tc.op); got != tc.want {
			t.Errorf("case %d: RichCompare = %v, want %v", i, got, tc.want)
		}
	}
}

func TestBinaryOps(t *testing.T) {
	ctx := NewContext()
	sum := ctx.BinaryOp(OpAdd, NewInt(2), NewInt(3))
	if sum == nil || sum.IntVal() != 5 {
		t.Errorf("2+3 = %v, want 5", sum)
	}
	cat := ctx.BinaryOp(OpAdd, NewString("ab"), NewString("cd"))
	if cat == nil || cat.StringVal() != "abcd" {
		t.Errorf("string add = %v, want abcd", cat)
	}
	div := ctx.BinaryOp(OpDiv, NewInt(7), NewInt(2))
	if div == nil || div.FloatVal() != 3.5 {
		t.Errorf("7/2 = %v, want 3.5", div)
	}
	if r := ctx.BinaryOp(OpDiv, NewInt(1), NewInt(0)); r != nil {
		t.Errorf("division by zero = %v, want nil", r)
	}
	ctx.Clear()
}

func TestGetItem(t *testing.T) {
	ctx := NewContext()
	list := NewListFrom(NewInt(10), NewInt(20))
	v := ctx.BinaryOp(OpGetItem, list, NewInt(1))
	if v == nil || v.IntVal() != 20 {
		t.Fatalf("list[1] = %v, want 20", v)
	}
	if v.RefCount() < 2 {
		t.Errorf("subscript must return an owned reference")
	}
	Decref(v)

	d := NewDictFrom(map[string]*Object{"k": NewInt(1)})
	if got := ctx.BinaryOp(OpGetItem, d, NewString("missing")); got != nil {
		t.Errorf("dict miss = %v, want nil", got)
	}
	if ctx.Pending() == nil || ctx.Pending().Kind != ErrKey {
		t.Errorf("dict miss should set a key error, got %v", ctx.Pending())
	}
	ctx.Clear()
}

func TestSequenceFast(t *testing.T) {
	ctx := NewContext()
	list := NewListFrom(NewInt(1), NewInt(2), NewInt(3))
	fast := ctx.SequenceFast(list, "not a sequence")
	if fast == nil {
		t.Fatal("SequenceFast on list returned nil")
	}
	if got := SequenceFastLen(fast); got != 3 {
		t.Errorf("fast len = %d, want 3", got)
	}
	if item := SequenceFastItem(fast, 1); item == nil || item.IntVal() != 2 {
		t.Errorf("fast item 1 = %v, want 2", item)
	}
	Decref(fast)

	if got := ctx.SequenceFast(NewInt(3), "not a sequence"); got != nil {
		t.Errorf("SequenceFast on int = %v, want nil", got)
	}
	ctx.Clear()
}

func TestCallPositional(t *testing.T) {
	ctx := NewContext()
	fn := NewCallable("upper", func(ctx *Context, args []*Object, kwargs map[string]*Object) *Object {
		return NewString("HI " + Str(args[0]))
	})
	res := ctx.CallPositional(fn, NewString("there"))
	if res == nil || res.StringVal() != "HI there" {
		t.Errorf("call result = %v, want HI there", res)
	}
}

func TestCallKeywords(t *testing.T) {
	ctx := NewContext()
	fn := NewCallable("greet", func(ctx *Context, args []*Object, kwargs map[string]*Object) *Object {
		return NewString(Str(args[0]) + "/" + Str(kwargs["mode"]))
	})
	args := TuplePack(NewString("a"))
	kw := NewDict()
	ctx.DictSetItem(kw, NewString("mode"), NewString("loud"))
	res := ctx.Call(fn, args, kw)
	if res == nil || res.StringVal() != "a/loud" {
		t.Errorf("keyword call result = %v, want a/loud", res)
	}
	Decref(args)
	Decref(kw)
}

func TestJoinList(t *testing.T) {
	ctx := NewContext()
	tr := NewTransaction()
	ctx.ListAppend(tr, NewString("Hello "))
	ctx.ListAppend(tr, NewString("World"))
	ctx.ListAppend(tr, NewInt(42))
	out := ctx.JoinList(tr)
	if out == nil || out.StringVal() != "Hello World42" {
		t.Errorf("JoinList = %v, want Hello World42", out)
	}
}

func TestResolvePath(t *testing.T) {
	ctx := NewContext()
	leaf := NewInt(7)
	inner := NewDictFrom(map[string]*Object{"count": leaf})
	outer := NewDictFrom(map[string]*Object{"stats": inner})

	got := ctx.ResolvePath(outer, NewString("stats"), NewString("count"))
	if got != leaf {
		t.Fatalf("ResolvePath returned wrong object")
	}
	if got.RefCount() != 3 {
		t.Errorf("ResolvePath must return a new reference: refcount = %d, want 3", got.RefCount())
	}
	Decref(got)
	// intermediates are released as the walk advances
	if inner.RefCount() != 2 {
		t.Errorf("intermediate refcount = %d, want 2", inner.RefCount())
	}

	// the empty path is identity with a new reference
	id := ctx.ResolvePath(outer)
	if id != outer || outer.RefCount() != 2 {
		t.Errorf("empty path: obj %v refcount %d, want identity with refcount 2", id, outer.RefCount())
	}
	Decref(id)

	if miss := ctx.ResolvePath(outer, NewString("absent")); miss != nil {
		t.Errorf("ResolvePath of absent segment = %v, want nil", miss)
	}
	if ctx.Pending() == nil {
		t.Error("expected a pending error after a failed walk")
	}
}

func TestImportModule(t *testing.T) {
	ctx := NewContext()
	m := NewModule("os.path")
	ctx.RegisterModule(m)
	got := ctx.ImportModule("os.path")
	if got != m {
		t.Fatalf("ImportModule returned wrong object")
	}
	Decref(got)
	if miss := ctx.ImportModule("nope"); miss != nil {
		t.Errorf("import of unregistered module = %v, want nil", miss)
	}
	if ctx.Pending() == nil || ctx.Pending().Kind != ErrImport {
		t.Errorf("expected pending import error, got %v", ctx.Pending())
	}
}
