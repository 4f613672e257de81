// Package runtime provides the dynamic-object environment that compiled
// templates link against. Values are reference counted; the generated code
// follows CPython-style ownership rules (borrowed dict lookups, owning
// attribute lookups) and every fallible operation reports failure by
// returning nil with a pending error on the Context.
package runtime

import (
	"fmt"
	"math/big"
)

// ---------------------------------------------------------------------------
// Object: the refcounted dynamic value
// ---------------------------------------------------------------------------

// Kind discriminates the payload of an Object.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindBigInt
	KindFloat
	KindString
	KindList
	KindTuple
	KindDict
	KindCallable
	KindModule
)

var kindNames = map[Kind]string{
	KindNone:     "none",
	KindBool:     "bool",
	KindInt:      "int",
	KindBigInt:   "bigint",
	KindFloat:    "float",
	KindString:   "string",
	KindList:     "list",
	KindTuple:    "tuple",
	KindDict:     "dict",
	KindCallable: "callable",
	KindModule:   "module",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Callable is the signature of dynamically callable host values. Args are
// borrowed for the duration of the call; the return value is a new reference,
// or nil with a pending error on ctx.
type Callable func(ctx *Context, args []*Object, kwargs map[string]*Object) *Object

// Object is a reference-counted dynamic value. The zero Object is not valid;
// use the New* constructors, which return values with one owned reference.
type Object struct {
	refs     int64
	immortal bool
	kind     Kind

	i       int64
	big     *big.Int
	f       float64
	s       string
	items   []*Object
	entries map[string]*Object
	attrs   map[string]*Object
	call    Callable
	name    string
}

// Kind returns the object's kind.
func (o *Object) Kind() Kind { return o.kind }

// RefCount returns the current reference count. Immortal objects report -1.
func (o *Object) RefCount() int64 {
	if o.immortal {
		return -1
	}
	return o.refs
}

// Incref takes a new reference to o.
func Incref(o *Object) {
	if o.immortal {
		return
	}
	o.refs++
}

// Decref releases a reference to o, releasing its children when the count
// reaches zero.
func Decref(o *Object) {
	if o.immortal {
		return
	}
	o.refs--
	if o.refs > 0 {
		return
	}
	if o.refs < 0 {
		panic(fmt.Sprintf("runtime: refcount underflow on %s object", o.kind))
	}
	for _, item := range o.items {
		XDecref(item)
	}
	o.items = nil
	for _, v := range o.entries {
		XDecref(v)
	}
	o.entries = nil
	for _, v := range o.attrs {
		XDecref(v)
	}
	o.attrs = nil
}

// XDecref is a nil-tolerant Decref, for releasing possibly-unset slots.
func XDecref(o *Object) {
	if o == nil {
		return
	}
	Decref(o)
}

// XIncref is the nil-tolerant form of Incref.
func XIncref(o *Object) {
	if o == nil {
		return
	}
	Incref(o)
}

// ---------------------------------------------------------------------------
// Singletons
// ---------------------------------------------------------------------------

// None, True and False are immortal; refcount operations on them are no-ops,
// so generated code may treat references to them as either borrowed or owned.
var (
	None  = &Object{immortal: true, kind: KindNone}
	True  = &Object{immortal: true, kind: KindBool, i: 1}
	False = &Object{immortal: true, kind: KindBool, i: 0}
)

// BoolFor returns the True or False singleton (a borrowed reference).
func BoolFor(b bool) *Object {
	if b {
		return True
	}
	return False
}

// ---------------------------------------------------------------------------
// Constructors: each returns one owned reference
// ---------------------------------------------------------------------------

// NewInt creates an integer object.
func NewInt(v int64) *Object {
	return &Object{refs: 1, kind: KindInt, i: v}
}

// IntFromDecimal creates an integer object from a base-10 string. It is the
// construction path for literals beyond the native integer range.
func IntFromDecimal(s string) *Object {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(fmt.Sprintf("runtime: invalid decimal literal %q", s))
	}
	return &Object{refs: 1, kind: KindBigInt, big: b}
}

// NewFloat creates a floating-point object.
func NewFloat(v float64) *Object {
	return &Object{refs: 1, kind: KindFloat, f: v}
}

// NewString creates a string object.
func NewString(s string) *Object {
	return &Object{refs: 1, kind: KindString, s: s}
}

// NewList creates an empty list.
func NewList() *Object {
	return &Object{refs: 1, kind: KindList}
}

// NewListFrom creates a list holding the given elements, taking a new
// reference to each.
func NewListFrom(elems ...*Object) *Object {
	l := &Object{refs: 1, kind: KindList, items: make([]*Object, len(elems))}
	for i, e := range elems {
		Incref(e)
		l.items[i] = e
	}
	return l
}

// TuplePack creates a tuple holding the given elements, taking a new
// reference to each.
func TuplePack(elems ...*Object) *Object {
	t := &Object{refs: 1, kind: KindTuple, items: make([]*Object, len(elems))}
	for i, e := range elems {
		Incref(e)
		t.items[i] = e
	}
	return t
}

// NewDict creates an empty string-keyed mapping.
func NewDict() *Object {
	return &Object{refs: 1, kind: KindDict, entries: make(map[string]*Object)}
}

// NewDictFrom creates a mapping from the given entries, taking a new
// reference to each value.
func NewDictFrom(entries map[string]*Object) *Object {
	d := NewDict()
	for k, v := range entries {
		Incref(v)
		d.entries[k] = v
	}
	return d
}

// NewCallable wraps a host function as a callable object.
func NewCallable(name string, fn Callable) *Object {
	return &Object{refs: 1, kind: KindCallable, name: name, call: fn}
}

// NewModule creates a module object; its attributes hold the module's names.
func NewModule(name string) *Object {
	return &Object{refs: 1, kind: KindModule, name: name, attrs: make(map[string]*Object)}
}

// SetAttr binds an attribute on o, taking a new reference to v and releasing
// any previous binding.
func (o *Object) SetAttr(name string, v *Object) {
	if o.attrs == nil {
		o.attrs = make(map[string]*Object)
	}
	Incref(v)
	if old, ok := o.attrs[name]; ok {
		Decref(old)
	}
	o.attrs[name] = v
}

// SetItem binds a key in a dict object, taking a new reference to v and
// releasing any previous binding. It panics on non-dict receivers; generated
// code uses Context.DictSetItem, which reports a pending error instead.
func (o *Object) SetItem(key string, v *Object) {
	if o.kind != KindDict {
		panic("runtime: SetItem on non-dict object")
	}
	Incref(v)
	if old, ok := o.entries[key]; ok {
		Decref(old)
	}
	o.entries[key] = v
}

// ---------------------------------------------------------------------------
// Accessors used by tests and embedders
// ---------------------------------------------------------------------------

// IsString reports whether o is a string object.
func (o *Object) IsString() bool { return o.kind == KindString }

// StringVal returns the string payload of a string object.
func (o *Object) StringVal() string { return o.s }

// IntVal returns the integer payload of an int object.
func (o *Object) IntVal() int64 { return o.i }

// FloatVal returns the float payload of a float object.
func (o *Object) FloatVal() float64 { return o.f }

// Len returns the element count of a list or tuple, or the entry count of a
// dict.
func (o *Object) Len() int {
	if o.kind == KindDict {
		return len(o.entries)
	}
	return len(o.items)
}

// Item returns a borrowed reference to element i of a list or tuple.
func (o *Object) Item(i int) *Object { return o.items[i] }

// DictGetItem returns a borrowed reference to the value bound to key, or nil
// if the key is absent or base is not a mapping. Like the C-API dict lookup
// it never sets a pending error; callers synthesize one when a miss is fatal.
func DictGetItem(base, key *Object) *Object {
	if base == nil || base.kind != KindDict || key == nil || key.kind != KindString {
		return nil
	}
	return base.entries[key.s]
}
