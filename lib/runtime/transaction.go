package runtime

import "strings"

// ---------------------------------------------------------------------------
// Transaction: the ordered output-accumulation buffer
// ---------------------------------------------------------------------------

// NewTransaction creates an empty output buffer for one template invocation.
func NewTransaction() *Object {
	return NewList()
}

// ListAppend appends o to a list, taking a new reference to it. Returns 0 on
// success, -1 on failure.
func (ctx *Context) ListAppend(list, o *Object) int {
	if list == nil || list.kind != KindList {
		ctx.SetError(ErrType, "append target is not a list")
		return -1
	}
	Incref(o)
	list.items = append(list.items, o)
	return 0
}

// JoinList concatenates the string forms of every element of list into one
// string object (a new reference). It is the concatenation helper invoked by
// generated entry hooks and by scoped-capture blocks.
func (ctx *Context) JoinList(list *Object) *Object {
	if list == nil || list.kind != KindList {
		ctx.SetError(ErrType, "join target is not a list")
		return nil
	}
	var b strings.Builder
	for _, e := range list.items {
		b.WriteString(Str(e))
	}
	return NewString(b.String())
}
