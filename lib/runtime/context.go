package runtime

import "fmt"

// ---------------------------------------------------------------------------
// Context: ambient error state and the host module table
// ---------------------------------------------------------------------------

// ErrorKind classifies the pending runtime error.
type ErrorKind int

const (
	// ErrKey is a failed dynamic-context lookup.
	ErrKey ErrorKind = iota
	// ErrName is a use of an assigned-but-never-initialized local.
	ErrName
	// ErrAttribute is a failed attribute lookup.
	ErrAttribute
	// ErrType is an operation applied to an unsupported operand kind.
	ErrType
	// ErrImport is a reference to an unregistered module.
	ErrImport
)

// Error is the pending-error record carried by a Context.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Context carries the ambient pending-error state and the module table for
// one template execution environment. A Context must only be used from one
// goroutine at a time; compiled template invocations are synchronous.
type Context struct {
	pending *Error
	modules map[string]*Object
}

// NewContext creates an empty execution context.
func NewContext() *Context {
	return &Context{modules: make(map[string]*Object)}
}

// Pending returns the pending error, or nil.
func (ctx *Context) Pending() *Error { return ctx.pending }

// Clear discards any pending error.
func (ctx *Context) Clear() { ctx.pending = nil }

// SetError sets a pending error of the given kind.
func (ctx *Context) SetError(kind ErrorKind, format string, args ...any) {
	ctx.pending = &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// SetKeyError records a dynamic-context lookup miss for name.
func (ctx *Context) SetKeyError(name string) {
	ctx.SetError(ErrKey, "key not found: %s", name)
}

// SetNameError records a use of the unset local name.
func (ctx *Context) SetNameError(name string) {
	ctx.SetError(ErrName, "name not found: %s", name)
}

// RegisterModule makes a module importable by compiled code. The context
// holds its own reference.
func (ctx *Context) RegisterModule(m *Object) {
	Incref(m)
	if old, ok := ctx.modules[m.name]; ok {
		Decref(old)
	}
	ctx.modules[m.name] = m
}

// ImportModule resolves a registered module by its dotted name, returning a
// new reference, or nil with a pending error.
func (ctx *Context) ImportModule(name string) *Object {
	m, ok := ctx.modules[name]
	if !ok {
		ctx.SetError(ErrImport, "no module named %s", name)
		return nil
	}
	Incref(m)
	return m
}
