package compiler

import "strings"

// ---------------------------------------------------------------------------
// Normalizer: dialect program -> template class structure
// ---------------------------------------------------------------------------

// The transpiler's output is structurally flat: defs appear wherever their
// directives sat in the template, top-level text is loose expression
// statements, and the superclass is a tagged import. Normalize rearranges
// this into the shape the code generator works with: one class per template,
// every method hoisted to class level, and the leftover top level wrapped
// into the respond method.

const (
	// SelfName is the receiver parameter added to every hoisted method.
	SelfName = "self"
	// RespondMethod is the synthesized main method of a template class.
	RespondMethod = "respond"
	// SkipDecorator drops the decorated def entirely.
	SkipDecorator = "stencil_skip"
	// NoopDecorator keeps the decorated def but empties its body.
	NoopDecorator = "stencil_noop"
)

// StructuralError reports a malformed program shape, as opposed to a
// syntax-level failure.
type StructuralError struct {
	Pos     Position
	Message string
}

func (e *StructuralError) Error() string {
	return "structural error at " + e.Pos.String() + ": " + e.Message
}

// Normalize converts a parsed dialect program into a module containing the
// scraped imports followed by a single class named name. Transformations:
//
//  1. an initial "import X as __extends__" becomes the superclass;
//  2. defs are hoisted to class level in postorder, block defs leaving a
//     call behind in their place;
//  3. remaining top-level imports move ahead of the class;
//  4. whatever is left becomes the body of respond.
func Normalize(name string, mod *Module) (*Module, error) {
	body := mod.Body

	var bases []Expr
	if len(body) > 0 {
		if imp, ok := body[0].(*ImportStmt); ok &&
			len(imp.Names) == 1 && imp.Names[0].As == ExtendsAlias {
			bases = []Expr{&NameExpr{Pos: imp.Pos, Name: imp.Names[0].Name}}
			body = body[1:]
		}
	}

	h := &hoister{}
	body = h.visitStmts(body)
	if h.err != nil {
		return nil, h.err
	}

	out := &Module{}
	var rest []Stmt
	for _, stmt := range body {
		switch stmt.(type) {
		case *ImportStmt, *ImportFromStmt:
			out.Body = append(out.Body, stmt)
		default:
			rest = append(rest, stmt)
		}
	}

	cls := &ClassDef{Name: name, Bases: bases}
	cls.Body = append(cls.Body, h.hoisted...)
	cls.Body = append(cls.Body, synthesizeRespond(rest))
	out.Body = append(out.Body, cls)
	return out, nil
}

func synthesizeRespond(body []Stmt) *FuncDef {
	if len(body) == 0 {
		body = []Stmt{&PassStmt{}}
	}
	return &FuncDef{
		Name:   RespondMethod,
		Params: []Param{{Name: SelfName}},
		Body:   body,
	}
}

// hoister accumulates function definitions in postorder and strips them out
// of the statement tree. A block-tagged def leaves a call to itself behind;
// any other def vanishes from its original position.
type hoister struct {
	hoisted []Stmt
	err     error
}

func (h *hoister) visitStmts(stmts []Stmt) []Stmt {
	var out []Stmt
	for _, stmt := range stmts {
		if fn, ok := stmt.(*FuncDef); ok {
			replacement := h.visitFuncDef(fn)
			if replacement != nil {
				out = append(out, replacement)
			}
			continue
		}
		h.visitNested(stmt)
		out = append(out, stmt)
	}
	return out
}

// visitNested recurses into the statement bodies of compound statements.
func (h *hoister) visitNested(stmt Stmt) {
	switch s := stmt.(type) {
	case *IfStmt:
		s.Body = h.visitStmts(s.Body)
		s.Else = h.visitStmts(s.Else)
	case *ForStmt:
		s.Body = h.visitStmts(s.Body)
	case *WhileStmt:
		s.Body = h.visitStmts(s.Body)
	case *WithStmt:
		s.Body = h.visitStmts(s.Body)
	case *TryStmt:
		s.Body = h.visitStmts(s.Body)
		for i := range s.Handlers {
			s.Handlers[i].Body = h.visitStmts(s.Handlers[i].Body)
		}
		s.Else = h.visitStmts(s.Else)
		s.Finally = h.visitStmts(s.Finally)
	case *ClassDef:
		s.Body = h.visitStmts(s.Body)
	}
}

// visitFuncDef hoists one def, returning the statement to leave in its
// place, or nil to delete it.
func (h *hoister) visitFuncDef(fn *FuncDef) Stmt {
	skip, noop := false, false
	var decorators []Expr
	for _, dec := range fn.Decorators {
		name, ok := dec.(*NameExpr)
		switch {
		case ok && name.Name == SkipDecorator:
			skip = true
		case ok && name.Name == NoopDecorator:
			noop = true
		default:
			decorators = append(decorators, dec)
		}
	}
	if skip {
		return nil
	}
	fn.Decorators = decorators
	if noop {
		fn.Body = []Stmt{&PassStmt{Pos: fn.Pos}}
	}

	// children first, so hoisted defs land in postorder
	fn.Body = h.visitStmts(fn.Body)

	fn.Params = append([]Param{{Name: SelfName, Pos: fn.Pos}}, fn.Params...)

	if strings.HasPrefix(fn.Name, BlockTagPrefix) {
		blockName := fn.Name[len(BlockTagPrefix):]
		if blockName == "" {
			h.fail(fn.Pos, "block def without a name")
			return nil
		}
		fn.Name = blockName
		h.hoisted = append(h.hoisted, fn)
		// the block still renders in place: leave a call behind
		return &ExprStmt{Pos: fn.Pos, Value: &CallExpr{
			Pos:  fn.Pos,
			Func: &NameExpr{Pos: fn.Pos, Name: blockName},
		}}
	}

	h.hoisted = append(h.hoisted, fn)
	return nil
}

func (h *hoister) fail(pos Position, message string) {
	if h.err == nil {
		h.err = &StructuralError{Pos: pos, Message: message}
	}
}
