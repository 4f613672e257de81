package compiler

// ---------------------------------------------------------------------------
// AST for the intermediate dialect
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Position() Position
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Module is the root of a parsed program.
type Module struct {
	Body []Stmt
}

func (m *Module) Position() Position {
	if len(m.Body) > 0 {
		return m.Body[0].Position()
	}
	return Position{}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExprStmt is a bare expression at statement level. In generated classes
// these are the statements whose values land in the output buffer.
type ExprStmt struct {
	Pos   Position
	Value Expr
}

// AssignStmt binds a single target name to a value. Only simple-name
// targets occur in transpiled programs.
type AssignStmt struct {
	Pos    Position
	Target Expr
	Value  Expr
}

// IfStmt is a conditional with an optional else branch. elif chains parse
// as a nested IfStmt in Else.
type IfStmt struct {
	Pos  Position
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// ForStmt iterates a sequence, binding one or more loop targets.
type ForStmt struct {
	Pos     Position
	Targets []Expr // NameExpr targets; multiple for tuple unpacking
	Iter    Expr
	Body    []Stmt
}

// WhileStmt repeats its body while the condition holds.
type WhileStmt struct {
	Pos  Position
	Cond Expr
	Body []Stmt
}

// Param is one formal parameter of a method, optionally defaulted.
type Param struct {
	Name    string
	Default Expr // nil when the parameter has no default
	Pos     Position
}

// FuncDef declares a method of the enclosing class.
type FuncDef struct {
	Pos        Position
	Name       string
	Params     []Param
	Decorators []Expr
	Body       []Stmt
}

// ClassDef declares a template class. Bases are expressions so dotted
// superclass paths survive parsing; the normalizer resolves them.
type ClassDef struct {
	Pos   Position
	Name  string
	Bases []Expr
	Body  []Stmt
}

// ImportAlias is one clause of an import statement.
type ImportAlias struct {
	Name  string // dotted module path
	As    string // empty when unaliased
	Pos   Position
}

// ImportStmt is a plain import with one or more aliases.
type ImportStmt struct {
	Pos   Position
	Names []ImportAlias
}

// ImportFromStmt imports names from a module.
type ImportFromStmt struct {
	Pos    Position
	Module string
	Names  []ImportAlias
}

// WithStmt is a context-managed block. Transpiled programs never produce
// one; the parser accepts it so the code generator can reject it with a
// precise unsupported-feature report.
type WithStmt struct {
	Pos     Position
	Context Expr
	As      string
	Body    []Stmt
}

// ExceptClause is one handler of a try statement.
type ExceptClause struct {
	Pos  Position
	Type Expr   // nil for a bare except
	As   string // empty when unbound
	Body []Stmt
}

// TryStmt is a try with handlers and optional else/finally parts.
type TryStmt struct {
	Pos      Position
	Body     []Stmt
	Handlers []ExceptClause
	Else     []Stmt
	Finally  []Stmt
}

// ReturnStmt returns from the enclosing method.
type ReturnStmt struct {
	Pos   Position
	Value Expr // nil for a bare return
}

// PassStmt is a no-op placeholder.
type PassStmt struct {
	Pos Position
}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	Pos Position
}

// ContinueStmt advances the innermost loop.
type ContinueStmt struct {
	Pos Position
}

// DelStmt unbinds names.
type DelStmt struct {
	Pos     Position
	Targets []Expr
}

// AssertStmt asserts a condition.
type AssertStmt struct {
	Pos     Position
	Cond    Expr
	Message Expr // nil when absent
}

// GlobalStmt declares names global.
type GlobalStmt struct {
	Pos   Position
	Names []string
}

// YieldStmt yields a value. Always rejected downstream.
type YieldStmt struct {
	Pos   Position
	Value Expr // nil for a bare yield
}

// RaiseStmt raises an exception.
type RaiseStmt struct {
	Pos   Position
	Value Expr // nil for a bare raise
}

func (s *ExprStmt) Position() Position       { return s.Pos }
func (s *AssignStmt) Position() Position     { return s.Pos }
func (s *IfStmt) Position() Position         { return s.Pos }
func (s *ForStmt) Position() Position        { return s.Pos }
func (s *WhileStmt) Position() Position      { return s.Pos }
func (s *FuncDef) Position() Position        { return s.Pos }
func (s *ClassDef) Position() Position       { return s.Pos }
func (s *ImportStmt) Position() Position     { return s.Pos }
func (s *ImportFromStmt) Position() Position { return s.Pos }
func (s *WithStmt) Position() Position       { return s.Pos }
func (s *TryStmt) Position() Position        { return s.Pos }
func (s *ReturnStmt) Position() Position     { return s.Pos }
func (s *PassStmt) Position() Position       { return s.Pos }
func (s *BreakStmt) Position() Position      { return s.Pos }
func (s *ContinueStmt) Position() Position   { return s.Pos }
func (s *DelStmt) Position() Position        { return s.Pos }
func (s *AssertStmt) Position() Position     { return s.Pos }
func (s *GlobalStmt) Position() Position     { return s.Pos }
func (s *YieldStmt) Position() Position      { return s.Pos }
func (s *RaiseStmt) Position() Position      { return s.Pos }

func (*ExprStmt) stmtNode()       {}
func (*AssignStmt) stmtNode()     {}
func (*IfStmt) stmtNode()         {}
func (*ForStmt) stmtNode()        {}
func (*WhileStmt) stmtNode()      {}
func (*FuncDef) stmtNode()        {}
func (*ClassDef) stmtNode()       {}
func (*ImportStmt) stmtNode()     {}
func (*ImportFromStmt) stmtNode() {}
func (*WithStmt) stmtNode()       {}
func (*TryStmt) stmtNode()        {}
func (*ReturnStmt) stmtNode()     {}
func (*PassStmt) stmtNode()       {}
func (*BreakStmt) stmtNode()      {}
func (*ContinueStmt) stmtNode()   {}
func (*DelStmt) stmtNode()        {}
func (*AssertStmt) stmtNode()     {}
func (*GlobalStmt) stmtNode()     {}
func (*YieldStmt) stmtNode()      {}
func (*RaiseStmt) stmtNode()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// NumKind distinguishes number literal forms.
type NumKind int

const (
	NumInt NumKind = iota
	NumFloat
)

// NumLit is an integer or float literal. The literal text is preserved so
// integers beyond the native range can fall back to their decimal form.
type NumLit struct {
	Pos     Position
	Kind    NumKind
	Literal string
}

// StrLit is a string literal, already unescaped.
type StrLit struct {
	Pos   Position
	Value string
}

// NameExpr is a bare name, including None/True/False.
type NameExpr struct {
	Pos  Position
	Name string
}

// AttributeExpr is a dotted attribute access.
type AttributeExpr struct {
	Pos   Position
	Value Expr
	Attr  string
}

// Keyword is one keyword argument of a call.
type Keyword struct {
	Name  string
	Value Expr
	Pos   Position
}

// CallExpr is a function or method call.
type CallExpr struct {
	Pos      Position
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// CmpOpKind is one comparison operator.
type CmpOpKind int

const (
	CmpOpLt CmpOpKind = iota
	CmpOpLe
	CmpOpEq
	CmpOpNe
	CmpOpGt
	CmpOpGe
	CmpOpIn
	CmpOpNotIn
	CmpOpIs
	CmpOpIsNot
)

// CompareExpr is a comparison. Chained comparisons parse into the Ops and
// Comparators lists; chains of length > 1 are rejected by code generation.
type CompareExpr struct {
	Pos         Position
	Left        Expr
	Ops         []CmpOpKind
	Comparators []Expr
}

// BoolOpKind is a short-circuit boolean operator.
type BoolOpKind int

const (
	BoolAnd BoolOpKind = iota
	BoolOr
)

// BoolOpExpr is a strictly binary and/or. Longer source chains nest
// left-associatively.
type BoolOpExpr struct {
	Pos   Position
	Op    BoolOpKind
	Left  Expr
	Right Expr
}

// UnaryOpKind is a unary operator.
type UnaryOpKind int

const (
	UnaryNot UnaryOpKind = iota
	UnaryNeg
	UnaryPos
)

// UnaryExpr is a unary operation.
type UnaryExpr struct {
	Pos     Position
	Op      UnaryOpKind
	Operand Expr
}

// BinOpKind is a binary arithmetic operator.
type BinOpKind int

const (
	BinAdd BinOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinFloorDiv
	BinMod
)

// BinaryExpr is a binary arithmetic operation.
type BinaryExpr struct {
	Pos   Position
	Op    BinOpKind
	Left  Expr
	Right Expr
}

// SubscriptExpr is an indexing operation.
type SubscriptExpr struct {
	Pos   Position
	Value Expr
	Index Expr
}

// ListExpr is a list display.
type ListExpr struct {
	Pos   Position
	Elems []Expr
}

// TupleExpr is a tuple display, parenthesized or bare.
type TupleExpr struct {
	Pos   Position
	Elems []Expr
}

// DictExpr is a dict display.
type DictExpr struct {
	Pos    Position
	Keys   []Expr
	Values []Expr
}

// CondExpr is a conditional expression: Then if Cond else Else.
type CondExpr struct {
	Pos  Position
	Cond Expr
	Then Expr
	Else Expr
}

func (e *NumLit) Position() Position        { return e.Pos }
func (e *StrLit) Position() Position        { return e.Pos }
func (e *NameExpr) Position() Position      { return e.Pos }
func (e *AttributeExpr) Position() Position { return e.Pos }
func (e *CallExpr) Position() Position      { return e.Pos }
func (e *CompareExpr) Position() Position   { return e.Pos }
func (e *BoolOpExpr) Position() Position    { return e.Pos }
func (e *UnaryExpr) Position() Position     { return e.Pos }
func (e *BinaryExpr) Position() Position    { return e.Pos }
func (e *SubscriptExpr) Position() Position { return e.Pos }
func (e *ListExpr) Position() Position      { return e.Pos }
func (e *TupleExpr) Position() Position     { return e.Pos }
func (e *DictExpr) Position() Position      { return e.Pos }
func (e *CondExpr) Position() Position      { return e.Pos }

func (*NumLit) exprNode()        {}
func (*StrLit) exprNode()        {}
func (*NameExpr) exprNode()      {}
func (*AttributeExpr) exprNode() {}
func (*CallExpr) exprNode()      {}
func (*CompareExpr) exprNode()   {}
func (*BoolOpExpr) exprNode()    {}
func (*UnaryExpr) exprNode()     {}
func (*BinaryExpr) exprNode()    {}
func (*SubscriptExpr) exprNode() {}
func (*ListExpr) exprNode()      {}
func (*TupleExpr) exprNode()     {}
func (*DictExpr) exprNode()      {}
func (*CondExpr) exprNode()      {}

// DottedPath flattens a name-or-attribute chain into its segments, rooted at
// a bare name. Returns nil when e is not such a chain.
func DottedPath(e Expr) []string {
	switch v := e.(type) {
	case *NameExpr:
		return []string{v.Name}
	case *AttributeExpr:
		base := DottedPath(v.Value)
		if base == nil {
			return nil
		}
		return append(base, v.Attr)
	}
	return nil
}
