package compiler

import "testing"

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func mustParse(t *testing.T, src string) *Module {
	t.Helper()
	mod, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return mod
}

func TestParseAssignment(t *testing.T) {
	mod := mustParse(t, "x = 1\n")
	assign, ok := mod.Body[0].(*AssignStmt)
	if !ok {
		t.Fatalf("statement = %T, want *AssignStmt", mod.Body[0])
	}
	if name, ok := assign.Target.(*NameExpr); !ok || name.Name != "x" {
		t.Errorf("target = %#v, want name x", assign.Target)
	}
	if num, ok := assign.Value.(*NumLit); !ok || num.Literal != "1" {
		t.Errorf("value = %#v, want int 1", assign.Value)
	}
}

func TestParseIfElifElse(t *testing.T) {
	mod := mustParse(t, "if a:\n\tx\nelif b:\n\ty\nelse:\n\tz\n")
	ifStmt := mod.Body[0].(*IfStmt)
	if len(ifStmt.Body) != 1 {
		t.Fatalf("if body length = %d, want 1", len(ifStmt.Body))
	}
	nested, ok := ifStmt.Else[0].(*IfStmt)
	if !ok {
		t.Fatalf("elif did not nest: else[0] = %T", ifStmt.Else[0])
	}
	if len(nested.Else) != 1 {
		t.Errorf("final else length = %d, want 1", len(nested.Else))
	}
}

func TestParseForTupleTargets(t *testing.T) {
	mod := mustParse(t, "for k, v in items:\n\tk\n")
	forStmt := mod.Body[0].(*ForStmt)
	if len(forStmt.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(forStmt.Targets))
	}
	if forStmt.Targets[1].(*NameExpr).Name != "v" {
		t.Errorf("second target = %#v, want v", forStmt.Targets[1])
	}
}

func TestParseFuncDefWithDefaults(t *testing.T) {
	mod := mustParse(t, "def greet(name, mode=1):\n\tpass\n")
	fn := mod.Body[0].(*FuncDef)
	if fn.Name != "greet" || len(fn.Params) != 2 {
		t.Fatalf("def = %s/%d params, want greet/2", fn.Name, len(fn.Params))
	}
	if fn.Params[0].Default != nil {
		t.Errorf("first param should have no default")
	}
	if fn.Params[1].Default == nil {
		t.Errorf("second param should have a default")
	}
}

func TestParseDecoratedDef(t *testing.T) {
	mod := mustParse(t, "@stencil_skip\ndef helper():\n\tpass\n")
	fn := mod.Body[0].(*FuncDef)
	if len(fn.Decorators) != 1 {
		t.Fatalf("decorators = %d, want 1", len(fn.Decorators))
	}
	if fn.Decorators[0].(*NameExpr).Name != "stencil_skip" {
		t.Errorf("decorator = %#v", fn.Decorators[0])
	}
}

func TestParseClassWithBase(t *testing.T) {
	mod := mustParse(t, "class Page(base.layout):\n\tpass\n")
	cls := mod.Body[0].(*ClassDef)
	if cls.Name != "Page" || len(cls.Bases) != 1 {
		t.Fatalf("class = %s/%d bases", cls.Name, len(cls.Bases))
	}
	if path := DottedPath(cls.Bases[0]); len(path) != 2 || path[0] != "base" || path[1] != "layout" {
		t.Errorf("base path = %v, want [base layout]", path)
	}
}

func TestParseImports(t *testing.T) {
	mod := mustParse(t, "import base.layout as __extends__\nfrom util import fmt\n")
	imp := mod.Body[0].(*ImportStmt)
	if imp.Names[0].Name != "base.layout" || imp.Names[0].As != "__extends__" {
		t.Errorf("import = %#v", imp.Names[0])
	}
	from := mod.Body[1].(*ImportFromStmt)
	if from.Module != "util" || from.Names[0].Name != "fmt" {
		t.Errorf("from-import = %#v", from)
	}
}

func TestParseTryExceptFinally(t *testing.T) {
	mod := mustParse(t, "try:\n\tx\nexcept KeyError as e:\n\ty\nfinally:\n\tz\n")
	try := mod.Body[0].(*TryStmt)
	if len(try.Handlers) != 1 || try.Handlers[0].As != "e" {
		t.Fatalf("handlers = %#v", try.Handlers)
	}
	if len(try.Finally) != 1 {
		t.Errorf("finally length = %d, want 1", len(try.Finally))
	}
}

func TestParseWithAs(t *testing.T) {
	mod := mustParse(t, "with self.header(x) as __call__:\n\ty\n")
	with := mod.Body[0].(*WithStmt)
	if with.As != "__call__" {
		t.Errorf("as = %q, want __call__", with.As)
	}
	if _, ok := with.Context.(*CallExpr); !ok {
		t.Errorf("context = %T, want *CallExpr", with.Context)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func exprOf(t *testing.T, src string) Expr {
	t.Helper()
	mod := mustParse(t, src)
	return mod.Body[0].(*ExprStmt).Value
}

func TestParseBooleanNesting(t *testing.T) {
	// a or b or c nests left-associatively into binary nodes
	e := exprOf(t, "a or b or c\n").(*BoolOpExpr)
	if e.Op != BoolOr {
		t.Fatalf("op = %d, want or", e.Op)
	}
	left := e.Left.(*BoolOpExpr)
	if left.Left.(*NameExpr).Name != "a" || left.Right.(*NameExpr).Name != "b" {
		t.Errorf("left subtree wrong: %#v", left)
	}
	if e.Right.(*NameExpr).Name != "c" {
		t.Errorf("right = %#v, want c", e.Right)
	}
}

func TestParsePrecedence(t *testing.T) {
	// a + b * c parses the multiplication tighter
	e := exprOf(t, "a + b * c\n").(*BinaryExpr)
	if e.Op != BinAdd {
		t.Fatalf("top op = %d, want add", e.Op)
	}
	if right := e.Right.(*BinaryExpr); right.Op != BinMul {
		t.Errorf("right op = %d, want mul", right.Op)
	}
}

func TestParseComparisonOperators(t *testing.T) {
	tests := []struct {
		src string
		op  CmpOpKind
	}{
		{"a < b\n", CmpOpLt},
		{"a == b\n", CmpOpEq},
		{"a in b\n", CmpOpIn},
		{"a not in b\n", CmpOpNotIn},
		{"a is not b\n", CmpOpIsNot},
	}
	for _, tc := range tests {
		e := exprOf(t, tc.src).(*CompareExpr)
		if len(e.Ops) != 1 || e.Ops[0] != tc.op {
			t.Errorf("%q: ops = %v, want [%d]", tc.src, e.Ops, tc.op)
		}
	}
}

func TestParseChainedComparison(t *testing.T) {
	e := exprOf(t, "a < b < c\n").(*CompareExpr)
	if len(e.Ops) != 2 || len(e.Comparators) != 2 {
		t.Errorf("chain = %d ops / %d comparators, want 2/2", len(e.Ops), len(e.Comparators))
	}
}

func TestParseCallArguments(t *testing.T) {
	e := exprOf(t, "self.render(a, b, mode=c)\n").(*CallExpr)
	if len(e.Args) != 2 || len(e.Keywords) != 1 {
		t.Fatalf("call = %d args / %d keywords", len(e.Args), len(e.Keywords))
	}
	if e.Keywords[0].Name != "mode" {
		t.Errorf("keyword = %q, want mode", e.Keywords[0].Name)
	}
	if path := DottedPath(e.Func); len(path) != 2 || path[1] != "render" {
		t.Errorf("func path = %v", path)
	}
}

func TestParseConditionalExpr(t *testing.T) {
	e := exprOf(t, "a if cond else b\n").(*CondExpr)
	if e.Then.(*NameExpr).Name != "a" || e.Else.(*NameExpr).Name != "b" {
		t.Errorf("ternary arms wrong: %#v", e)
	}
}

func TestParseSubscriptAndDisplays(t *testing.T) {
	e := exprOf(t, "d['k'][0]\n").(*SubscriptExpr)
	inner := e.Value.(*SubscriptExpr)
	if inner.Index.(*StrLit).Value != "k" {
		t.Errorf("inner index = %#v", inner.Index)
	}

	list := exprOf(t, "[1, 2, 3]\n").(*ListExpr)
	if len(list.Elems) != 3 {
		t.Errorf("list elems = %d, want 3", len(list.Elems))
	}

	dict := exprOf(t, "{'a': 1}\n").(*DictExpr)
	if len(dict.Keys) != 1 {
		t.Errorf("dict keys = %d, want 1", len(dict.Keys))
	}
}

// ---------------------------------------------------------------------------
// Failure positions
// ---------------------------------------------------------------------------

func TestParseErrorIsPositioned(t *testing.T) {
	tests := []struct {
		src    string
		offset int
	}{
		{"if $cond:\n\tpass\n", 3},
		{"x = $y\n", 4},
	}
	for _, tc := range tests {
		_, err := Parse(tc.src)
		if err == nil {
			t.Errorf("Parse(%q) should fail", tc.src)
			continue
		}
		serr, ok := err.(*SyntaxError)
		if !ok {
			t.Errorf("%q: error type = %T, want *SyntaxError", tc.src, err)
			continue
		}
		if serr.Pos.Offset != tc.offset {
			t.Errorf("%q: offset = %d, want %d", tc.src, serr.Pos.Offset, tc.offset)
		}
	}
}

func TestParseFirstErrorWins(t *testing.T) {
	_, err := Parse("for $i in $items:\n\tpass\n")
	if err == nil {
		t.Fatal("expected failure")
	}
	if off := err.(*SyntaxError).Pos.Offset; off != 4 {
		t.Errorf("offset = %d, want 4 (the first marker)", off)
	}
}
