package compiler

// ---------------------------------------------------------------------------
// Parser: recursive descent over the intermediate dialect
// ---------------------------------------------------------------------------

// Parse parses intermediate-dialect source into a module. It fails fast: the
// returned error is a *SyntaxError positioned at the first offending token,
// which is what the transpiler's probing and the marker sanitizer steer on.
func Parse(src string) (*Module, error) {
	p := &parser{lexer: NewLexer(src)}
	p.next()
	p.next()
	mod := &Module{}
	for p.cur.Type != TokenEOF {
		if p.err != nil {
			return nil, p.err
		}
		stmt := p.parseStmt()
		if p.err != nil {
			return nil, p.err
		}
		mod.Body = append(mod.Body, stmt)
	}
	return mod, nil
}

type parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
	err   *SyntaxError
}

func (p *parser) next() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
	if p.cur.Type == TokenError && p.err == nil {
		p.err = syntaxErrorf(p.cur.Pos, "unexpected %q", p.cur.Literal)
	}
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = syntaxErrorf(p.cur.Pos, format, args...)
	}
}

func (p *parser) expect(t TokenType) Token {
	tok := p.cur
	if tok.Type != t {
		p.fail("expected %s, found %s", t, tok.Type)
		return tok
	}
	p.next()
	return tok
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *parser) parseStmt() Stmt {
	switch p.cur.Type {
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenDef:
		return p.parseFuncDef(nil)
	case TokenAt:
		return p.parseDecorated()
	case TokenClass:
		return p.parseClassDef()
	case TokenTry:
		return p.parseTry()
	case TokenWith:
		return p.parseWith()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseSimpleStmt() Stmt {
	pos := p.cur.Pos
	var stmt Stmt
	switch p.cur.Type {
	case TokenPass:
		p.next()
		stmt = &PassStmt{Pos: pos}
	case TokenBreak:
		p.next()
		stmt = &BreakStmt{Pos: pos}
	case TokenContinue:
		p.next()
		stmt = &ContinueStmt{Pos: pos}
	case TokenReturn:
		p.next()
		var value Expr
		if p.cur.Type != TokenNewline {
			value = p.parseExprList()
		}
		stmt = &ReturnStmt{Pos: pos, Value: value}
	case TokenDel:
		p.next()
		targets := []Expr{p.parseExpr()}
		for p.cur.Type == TokenComma {
			p.next()
			targets = append(targets, p.parseExpr())
		}
		stmt = &DelStmt{Pos: pos, Targets: targets}
	case TokenAssert:
		p.next()
		cond := p.parseExpr()
		var msg Expr
		if p.cur.Type == TokenComma {
			p.next()
			msg = p.parseExpr()
		}
		stmt = &AssertStmt{Pos: pos, Cond: cond, Message: msg}
	case TokenGlobal:
		p.next()
		names := []string{p.expect(TokenName).Literal}
		for p.cur.Type == TokenComma {
			p.next()
			names = append(names, p.expect(TokenName).Literal)
		}
		stmt = &GlobalStmt{Pos: pos, Names: names}
	case TokenYield:
		p.next()
		var value Expr
		if p.cur.Type != TokenNewline {
			value = p.parseExprList()
		}
		stmt = &YieldStmt{Pos: pos, Value: value}
	case TokenRaise:
		p.next()
		var value Expr
		if p.cur.Type != TokenNewline {
			value = p.parseExpr()
		}
		stmt = &RaiseStmt{Pos: pos, Value: value}
	case TokenImport:
		stmt = p.parseImport()
	case TokenFrom:
		stmt = p.parseImportFrom()
	default:
		stmt = p.parseExprOrAssign()
	}
	p.expect(TokenNewline)
	return stmt
}

func (p *parser) parseExprOrAssign() Stmt {
	pos := p.cur.Pos
	target := p.parseExprList()
	if p.cur.Type == TokenAssign {
		p.next()
		value := p.parseExprList()
		return &AssignStmt{Pos: pos, Target: target, Value: value}
	}
	return &ExprStmt{Pos: pos, Value: target}
}

func (p *parser) parseImport() Stmt {
	pos := p.cur.Pos
	p.expect(TokenImport)
	var names []ImportAlias
	for {
		names = append(names, p.parseImportAlias())
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	return &ImportStmt{Pos: pos, Names: names}
}

func (p *parser) parseImportFrom() Stmt {
	pos := p.cur.Pos
	p.expect(TokenFrom)
	module := p.parseDottedName()
	p.expect(TokenImport)
	var names []ImportAlias
	for {
		names = append(names, p.parseImportAlias())
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	return &ImportFromStmt{Pos: pos, Module: module, Names: names}
}

func (p *parser) parseImportAlias() ImportAlias {
	pos := p.cur.Pos
	name := p.parseDottedName()
	alias := ImportAlias{Name: name, Pos: pos}
	if p.cur.Type == TokenAs {
		p.next()
		alias.As = p.expect(TokenName).Literal
	}
	return alias
}

func (p *parser) parseDottedName() string {
	name := p.expect(TokenName).Literal
	for p.cur.Type == TokenDot {
		p.next()
		name += "." + p.expect(TokenName).Literal
	}
	return name
}

// parseIf consumes the introducing if/elif keyword itself, so elif chains
// parse as a nested IfStmt in the else branch.
func (p *parser) parseIf() Stmt {
	pos := p.cur.Pos
	p.next()
	cond := p.parseExpr()
	body := p.parseBlock()
	stmt := &IfStmt{Pos: pos, Cond: cond, Body: body}
	switch p.cur.Type {
	case TokenElif:
		stmt.Else = []Stmt{p.parseIf()}
	case TokenElse:
		p.next()
		stmt.Else = p.parseBlock()
	}
	return stmt
}

func (p *parser) parseWhile() Stmt {
	pos := p.cur.Pos
	p.expect(TokenWhile)
	cond := p.parseExpr()
	body := p.parseBlock()
	return &WhileStmt{Pos: pos, Cond: cond, Body: body}
}

func (p *parser) parseFor() Stmt {
	pos := p.cur.Pos
	p.expect(TokenFor)
	targets := []Expr{p.parseTarget()}
	for p.cur.Type == TokenComma {
		p.next()
		targets = append(targets, p.parseTarget())
	}
	p.expect(TokenIn)
	iter := p.parseExprList()
	body := p.parseBlock()
	return &ForStmt{Pos: pos, Targets: targets, Iter: iter, Body: body}
}

func (p *parser) parseTarget() Expr {
	tok := p.expect(TokenName)
	return &NameExpr{Pos: tok.Pos, Name: tok.Literal}
}

func (p *parser) parseDecorated() Stmt {
	var decorators []Expr
	for p.cur.Type == TokenAt {
		p.next()
		decorators = append(decorators, p.parsePostfix())
		p.expect(TokenNewline)
	}
	if p.cur.Type != TokenDef {
		p.fail("decorator must precede a def")
		return &PassStmt{Pos: p.cur.Pos}
	}
	return p.parseFuncDef(decorators)
}

func (p *parser) parseFuncDef(decorators []Expr) Stmt {
	pos := p.cur.Pos
	p.expect(TokenDef)
	name := p.expect(TokenName).Literal
	p.expect(TokenLParen)
	var params []Param
	for p.cur.Type != TokenRParen && p.err == nil {
		ptok := p.expect(TokenName)
		param := Param{Name: ptok.Literal, Pos: ptok.Pos}
		if p.cur.Type == TokenAssign {
			p.next()
			param.Default = p.parseExpr()
		}
		params = append(params, param)
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	p.expect(TokenRParen)
	body := p.parseBlock()
	return &FuncDef{Pos: pos, Name: name, Params: params, Decorators: decorators, Body: body}
}

func (p *parser) parseClassDef() Stmt {
	pos := p.cur.Pos
	p.expect(TokenClass)
	name := p.expect(TokenName).Literal
	var bases []Expr
	if p.cur.Type == TokenLParen {
		p.next()
		for p.cur.Type != TokenRParen && p.err == nil {
			bases = append(bases, p.parseExpr())
			if p.cur.Type != TokenComma {
				break
			}
			p.next()
		}
		p.expect(TokenRParen)
	}
	body := p.parseBlock()
	return &ClassDef{Pos: pos, Name: name, Bases: bases, Body: body}
}

func (p *parser) parseTry() Stmt {
	pos := p.cur.Pos
	p.expect(TokenTry)
	stmt := &TryStmt{Pos: pos, Body: p.parseBlock()}
	for p.cur.Type == TokenExcept {
		clausePos := p.cur.Pos
		p.next()
		clause := ExceptClause{Pos: clausePos}
		if p.cur.Type != TokenColon {
			clause.Type = p.parseExpr()
			if p.cur.Type == TokenAs {
				p.next()
				clause.As = p.expect(TokenName).Literal
			}
		}
		clause.Body = p.parseBlock()
		stmt.Handlers = append(stmt.Handlers, clause)
	}
	if p.cur.Type == TokenElse {
		p.next()
		stmt.Else = p.parseBlock()
	}
	if p.cur.Type == TokenFinally {
		p.next()
		stmt.Finally = p.parseBlock()
	}
	if len(stmt.Handlers) == 0 && stmt.Finally == nil {
		p.fail("try without except or finally")
	}
	return stmt
}

func (p *parser) parseWith() Stmt {
	pos := p.cur.Pos
	p.expect(TokenWith)
	ctx := p.parseExpr()
	stmt := &WithStmt{Pos: pos, Context: ctx}
	if p.cur.Type == TokenAs {
		p.next()
		stmt.As = p.expect(TokenName).Literal
	}
	stmt.Body = p.parseBlock()
	return stmt
}

// parseBlock parses `: NEWLINE INDENT stmt+ DEDENT`.
func (p *parser) parseBlock() []Stmt {
	p.expect(TokenColon)
	p.expect(TokenNewline)
	p.expect(TokenIndent)
	var body []Stmt
	for p.cur.Type != TokenDedent && p.cur.Type != TokenEOF && p.err == nil {
		body = append(body, p.parseStmt())
	}
	p.expect(TokenDedent)
	if len(body) == 0 {
		p.fail("empty block")
	}
	return body
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// parseExprList parses a comma-separated expression list, yielding a bare
// tuple when more than one element is present.
func (p *parser) parseExprList() Expr {
	pos := p.cur.Pos
	first := p.parseExpr()
	if p.cur.Type != TokenComma {
		return first
	}
	elems := []Expr{first}
	for p.cur.Type == TokenComma {
		p.next()
		if !p.startsExpr() {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	return &TupleExpr{Pos: pos, Elems: elems}
}

func (p *parser) startsExpr() bool {
	switch p.cur.Type {
	case TokenName, TokenInt, TokenFloat, TokenString, TokenNone, TokenTrue,
		TokenFalse, TokenLParen, TokenLBracket, TokenLBrace, TokenMinus,
		TokenPlus, TokenNot:
		return true
	}
	return false
}

// parseExpr parses a conditional expression.
func (p *parser) parseExpr() Expr {
	value := p.parseOr()
	if p.cur.Type != TokenIf {
		return value
	}
	pos := p.cur.Pos
	p.next()
	cond := p.parseOr()
	p.expect(TokenElse)
	alt := p.parseExpr()
	return &CondExpr{Pos: pos, Cond: cond, Then: value, Else: alt}
}

func (p *parser) parseOr() Expr {
	left := p.parseAnd()
	for p.cur.Type == TokenOr {
		pos := p.cur.Pos
		p.next()
		right := p.parseAnd()
		left = &BoolOpExpr{Pos: pos, Op: BoolOr, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAnd() Expr {
	left := p.parseNot()
	for p.cur.Type == TokenAnd {
		pos := p.cur.Pos
		p.next()
		right := p.parseNot()
		left = &BoolOpExpr{Pos: pos, Op: BoolAnd, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseNot() Expr {
	if p.cur.Type == TokenNot {
		pos := p.cur.Pos
		p.next()
		return &UnaryExpr{Pos: pos, Op: UnaryNot, Operand: p.parseNot()}
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() Expr {
	left := p.parseArith()
	var ops []CmpOpKind
	var comparators []Expr
	pos := p.cur.Pos
	for {
		op, ok := p.compareOp()
		if !ok {
			break
		}
		ops = append(ops, op)
		comparators = append(comparators, p.parseArith())
	}
	if len(ops) == 0 {
		return left
	}
	return &CompareExpr{Pos: pos, Left: left, Ops: ops, Comparators: comparators}
}

// compareOp consumes one comparison operator if present.
func (p *parser) compareOp() (CmpOpKind, bool) {
	switch p.cur.Type {
	case TokenLt:
		p.next()
		return CmpOpLt, true
	case TokenLe:
		p.next()
		return CmpOpLe, true
	case TokenEq:
		p.next()
		return CmpOpEq, true
	case TokenNe:
		p.next()
		return CmpOpNe, true
	case TokenGt:
		p.next()
		return CmpOpGt, true
	case TokenGe:
		p.next()
		return CmpOpGe, true
	case TokenIn:
		p.next()
		return CmpOpIn, true
	case TokenNot:
		if p.peek.Type == TokenIn {
			p.next()
			p.next()
			return CmpOpNotIn, true
		}
		return 0, false
	case TokenIs:
		p.next()
		if p.cur.Type == TokenNot {
			p.next()
			return CmpOpIsNot, true
		}
		return CmpOpIs, true
	}
	return 0, false
}

func (p *parser) parseArith() Expr {
	left := p.parseTerm()
	for p.cur.Type == TokenPlus || p.cur.Type == TokenMinus {
		pos := p.cur.Pos
		op := BinAdd
		if p.cur.Type == TokenMinus {
			op = BinSub
		}
		p.next()
		left = &BinaryExpr{Pos: pos, Op: op, Left: left, Right: p.parseTerm()}
	}
	return left
}

func (p *parser) parseTerm() Expr {
	left := p.parseFactor()
	for {
		var op BinOpKind
		switch p.cur.Type {
		case TokenStar:
			op = BinMul
		case TokenSlash:
			op = BinDiv
		case TokenDSlash:
			op = BinFloorDiv
		case TokenPercent:
			op = BinMod
		default:
			return left
		}
		pos := p.cur.Pos
		p.next()
		left = &BinaryExpr{Pos: pos, Op: op, Left: left, Right: p.parseFactor()}
	}
}

func (p *parser) parseFactor() Expr {
	switch p.cur.Type {
	case TokenMinus:
		pos := p.cur.Pos
		p.next()
		return &UnaryExpr{Pos: pos, Op: UnaryNeg, Operand: p.parseFactor()}
	case TokenPlus:
		pos := p.cur.Pos
		p.next()
		return &UnaryExpr{Pos: pos, Op: UnaryPos, Operand: p.parseFactor()}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	expr := p.parseAtom()
	for p.err == nil {
		switch p.cur.Type {
		case TokenDot:
			pos := p.cur.Pos
			p.next()
			attr := p.expect(TokenName)
			expr = &AttributeExpr{Pos: pos, Value: expr, Attr: attr.Literal}
		case TokenLParen:
			expr = p.parseCall(expr)
		case TokenLBracket:
			pos := p.cur.Pos
			p.next()
			index := p.parseExpr()
			p.expect(TokenRBracket)
			expr = &SubscriptExpr{Pos: pos, Value: expr, Index: index}
		default:
			return expr
		}
	}
	return expr
}

func (p *parser) parseCall(fn Expr) Expr {
	pos := p.cur.Pos
	p.expect(TokenLParen)
	call := &CallExpr{Pos: pos, Func: fn}
	for p.cur.Type != TokenRParen && p.err == nil {
		if p.cur.Type == TokenName && p.peek.Type == TokenAssign {
			kwPos := p.cur.Pos
			name := p.cur.Literal
			p.next()
			p.next()
			call.Keywords = append(call.Keywords, Keyword{Name: name, Value: p.parseExpr(), Pos: kwPos})
		} else {
			if len(call.Keywords) > 0 {
				p.fail("positional argument after keyword argument")
				break
			}
			call.Args = append(call.Args, p.parseExpr())
		}
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	p.expect(TokenRParen)
	return call
}

func (p *parser) parseAtom() Expr {
	tok := p.cur
	switch tok.Type {
	case TokenName:
		p.next()
		return &NameExpr{Pos: tok.Pos, Name: tok.Literal}
	case TokenInt:
		p.next()
		return &NumLit{Pos: tok.Pos, Kind: NumInt, Literal: tok.Literal}
	case TokenFloat:
		p.next()
		return &NumLit{Pos: tok.Pos, Kind: NumFloat, Literal: tok.Literal}
	case TokenString:
		p.next()
		return &StrLit{Pos: tok.Pos, Value: tok.Literal}
	case TokenNone, TokenTrue, TokenFalse:
		p.next()
		return &NameExpr{Pos: tok.Pos, Name: tok.Literal}
	case TokenLParen:
		p.next()
		if p.cur.Type == TokenRParen {
			p.next()
			return &TupleExpr{Pos: tok.Pos}
		}
		inner := p.parseExprList()
		p.expect(TokenRParen)
		return inner
	case TokenLBracket:
		p.next()
		list := &ListExpr{Pos: tok.Pos}
		for p.cur.Type != TokenRBracket && p.err == nil {
			list.Elems = append(list.Elems, p.parseExpr())
			if p.cur.Type != TokenComma {
				break
			}
			p.next()
		}
		p.expect(TokenRBracket)
		return list
	case TokenLBrace:
		p.next()
		dict := &DictExpr{Pos: tok.Pos}
		for p.cur.Type != TokenRBrace && p.err == nil {
			dict.Keys = append(dict.Keys, p.parseExpr())
			p.expect(TokenColon)
			dict.Values = append(dict.Values, p.parseExpr())
			if p.cur.Type != TokenComma {
				break
			}
			p.next()
		}
		p.expect(TokenRBrace)
		return dict
	}
	p.fail("unexpected %s", tok.Type)
	p.next()
	return &NameExpr{Pos: tok.Pos, Name: "_"}
}
