package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for the intermediate dialect
// ---------------------------------------------------------------------------

// Lexer tokenizes intermediate-dialect source. Statements are line oriented;
// leading whitespace opens and closes blocks, reported as INDENT and DEDENT
// tokens. Inside brackets, newlines and indentation are insignificant.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	atLineStart bool
	bracketDepth int
	indents     []string // stack of indentation prefixes, innermost last
	pending     []Token  // queued INDENT/DEDENT/NEWLINE tokens
	needNewline bool     // current line has tokens and no NEWLINE yet
	finished    bool
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		col:         1,
		atLineStart: true,
		indents:     []string{""},
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size

		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	switch tok.Type {
	case TokenNewline:
		l.needNewline = false
	case TokenIndent, TokenDedent, TokenEOF, TokenError:
	default:
		l.needNewline = true
	}
	return tok
}

func (l *Lexer) scan() Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	if l.atLineStart && l.bracketDepth == 0 {
		if tok, ok := l.handleLineStart(); ok {
			return tok
		}
	}

	// Skip intra-line whitespace.
	for l.ch == ' ' || l.ch == '\t' || (l.bracketDepth > 0 && l.ch == '\n') {
		l.readChar()
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return l.finish(pos)

	case l.ch == '\n':
		l.readChar()
		l.atLineStart = true
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos}

	case l.ch == '"' || l.ch == '\'':
		return l.readString(pos)

	case unicode.IsDigit(l.ch):
		return l.readNumber(pos)

	case isIdentStart(l.ch):
		return l.readName(pos)
	}

	// Operators and delimiters.
	single := map[rune]TokenType{
		'+': TokenPlus, '-': TokenMinus, '*': TokenStar, '%': TokenPercent,
		'(': TokenLParen, ')': TokenRParen, '[': TokenLBracket, ']': TokenRBracket,
		'{': TokenLBrace, '}': TokenRBrace, ',': TokenComma, ':': TokenColon,
		'.': TokenDot, '@': TokenAt,
	}

	switch l.ch {
	case '/':
		l.readChar()
		if l.ch == '/' {
			l.readChar()
			return Token{Type: TokenDSlash, Literal: "//", Pos: pos}
		}
		return Token{Type: TokenSlash, Literal: "/", Pos: pos}
	case '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEq, Literal: "==", Pos: pos}
		}
		return Token{Type: TokenAssign, Literal: "=", Pos: pos}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: TokenNe, Literal: "!=", Pos: pos}
		}
	case '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenLe, Literal: "<=", Pos: pos}
		}
		return Token{Type: TokenLt, Literal: "<", Pos: pos}
	case '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenGe, Literal: ">=", Pos: pos}
		}
		return Token{Type: TokenGt, Literal: ">", Pos: pos}
	default:
		if typ, ok := single[l.ch]; ok {
			lit := string(l.ch)
			switch l.ch {
			case '(', '[', '{':
				l.bracketDepth++
			case ')', ']', '}':
				if l.bracketDepth > 0 {
					l.bracketDepth--
				}
			}
			l.readChar()
			return Token{Type: typ, Literal: lit, Pos: pos}
		}
	}

	// Anything else (notably a stray placeholder marker) is an error token;
	// the sanitizer steers on its exact position.
	lit := string(l.ch)
	l.readChar()
	return Token{Type: TokenError, Literal: lit, Pos: pos}
}

// handleLineStart measures indentation at the start of a logical line and
// queues INDENT/DEDENT tokens. Blank lines are skipped entirely.
func (l *Lexer) handleLineStart() (Token, bool) {
	for {
		start := l.pos
		for l.ch == ' ' || l.ch == '\t' {
			l.readChar()
		}
		if l.ch == '\n' {
			// blank line: no tokens
			l.readChar()
			continue
		}
		if l.ch == 0 {
			l.atLineStart = false
			return Token{}, false
		}
		l.atLineStart = false
		prefix := l.input[start:l.pos]
		return l.compareIndent(prefix)
	}
}

// compareIndent emits indentation tokens for the measured prefix.
func (l *Lexer) compareIndent(prefix string) (Token, bool) {
	pos := l.position()
	current := l.indents[len(l.indents)-1]
	switch {
	case prefix == current:
		return Token{}, false
	case strings.HasPrefix(prefix, current):
		l.indents = append(l.indents, prefix)
		return Token{Type: TokenIndent, Literal: prefix, Pos: pos}, true
	default:
		var count int
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] != prefix {
			l.indents = l.indents[:len(l.indents)-1]
			count++
		}
		if l.indents[len(l.indents)-1] != prefix {
			return Token{Type: TokenError, Literal: "inconsistent indentation", Pos: pos}, true
		}
		for i := 1; i < count; i++ {
			l.pending = append(l.pending, Token{Type: TokenDedent, Pos: pos})
		}
		return Token{Type: TokenDedent, Pos: pos}, true
	}
}

// finish emits the closing token run at end of input: a NEWLINE if the last
// line never got one, the outstanding DEDENTs, then EOF.
func (l *Lexer) finish(pos Position) Token {
	if !l.finished {
		l.finished = true
		for len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, Token{Type: TokenDedent, Pos: pos})
		}
		l.pending = append(l.pending, Token{Type: TokenEOF, Pos: pos})
		if l.needNewline {
			return Token{Type: TokenNewline, Literal: "", Pos: pos}
		}
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	return Token{Type: TokenEOF, Pos: pos}
}

// readString reads a single- or double-quoted string literal.
func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar()
	var b strings.Builder
	for {
		switch l.ch {
		case 0, '\n':
			return Token{Type: TokenError, Literal: "unterminated string", Pos: l.position()}
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteRune(l.ch)
			default:
				b.WriteByte('\\')
				b.WriteRune(l.ch)
			}
			l.readChar()
		case quote:
			l.readChar()
			return Token{Type: TokenString, Literal: b.String(), Pos: pos}
		default:
			b.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readNumber reads an integer or floating-point literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for unicode.IsDigit(l.ch) {
		l.readChar()
	}
	isFloat := false
	if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if unicode.IsDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for unicode.IsDigit(l.ch) {
				l.readChar()
			}
		}
	}
	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenInt, Literal: lit, Pos: pos}
}

// readName reads an identifier or keyword.
func (l *Lexer) readName(pos Position) Token {
	start := l.pos
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if typ, ok := keywords[lit]; ok {
		return Token{Type: typ, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenName, Literal: lit, Pos: pos}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// Tokenize returns all tokens for the input, ending with EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return toks
		}
	}
}
