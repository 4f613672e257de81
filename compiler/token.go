package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Tokens for the intermediate dialect
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline
	TokenIndent
	TokenDedent

	// Literals
	TokenInt    // 42
	TokenFloat  // 3.14, 1.5e10
	TokenString // "hello", 'hello'
	TokenName   // foo, Bar

	// Keywords
	TokenIf
	TokenElif
	TokenElse
	TokenFor
	TokenWhile
	TokenDef
	TokenClass
	TokenTry
	TokenExcept
	TokenFinally
	TokenImport
	TokenFrom
	TokenAs
	TokenIn
	TokenIs
	TokenNot
	TokenAnd
	TokenOr
	TokenPass
	TokenReturn
	TokenDel
	TokenAssert
	TokenGlobal
	TokenYield
	TokenRaise
	TokenBreak
	TokenContinue
	TokenWith
	TokenNone
	TokenTrue
	TokenFalse

	// Operators and delimiters
	TokenPlus     // +
	TokenMinus    // -
	TokenStar     // *
	TokenSlash    // /
	TokenDSlash   // //
	TokenPercent  // %
	TokenAssign   // =
	TokenEq       // ==
	TokenNe       // !=
	TokenLt       // <
	TokenLe       // <=
	TokenGt       // >
	TokenGe       // >=
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenComma    // ,
	TokenColon    // :
	TokenDot      // .
	TokenAt       // @
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenError:    "ERROR",
	TokenNewline:  "NEWLINE",
	TokenIndent:   "INDENT",
	TokenDedent:   "DEDENT",
	TokenInt:      "INT",
	TokenFloat:    "FLOAT",
	TokenString:   "STRING",
	TokenName:     "NAME",
	TokenIf:       "if",
	TokenElif:     "elif",
	TokenElse:     "else",
	TokenFor:      "for",
	TokenWhile:    "while",
	TokenDef:      "def",
	TokenClass:    "class",
	TokenTry:      "try",
	TokenExcept:   "except",
	TokenFinally:  "finally",
	TokenImport:   "import",
	TokenFrom:     "from",
	TokenAs:       "as",
	TokenIn:       "in",
	TokenIs:       "is",
	TokenNot:      "not",
	TokenAnd:      "and",
	TokenOr:       "or",
	TokenPass:     "pass",
	TokenReturn:   "return",
	TokenDel:      "del",
	TokenAssert:   "assert",
	TokenGlobal:   "global",
	TokenYield:    "yield",
	TokenRaise:    "raise",
	TokenBreak:    "break",
	TokenContinue: "continue",
	TokenWith:     "with",
	TokenNone:     "None",
	TokenTrue:     "True",
	TokenFalse:    "False",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenDSlash:   "//",
	TokenPercent:  "%",
	TokenAssign:   "=",
	TokenEq:       "==",
	TokenNe:       "!=",
	TokenLt:       "<",
	TokenLe:       "<=",
	TokenGt:       ">",
	TokenGe:       ">=",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenComma:    ",",
	TokenColon:    ":",
	TokenDot:      ".",
	TokenAt:       "@",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var keywords = map[string]TokenType{
	"if":       TokenIf,
	"elif":     TokenElif,
	"else":     TokenElse,
	"for":      TokenFor,
	"while":    TokenWhile,
	"def":      TokenDef,
	"class":    TokenClass,
	"try":      TokenTry,
	"except":   TokenExcept,
	"finally":  TokenFinally,
	"import":   TokenImport,
	"from":     TokenFrom,
	"as":       TokenAs,
	"in":       TokenIn,
	"is":       TokenIs,
	"not":      TokenNot,
	"and":      TokenAnd,
	"or":       TokenOr,
	"pass":     TokenPass,
	"return":   TokenReturn,
	"del":      TokenDel,
	"assert":   TokenAssert,
	"global":   TokenGlobal,
	"yield":    TokenYield,
	"raise":    TokenRaise,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"with":     TokenWith,
	"None":     TokenNone,
	"True":     TokenTrue,
	"False":    TokenFalse,
}

// Token is a lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
