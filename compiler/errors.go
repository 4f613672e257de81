package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// SyntaxError reports the first point at which a program fails to parse.
// The transpiler's strategy dispatch steers on Pos.Offset, so the position
// must identify the exact offending byte.
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Message)
}

// syntaxErrorf builds a positioned syntax error.
func syntaxErrorf(pos Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// LexErrorKind classifies template-level lexing failures.
type LexErrorKind int

const (
	// LexNoStrategy: no strategy accepted the input at the current head.
	LexNoStrategy LexErrorKind = iota
	// LexInvalidDirective: a directive line failed every directive strategy.
	LexInvalidDirective
	// LexNotMarker: a dollar sign was not followed by a resolvable expression.
	LexNotMarker
	// LexUnmatchedDirectives: block directives left open or over-closed at
	// end of input.
	LexUnmatchedDirectives
	// LexDedentTooFar: an #end directive closed more blocks than were open.
	LexDedentTooFar
)

var lexErrorNames = map[LexErrorKind]string{
	LexNoStrategy:          "no applicable strategy",
	LexInvalidDirective:    "invalid directive",
	LexNotMarker:           "not a placeholder",
	LexUnmatchedDirectives: "unmatched directives",
	LexDedentTooFar:        "end directive without open block",
}

func (k LexErrorKind) String() string {
	if s, ok := lexErrorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("lex error(%d)", int(k))
}

// LexError reports a template-level failure with the template offset at
// which it occurred.
type LexError struct {
	Kind    LexErrorKind
	Offset  int // byte offset into the template source
	Message string
}

func (e *LexError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
}

func lexErrorf(kind LexErrorKind, offset int, format string, args ...any) *LexError {
	return &LexError{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
