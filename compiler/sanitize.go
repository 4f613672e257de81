package compiler

import "strings"

// ---------------------------------------------------------------------------
// Marker sanitizing and clause-header munging
// ---------------------------------------------------------------------------

// The transpiler probes template text by repeatedly parsing candidate
// fragments. A fragment is often a bare clause header ("for x in xs") that
// only parses in a larger context, so each keyword carries a munge pair: a
// function that wraps the fragment in a minimal valid context and its
// inverse. Placeholder dollars are handled two ways: sanitizeMarkers deletes
// them outright, steering on parser error offsets, while idempotentDeMarker
// substitutes them so that validity can be probed without moving any byte
// positions.

type mungePair struct {
	munge   func(string) string
	unmunge func(string) string
}

var identityMungePair = mungePair{
	munge:   func(s string) string { return s },
	unmunge: func(s string) string { return s },
}

// mkMungePair builds a munge pair for the given affixes. Compound pairs also
// reinstate the ':' that template clause headers omit: the trailing
// terminator byte of the fragment is replaced with ":\n" before the suffix.
func mkMungePair(prefix, suffix string, compound bool) mungePair {
	if compound {
		return mungePair{
			munge: func(s string) string {
				if len(s) > 0 {
					s = s[:len(s)-1]
				}
				return prefix + s + ":\n" + suffix
			},
			unmunge: func(s string) string { return s[len(prefix) : len(s)-len(suffix)] },
		}
	}
	return mungePair{
		munge:   func(s string) string { return prefix + s + suffix },
		unmunge: func(s string) string { return s[len(prefix) : len(s)-len(suffix)] },
	}
}

var mungeMap = map[string]mungePair{}

// simpleStmts are the munge keys whose statements carry no indented suite.
var simpleStmts = map[string]bool{}

func init() {
	suite := mkMungePair("", "\tpass", true)
	for _, kwd := range []string{"if", "for", "with", "while", "def", "class"} {
		mungeMap[kwd] = suite
	}
	mungeMap["try"] = mkMungePair("", "\tpass\nexcept:\n\tpass", true)

	handler := mkMungePair("try:\n\tpass\n", "\tpass", true)
	mungeMap["except"] = handler
	mungeMap["finally"] = handler

	branch := mkMungePair("if True:\n\tpass\n", "\tpass", true)
	mungeMap["else"] = branch
	mungeMap["elif"] = branch

	for _, kwd := range []string{"assert", "pass", "del", "return", "yield",
		"raise", "break", "continue", "import", "from", "global"} {
		mungeMap[kwd] = identityMungePair
		simpleStmts[kwd] = true
	}

	// Decorators are treated as simple statements: they need a def after
	// them to parse, but commit without opening a suite of their own.
	mungeMap["@"] = mkMungePair("", "def foo():\n\tpass", false)
	simpleStmts["@"] = true
}

// mungeKey extracts the leading keyword (or "@") of a directive body. It
// always succeeds; an empty key matches nothing in mungeMap.
func mungeKey(s string) string {
	if strings.HasPrefix(s, "@") {
		return "@"
	}
	i := 0
	for i < len(s) && (s[i] >= 'a' && s[i] <= 'z' || s[i] >= 'A' && s[i] <= 'Z') {
		i++
	}
	return s[:i]
}

// sanitizeMarkers removes placeholder dollars from otherwise valid dialect
// source. It repeatedly parses the munged string and deletes the dollar the
// parser stopped on; an error on any other byte means the fragment was not a
// placeholder problem at all, and is reported as such.
func sanitizeMarkers(s string, pair mungePair) (string, error) {
	munged := pair.munge(s)
	for {
		_, err := Parse(munged)
		if err == nil {
			break
		}
		off := err.(*SyntaxError).Pos.Offset
		if off >= len(munged) || munged[off] != '$' {
			return "", lexErrorf(LexNotMarker, off, "%s", err.Error())
		}
		munged = munged[:off] + munged[off+1:]
	}
	return pair.unmunge(munged), nil
}

// idempotentDeMarker replaces placeholder dollars with underscores: the
// result is valid iff sanitizing would make it valid, but byte positions are
// unchanged, so parser error offsets remain meaningful.
func idempotentDeMarker(s string) string {
	return strings.ReplaceAll(s, "$", "_")
}

// synErrIdx returns the byte offset of the first syntax error in s, or -1.
func synErrIdx(s string) int {
	_, err := Parse(s)
	if err == nil {
		return -1
	}
	return err.(*SyntaxError).Pos.Offset
}

// verifiedSynErrIdx returns the offset of the first syntax error in s if
// that error falls exactly on verify and everything before it is valid on
// its own; otherwise -1.
func verifiedSynErrIdx(s string, verify byte) int {
	idx := synErrIdx(s)
	if idx >= 0 && idx < len(s) && s[idx] == verify && synErrIdx(s[:idx]) == -1 {
		return idx
	}
	return -1
}

// quoteString renders s as a double-quoted dialect string literal on a
// single line.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// cleanseWhitespace retokenizes a committed line and rejoins the tokens with
// single spaces, so every commit is exactly one physical line regardless of
// how the template spread it out. String literals are requoted onto one
// line.
func cleanseWhitespace(line string) string {
	toks := Tokenize(line)
	var parts []string
	for _, tok := range toks {
		switch tok.Type {
		case TokenEOF, TokenNewline, TokenIndent, TokenDedent:
			continue
		case TokenString:
			parts = append(parts, quoteString(tok.Literal))
		case TokenError:
			// Committed lines are sanitized before they get here; pass the
			// raw byte through and let the parser report it later.
			parts = append(parts, tok.Literal)
		default:
			if tok.Literal != "" {
				parts = append(parts, tok.Literal)
			} else {
				parts = append(parts, tok.Type.String())
			}
		}
	}
	return strings.Join(parts, " ") + "\n"
}
