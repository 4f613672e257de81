package compiler

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Transpiler: template source -> intermediate dialect
// ---------------------------------------------------------------------------

// A template is made of directive lines (a '#' as the first non-whitespace
// character), placeholders ('$'), and literal text. The transpiler turns
// each into a dialect statement: directives become control statements,
// placeholders become expression statements, and literal text becomes a bare
// string literal. The output is semantically empty; the normalizer and code
// generator give it meaning.
//
// Dispatch is by strategy: each strategy reports whether it accepts the
// current head of the input, and the first taker consumes a chunk. Directive
// and placeholder handling are super-strategies that delegate to
// sub-strategies of their own.

// Transpiled is the output of a template-to-dialect conversion.
type Transpiled struct {
	// Source is the generated dialect program.
	Source string
	// PosMap maps positions in the generated program back to template
	// positions, one entry per committed line.
	PosMap map[Position]Position
}

// Transpile converts template source into the intermediate dialect.
func Transpile(src string) (*Transpiled, error) {
	d := newDriver(src)
	out := newOutput(d)
	strategies := []strategy{
		&lineDirectiveStrategy{},
		&placeholderStrategy{},
		&literalTextStrategy{},
	}
	for !d.done {
		if d.head == "" {
			if err := d.extendHead(); err != nil {
				return nil, err
			}
			if d.done {
				break
			}
		}
		strat, err := acceptingStrategy(d, d.head, strategies)
		if err != nil {
			return nil, err
		}
		if err := strat.consume(out, d); err != nil {
			return nil, err
		}
	}
	if out.curIndent != 0 {
		return nil, lexErrorf(LexUnmatchedDirectives, d.pos.Offset,
			"%d block directive(s) left open", out.curIndent)
	}
	return &Transpiled{Source: out.result(), PosMap: out.posMap}, nil
}

type strategy interface {
	accepts(string) bool
	consume(out *output, d *driver) error
}

func acceptingStrategy(d *driver, head string, strategies []strategy) (strategy, error) {
	for _, s := range strategies {
		if s.accepts(head) {
			return s, nil
		}
	}
	return nil, lexErrorf(LexNoStrategy, d.pos.Offset, "%q", firstLine(head))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ---------------------------------------------------------------------------
// Input driver
// ---------------------------------------------------------------------------

var directiveRegex = regexp.MustCompile(`^[ \t]*#`)

// driver tracks the unconsumed head of the template and the template
// position it starts at.
type driver struct {
	lines []string // remaining input lines, newline terminators kept
	pos   Position // template position of the start of head
	head  string
	done  bool

	// inDirectiveMode makes extendHead require and strip the leading '#'
	// of continuation lines, so multi-line directives keep their prefix.
	inDirectiveMode bool

	// err records a failure raised inside an increasingPrefixes iteration.
	err error
}

func newDriver(src string) *driver {
	lines := strings.SplitAfter(src, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return &driver{lines: lines, pos: Position{Line: 1, Column: 1}}
}

// advancePast consumes a prefix of head and updates the template position.
func (d *driver) advancePast(s string) {
	if !strings.HasPrefix(d.head, s) {
		panic(fmt.Sprintf("advance past %q, head %q", s, firstLine(d.head)))
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			d.pos.Line++
			d.pos.Column = 1
		} else {
			d.pos.Column++
		}
	}
	d.pos.Offset += len(s)
	d.head = d.head[len(s):]
}

// extendHead appends the next input line to head. In directive mode the line
// must itself be a directive line, and its marker prefix is stripped.
func (d *driver) extendHead() error {
	if len(d.lines) == 0 {
		d.done = true
		return nil
	}
	line := d.lines[0]
	d.lines = d.lines[1:]
	if d.inDirectiveMode {
		m := directiveRegex.FindString(line)
		if m == "" {
			return lexErrorf(LexInvalidDirective, d.pos.Offset,
				"directive continued by non-directive line %q", firstLine(line))
		}
		line = line[len(m):]
	}
	d.head += line
	return nil
}

// increasingPrefixes yields ever-longer prefixes of head, each ending just
// after one of the given terminator bytes, extending head across lines as
// needed. This is what plucks syntactically valid fragments out of the
// template: the caller parses each prefix and stops at the first one that
// works. A failure while extending lands in d.err.
func (d *driver) increasingPrefixes(terminators string) iter.Seq[string] {
	return func(yield func(string) bool) {
		begin := 0
		for begin != len(d.head) {
			for i := begin; i < len(d.head); i++ {
				if strings.IndexByte(terminators, d.head[i]) >= 0 {
					if !yield(d.head[:i+1]) {
						return
					}
				}
			}
			begin = len(d.head)
			if err := d.extendHead(); err != nil {
				d.err = err
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Output buffer
// ---------------------------------------------------------------------------

// output accumulates the generated dialect program, tracks its indentation
// level, and records the position map.
type output struct {
	driver    *driver
	buf       strings.Builder
	pos       Position // position after the last committed line
	curIndent int
	posMap    map[Position]Position
}

func newOutput(d *driver) *output {
	return &output{
		driver: d,
		pos:    Position{Line: 1, Column: 1},
		posMap: map[Position]Position{},
	}
}

// commitLine cleanses a line onto one physical line, indents it, and appends
// it, recording where in the template it came from.
func (o *output) commitLine(line string) {
	committed := strings.Repeat("\t", o.curIndent) + cleanseWhitespace(line)
	for i := 0; i < len(committed); i++ {
		if committed[i] == '\n' {
			o.pos.Line++
			o.pos.Column = 1
		} else {
			o.pos.Column++
		}
	}
	o.pos.Offset += len(committed)
	o.buf.WriteString(committed)
	o.posMap[o.pos] = o.driver.pos
}

func (o *output) indent() {
	o.curIndent++
}

func (o *output) dedent() error {
	if o.curIndent == 0 {
		return lexErrorf(LexDedentTooFar, o.driver.pos.Offset, "")
	}
	o.curIndent--
	return nil
}

func (o *output) result() string {
	return o.buf.String()
}

// ---------------------------------------------------------------------------
// Literal text
// ---------------------------------------------------------------------------

// literalTextStrategy grabs a chunk of literal text, stopping at an
// unescaped '#' or at a '$' that starts a placeholder. It must be last in
// the strategy list: it accepts anything.
type literalTextStrategy struct{}

func (*literalTextStrategy) accepts(string) bool { return true }

func (*literalTextStrategy) consume(out *output, d *driver) error {
	var consumed strings.Builder
	for {
		idx := strings.IndexAny(d.head, "#\\$")
		if idx >= 0 {
			meta := d.head[idx]
			consumed.WriteString(d.head[:idx])

			var subsequent byte
			if idx+1 < len(d.head) {
				subsequent = d.head[idx+1]
			}
			d.advancePast(d.head[:idx])

			switch meta {
			case '\\':
				if subsequent == '#' || subsequent == '$' {
					// escaped metacharacter: \# means #, \$ means $
					d.advancePast(d.head[:2])
					consumed.WriteByte(subsequent)
				} else {
					d.advancePast(d.head[:1])
					consumed.WriteByte('\\')
				}
				continue
			case '#':
				// unescaped '#': hand off to directive mode
				out.commitLine(quoteString(consumed.String()) + "\n")
				return nil
			case '$':
				if isPlaceholderStart(subsequent) {
					out.commitLine(quoteString(consumed.String()) + "\n")
					return nil
				}
				// just a dollar, e.g. $100.00
				d.advancePast(d.head[:1])
				consumed.WriteByte('$')
				continue
			}
		}

		// No metacharacter: the rest of the line is literal.
		consumed.WriteString(d.head)
		d.advancePast(d.head)
		if err := d.extendHead(); err != nil {
			return err
		}
		if d.done {
			// Do not commit an empty trailing literal: a directive on the
			// last line would otherwise grow a spurious empty string.
			if consumed.Len() > 0 {
				out.commitLine(quoteString(consumed.String()) + "\n")
			}
			return nil
		}
	}
}

func isPlaceholderStart(c byte) bool {
	return c == '_' || c == '(' || c == '[' || c == '{' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ---------------------------------------------------------------------------
// Directives
// ---------------------------------------------------------------------------

// lineDirectiveStrategy handles lines whose first non-whitespace character
// is '#'. It strips the marker, enters directive mode so continuation lines
// keep their own markers, and delegates to a sub-strategy.
type lineDirectiveStrategy struct{}

var directiveSubStrategies = []strategy{
	&commentStrategy{},
	&blockStrategy{},
	&callStrategy{},
	&extendsStrategy{},
	&setStrategy{},
	&linewiseStrategy{},
	&endSuiteStrategy{},
}

func (*lineDirectiveStrategy) accepts(s string) bool {
	return directiveRegex.MatchString(s)
}

func (*lineDirectiveStrategy) consume(out *output, d *driver) error {
	d.inDirectiveMode = true
	defer func() { d.inDirectiveMode = false }()

	d.advancePast(directiveRegex.FindString(d.head))

	strat, err := acceptingStrategy(d, d.head, directiveSubStrategies)
	if err != nil {
		return &LexError{Kind: LexInvalidDirective, Offset: d.pos.Offset,
			Message: firstLine(d.head)}
	}
	return strat.consume(out, d)
}

// commentStrategy drops '##' comment lines.
type commentStrategy struct{}

func (*commentStrategy) accepts(s string) bool { return strings.HasPrefix(s, "#") }

func (*commentStrategy) consume(out *output, d *driver) error {
	d.advancePast(d.head)
	return nil
}

// BlockTagPrefix marks hoisted block methods in the dialect. A '#block foo'
// directive becomes 'def STENCIL_BLOCK__foo():' so the normalizer can
// recognize and rename it.
const BlockTagPrefix = "STENCIL_BLOCK__"

var identRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)

type blockStrategy struct{}

func (*blockStrategy) accepts(s string) bool { return strings.HasPrefix(s, "block ") }

func (*blockStrategy) consume(out *output, d *driver) error {
	rest := strings.TrimSuffix(d.head[len("block "):], "\n")
	name := strings.TrimSpace(rest)
	if identRegex.FindString(name) != name || name == "" {
		return lexErrorf(LexInvalidDirective, d.pos.Offset, "invalid block name %q", name)
	}
	out.commitLine(fmt.Sprintf("def %s%s():\n", BlockTagPrefix, name))
	out.indent()
	d.advancePast(d.head)
	return nil
}

// CallAlias is the binding name that marks a capture block: '#call x' becomes
// 'with x(...) as __call__', which the code generator lowers into a scoped
// capture around the call.
const CallAlias = "__call__"

// callStrategy converts '#call self.widget classname=$cls' into a with
// statement binding CallAlias.
type callStrategy struct{}

var callArgsMungePair = mkMungePair("foo(", ")", false)

func (*callStrategy) accepts(s string) bool { return strings.HasPrefix(s, "call ") }

func (*callStrategy) consume(out *output, d *driver) error {
	rest := strings.TrimSuffix(d.head[len("call "):], "\n")
	callName, args, _ := strings.Cut(rest, " ")
	sanitizedName, err := sanitizeMarkers(callName, identityMungePair)
	if err != nil {
		return err
	}
	sanitizedArgs, err := sanitizeMarkers(args, callArgsMungePair)
	if err != nil {
		return err
	}
	out.commitLine(fmt.Sprintf("with %s(%s) as %s:\n", sanitizedName, sanitizedArgs, CallAlias))
	out.indent()
	d.advancePast(d.head)
	return nil
}

// ExtendsAlias is the import alias that marks a superclass declaration:
// '#extends base' becomes 'import base as __extends__'.
const ExtendsAlias = "__extends__"

type extendsStrategy struct{}

func (*extendsStrategy) accepts(s string) bool { return strings.HasPrefix(s, "extends ") }

func (*extendsStrategy) consume(out *output, d *driver) error {
	name := strings.TrimSuffix(d.head[len("extends "):], "\n")
	out.commitLine(fmt.Sprintf("import %s as %s\n", name, ExtendsAlias))
	d.advancePast(d.head)
	return nil
}

// setStrategy converts '#set $x = $y' into an assignment statement.
type setStrategy struct{}

func (*setStrategy) accepts(s string) bool { return strings.HasPrefix(s, "set ") }

func (*setStrategy) consume(out *output, d *driver) error {
	rest := strings.TrimSuffix(d.head[len("set "):], "\n")
	if strings.HasPrefix(rest, "global ") {
		return lexErrorf(LexInvalidDirective, d.pos.Offset, "set global is unsupported")
	}
	lvalue, rvalue, _ := strings.Cut(rest, "=")
	left, err := sanitizeMarkers(strings.TrimSpace(lvalue), identityMungePair)
	if err != nil {
		return err
	}
	right, err := sanitizeMarkers(strings.TrimSpace(rvalue), identityMungePair)
	if err != nil {
		return err
	}
	out.commitLine(fmt.Sprintf("%s = %s\n", left, right))
	d.advancePast(d.head)
	return nil
}

// linewiseStrategy handles directives that are statements of the dialect
// itself (if, for, def, import, return, ...). It probes increasing prefixes
// of the input, munged into a parseable context, until one parses; the
// continuation keywords dedent first so they rejoin their opening clause.
type linewiseStrategy struct{}

func (*linewiseStrategy) accepts(s string) bool {
	_, ok := mungeMap[mungeKey(s)]
	return ok
}

func (*linewiseStrategy) consume(out *output, d *driver) error {
	kwd := mungeKey(d.head)
	pair := mungeMap[kwd]

	switch kwd {
	case "else", "elif", "except", "finally":
		if err := out.dedent(); err != nil {
			return err
		}
	}

	var prefix string
	for candidate := range d.increasingPrefixes("#\n") {
		prefix = candidate
		if _, err := Parse(idempotentDeMarker(pair.munge(candidate))); err == nil {
			break
		}
	}
	if d.err != nil {
		return d.err
	}
	if prefix == "" {
		return lexErrorf(LexInvalidDirective, d.pos.Offset, "unterminated directive")
	}

	line, err := sanitizeMarkers(prefix, pair)
	if err != nil {
		return err
	}
	out.commitLine(line)
	if !simpleStmts[kwd] {
		out.indent()
	}
	d.advancePast(prefix)
	return nil
}

// endSuiteStrategy closes a block: consume through the end of the line and
// dedent.
type endSuiteStrategy struct{}

func (*endSuiteStrategy) accepts(s string) bool { return strings.HasPrefix(s, "end") }

func (*endSuiteStrategy) consume(out *output, d *driver) error {
	for prefix := range d.increasingPrefixes("#\n") {
		d.advancePast(prefix)
		return out.dedent()
	}
	if d.err != nil {
		return d.err
	}
	// end directive at EOF without a trailing newline
	d.advancePast(d.head)
	return out.dedent()
}

// ---------------------------------------------------------------------------
// Placeholders
// ---------------------------------------------------------------------------

// placeholderStrategy handles '$' placeholders ('$$' escapes stay literal).
type placeholderStrategy struct{}

var placeholderSubStrategies = []strategy{
	&bracketPlaceholderStrategy{},
	&barePlaceholderStrategy{},
}

func (*placeholderStrategy) accepts(s string) bool {
	return len(s) >= 2 && s[0] == '$' && s[1] != '$'
}

func (*placeholderStrategy) consume(out *output, d *driver) error {
	d.advancePast("$")
	strat, err := acceptingStrategy(d, d.head, placeholderSubStrategies)
	if err != nil {
		return lexErrorf(LexNotMarker, d.pos.Offset, "%q", firstLine(d.head))
	}
	return strat.consume(out, d)
}

var matchingDelims = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// bracketPlaceholderStrategy handles $(foo), $[foo] and ${foo}: strip the
// opening delimiter and probe for a fragment whose only error is the
// matching closing delimiter.
type bracketPlaceholderStrategy struct{}

func (*bracketPlaceholderStrategy) accepts(s string) bool {
	_, ok := matchingDelims[s[0]]
	return ok
}

func (*bracketPlaceholderStrategy) consume(out *output, d *driver) error {
	end := matchingDelims[d.head[0]]

	var prefix string
	found := false
	for candidate := range d.increasingPrefixes(string(end)) {
		prefix = candidate
		if verifiedSynErrIdx(idempotentDeMarker(candidate[1:]), end) >= 0 {
			found = true
			break
		}
	}
	if d.err != nil {
		return d.err
	}
	if !found {
		return lexErrorf(LexNotMarker, d.pos.Offset, "unterminated placeholder")
	}

	inner, err := sanitizeMarkers(prefix[1:len(prefix)-1], identityMungePair)
	if err != nil {
		return err
	}
	out.commitLine(inner + "\n")
	d.advancePast(prefix)
	return nil
}

var dottedAttrRegex = regexp.MustCompile(`^\.[a-zA-Z_][a-zA-Z0-9_]*`)

// barePlaceholderStrategy handles $foo.bar['baz'](quz): an identifier
// followed by any run of attribute lookups, subscripts, and calls.
type barePlaceholderStrategy struct{}

func (*barePlaceholderStrategy) accepts(s string) bool {
	return identRegex.MatchString(s)
}

func (*barePlaceholderStrategy) consume(out *output, d *driver) error {
	ident := identRegex.FindString(d.head)
	consumed := ident
	d.advancePast(ident)

	const dummy = "foo"

trailers:
	for {
		if m := dottedAttrRegex.FindString(d.head); m != "" {
			consumed += m
			d.advancePast(m)
			continue
		}
		if len(d.head) > 0 && (d.head[0] == '[' || d.head[0] == '(') {
			for prefix := range d.increasingPrefixes(string(matchingDelims[d.head[0]])) {
				// dummy+prefix is valid exactly when the bracketed trailer
				// is a complete subscript or argument list
				if synErrIdx(idempotentDeMarker(dummy+prefix)) == -1 {
					consumed += prefix
					d.advancePast(prefix)
					continue trailers
				}
			}
			if d.err != nil {
				return d.err
			}
			break
		}
		break
	}

	line, err := sanitizeMarkers(consumed, identityMungePair)
	if err != nil {
		return err
	}
	out.commitLine(line + "\n")
	return nil
}
