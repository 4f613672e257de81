package codegen

import (
	"fmt"

	"github.com/stencil-lang/stencil/compiler"
)

// UnsupportedError reports a dialect construct the code generator refuses to
// compile. These are hard failures, not silent omissions: a template using
// the construct cannot be built.
type UnsupportedError struct {
	Pos     compiler.Position
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported at %s: %s", e.Pos, e.Feature)
}

func unsupported(pos compiler.Position, format string, args ...any) *UnsupportedError {
	return &UnsupportedError{Pos: pos, Feature: fmt.Sprintf(format, args...)}
}

// structural reports a malformed program shape reaching the code generator.
func structural(pos compiler.Position, format string, args ...any) error {
	return &compiler.StructuralError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}
