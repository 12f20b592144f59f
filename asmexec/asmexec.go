// Package asmexec is the assembler collaborator the patch driver hands
// text to and gets IR fragments back from (spec.md §6,
// "assemble"/"finalize"). It never parses assembly itself; it only
// defines the boundary and two implementations of it.
package asmexec

import (
	"fmt"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/ir"
)

// SyntaxError is returned by Assemble when the assembler rejects a
// snippet, carrying enough position information for
// internal/diagnostics to render a caret under the offending column
// (mirroring mcasm.assembler.AsmSyntaxError in original_source).
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("asmexec: %d:%d: %s", e.Line, e.Column, e.Message)
}

// TextSectionResult is the instruction bytes an Assemble/Finalize
// session produced, plus the code blocks carved out of them (one per
// label boundary the assembled text introduced).
type TextSectionResult struct {
	Data   []byte
	Blocks []*ir.CodeBlock
}

// Result is everything Finalize hands back to the driver so it can
// splice the assembled text in as a mutate.Fragment (spec.md §6).
type Result struct {
	TextSection TextSectionResult
	Symbols     []*ir.Symbol
	CFG         *ir.CFG
	SymExprs    map[int64]ir.SymbolicExpression
	Proxies     []*ir.ProxyBlock
}

// Assembler accumulates assembly text across one or more Assemble
// calls (prologue, patch body, epilogue) and produces the resulting IR
// fragment on Finalize. An Assembler is single-use: construct a fresh
// one per patch invocation.
type Assembler interface {
	// Assemble appends text, assembled under the given syntax, to this
	// session. Returns a *SyntaxError if the assembler rejects it; an
	// implementation that only runs its assembler in Finalize (Exec)
	// returns the *SyntaxError from Finalize instead.
	Assemble(text string, syntax abi.Syntax) error

	// Finalize ends the session and returns the assembled result, or
	// an error (possibly a *SyntaxError). It must not be called more
	// than once.
	Finalize() (*Result, error)
}
