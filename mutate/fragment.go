package mutate

import "github.com/arc-language/rewriteir/ir"

// Fragment is the output of assembling a patch's replacement code: a
// byte string plus the structure an assembler front-end derives from it
// (spec.md §3, "fragment"). Block offsets are fragment-relative (0 is
// the first byte of Bytes) until Splice translates them into a byte
// interval's address space.
type Fragment struct {
	Bytes []byte

	// Blocks is the fragment's code blocks in layout order. Blocks[0]
	// must have Size > 0; every other block may be size 0 only if it is
	// the last one (spec.md §4.B preconditions).
	Blocks []*ir.CodeBlock

	// CFG holds edges among Blocks (and from Blocks to proxies/other
	// module nodes the assembler resolved, e.g. a call to an existing
	// function symbol). The last block in Blocks must have no outgoing
	// edges here; Splice derives its successors from the spliced-over
	// block's own original outgoing edges instead.
	CFG *ir.CFG

	// SymExprs maps a fragment-relative displacement to the symbolic
	// expression an assembler placed there (e.g. a call instruction's
	// operand referencing an extern symbol).
	SymExprs map[int64]ir.SymbolicExpression

	// Symbols is any new symbol the assembler's input defined inside
	// the fragment (e.g. a local label used as a jump target).
	Symbols []*ir.Symbol
}
