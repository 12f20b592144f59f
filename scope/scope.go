// Package scope implements the capability-set DSL a patch's placement
// is resolved against: "where" an insertion lands is always expressed
// as a Scope, never as a raw offset, so the same patch can be reused
// against an arbitrary binary (spec.md §3, "Scope"; §6, "Scope
// (consumed)").
package scope

import "github.com/arc-language/rewriteir/ir"

// Instruction is the minimal per-instruction view of a block: an offset
// and length relative to the block being matched. The patch driver has
// no instruction decoder and never builds one; it passes nil
// instructions to every scope, including scopes whose NeedsDisassembly
// reports true.
type Instruction struct {
	Offset int64
	Length int64
}

// Scope abstracts where a patch should be inserted, resolvable against
// a function/block pair (spec.md GLOSSARY).
type Scope interface {
	// FunctionMatches reports whether f is a candidate for this scope
	// at all.
	FunctionMatches(m *ir.Module, f *ir.Function) bool

	// BlockMatches reports whether b, a block of f, is a candidate.
	// Only called when FunctionMatches(m, f) is true.
	BlockMatches(m *ir.Module, f *ir.Function, b *ir.CodeBlock) bool

	// PotentialOffsets returns the block-relative offsets this scope
	// would accept, in preference order. insns is the block's decoded
	// instructions when the caller has them; patch.Driver always passes
	// nil. The driver takes the first
	// value (spec.md §4.D: "first-offset is authoritative").
	PotentialOffsets(f *ir.Function, b *ir.CodeBlock, insns []Instruction) OffsetSeq

	// ReplacementLength is the number of bytes this scope's insertion
	// replaces at the chosen offset; 0 for a pure insertion.
	ReplacementLength() int64

	// NeedsDisassembly reports whether the driver must decode the
	// block's instructions before calling PotentialOffsets.
	NeedsDisassembly() bool
}

// OffsetSeq is a pull-style lazy sequence of candidate offsets: each
// call returns the next offset and whether one was available. A scope
// with a single fixed offset returns a sequence that yields once.
type OffsetSeq func() (int64, bool)

// once returns an OffsetSeq yielding exactly the given offset, then
// exhausting.
func once(offset int64) OffsetSeq {
	done := false
	return func() (int64, bool) {
		if done {
			return 0, false
		}
		done = true
		return offset, true
	}
}

// First drains seq down to its first value, the only thing the driver
// actually consumes (spec.md §4.D).
func First(seq OffsetSeq) (int64, bool) {
	if seq == nil {
		return 0, false
	}
	return seq()
}
