// Package abi synthesizes the prologue/epilogue machine code a patch
// needs around its own body: saving and restoring whatever registers
// and flags it clobbers, aligning the stack when asked, and handing
// back a disjoint set of scratch registers the patch text may use
// freely (spec.md §4.C).
package abi

import "github.com/arc-language/rewriteir/ir"

// Constraints is a patch's declared needs, unpacked from its
// `constraints` record (spec.md §3, Patch).
type Constraints struct {
	// ScratchCount is the number of general-purpose scratch registers
	// the patch body wants allocated and saved/restored around it.
	ScratchCount int

	// ClobbersRegisters are registers the patch body writes to
	// directly (by name, ABI-specific) that must be saved/restored
	// even though they aren't scratch allocations.
	ClobbersRegisters []string

	// ClobbersFlags requests the flags register be saved/restored
	// around the body.
	ClobbersFlags bool

	// AlignStack requests the synthesizer emit stack-pointer alignment
	// in the prologue and the matching unalignment in the epilogue.
	AlignStack bool

	// PreserveCallerSavedRegisters requests the ABI's entire
	// caller-saved register set be saved/restored, not just
	// ClobbersRegisters and the scratch allocation.
	PreserveCallerSavedRegisters bool

	// PreserveOperands are registers the patch's own assembly
	// references as operands (not clobbers): they must not be handed
	// out as scratch, but they are the caller's responsibility to
	// save, not the synthesizer's.
	PreserveOperands []string

	// X86Syntax selects AT&T or Intel mnemonics for emitted snippets
	// on amd64/ia32 targets; ignored on other ISAs.
	X86Syntax Syntax
}

// Syntax selects assembler dialect for emitted snippets.
type Syntax int

const (
	SyntaxATT Syntax = iota
	SyntaxIntel
)

// Empty reports whether c has every field at its zero value, the
// requirement the patch driver enforces on function-insertion patches
// (spec.md §4.D step 3: "Function patches are required to have empty
// constraints... violating this is a programmer error").
func (c Constraints) Empty() bool {
	return c.ScratchCount == 0 &&
		len(c.ClobbersRegisters) == 0 &&
		!c.ClobbersFlags &&
		!c.AlignStack &&
		!c.PreserveCallerSavedRegisters &&
		len(c.PreserveOperands) == 0
}

// Synthesis is the ABI's answer for one insertion: the assembly
// snippets to place before and after the patch body, the registers
// chosen as scratch (passed to the patch's get_asm as *scratch_regs),
// and the net stack-pointer displacement in effect inside the body.
type Synthesis struct {
	Prologue         []string
	Epilogue         []string
	ScratchRegisters []string
	StackAdjustment  int64
}

// ABI synthesizes prologues/epilogues for one target instruction set
// and answers target-triple queries for object emission.
type ABI interface {
	// Name identifies the ABI, e.g. "sysv-amd64".
	Name() string

	// Synthesize produces a Synthesis for one insertion. isLeaf
	// reflects the enclosing function's *original* leaf status
	// (ir.LeafFunctions), not whatever the patch itself might add.
	Synthesize(c Constraints, isLeaf bool) (*Synthesis, error)

	// TargetTriple returns the `{arch}-pc-{os}` triple for the given
	// module, or UnsupportedISA/UnsupportedFileFormat if the
	// combination has no defined triple (spec.md §6, "Platform
	// conventions").
	TargetTriple(m *ir.Module) (string, error)
}

// For returns the ABI implementation for isa, or nil if none is
// defined.
func For(isa ir.ISA) ABI {
	switch isa {
	case ir.ISAX64:
		return AMD64
	default:
		return nil
	}
}
