package scope

import "github.com/arc-language/rewriteir/ir"

// symbolNamed reports whether any symbol in names has the given text,
// the same "function identified by its name symbols, not a single
// canonical name" shape Function.Names uses throughout the IR.
func symbolNamed(names map[*ir.Symbol]struct{}, name string) bool {
	for sym := range names {
		if sym.Name == name {
			return true
		}
	}
	return false
}

// allFunctions matches every function in the module, at the entry
// offset of each of its entry blocks. It's the scope a whole-program
// instrumentation pass (e.g. a coverage probe at every function entry)
// registers against.
type allFunctions struct{}

// AllFunctions returns a scope matching every function's entry
// block(s), inserting at offset 0 of each.
func AllFunctions() Scope { return allFunctions{} }

func (allFunctions) FunctionMatches(*ir.Module, *ir.Function) bool { return true }

func (allFunctions) BlockMatches(_ *ir.Module, f *ir.Function, b *ir.CodeBlock) bool {
	_, isEntry := f.EntryBlocks[b]
	return isEntry
}

func (allFunctions) PotentialOffsets(*ir.Function, *ir.CodeBlock, []Instruction) OffsetSeq {
	return once(0)
}

func (allFunctions) ReplacementLength() int64 { return 0 }
func (allFunctions) NeedsDisassembly() bool   { return false }

// allBlocks matches every block of every function, inserting at each
// block's own start. This is the shape whole-program basic-block
// coverage instrumentation needs (one probe per block, not just per
// function), the same granularity cilium-coverbee's eBPF coverage
// rewriter operates at.
type allBlocks struct{}

// AllBlocks returns a scope matching every block of every function,
// inserting at offset 0 of each.
func AllBlocks() Scope { return allBlocks{} }

func (allBlocks) FunctionMatches(*ir.Module, *ir.Function) bool             { return true }
func (allBlocks) BlockMatches(*ir.Module, *ir.Function, *ir.CodeBlock) bool { return true }

func (allBlocks) PotentialOffsets(*ir.Function, *ir.CodeBlock, []Instruction) OffsetSeq {
	return once(0)
}

func (allBlocks) ReplacementLength() int64 { return 0 }
func (allBlocks) NeedsDisassembly() bool   { return false }

// functionEntry matches a single named function's entry block(s).
// Unlike AllFunctions it's selective, letting a patch target one
// routine (e.g. wrapping a specific syscall shim) without reaching for
// a SpecificLocation by raw offset.
type functionEntry struct {
	name string
}

// FunctionEntry returns a scope matching the entry block(s) of the
// function named name, inserting at offset 0.
func FunctionEntry(name string) Scope { return functionEntry{name: name} }

func (s functionEntry) FunctionMatches(_ *ir.Module, f *ir.Function) bool {
	return symbolNamed(f.Names, s.name)
}

func (functionEntry) BlockMatches(_ *ir.Module, f *ir.Function, b *ir.CodeBlock) bool {
	_, isEntry := f.EntryBlocks[b]
	return isEntry
}

func (functionEntry) PotentialOffsets(*ir.Function, *ir.CodeBlock, []Instruction) OffsetSeq {
	return once(0)
}

func (functionEntry) ReplacementLength() int64 { return 0 }
func (functionEntry) NeedsDisassembly() bool   { return false }

// specificLocation is the degenerate scope fixing one exact block and
// offset, the escape hatch spec.md §6 exposes directly through the
// driver's insert_at/replace_at rather than forcing every caller
// through a named constructor.
type specificLocation struct {
	function          *ir.Function
	block             *ir.CodeBlock
	offset            int64
	replacementLength int64
}

// SpecificLocation returns a scope matching exactly block at the given
// block-relative offset, replacing replacementLength bytes there (0 for
// a pure insertion). function may be nil when the caller has no
// Function handle for the block (e.g. a block outside any known
// function); in that case FunctionMatches always succeeds and only
// BlockMatches discriminates.
func SpecificLocation(function *ir.Function, block *ir.CodeBlock, offset, replacementLength int64) Scope {
	return specificLocation{function: function, block: block, offset: offset, replacementLength: replacementLength}
}

func (s specificLocation) FunctionMatches(_ *ir.Module, f *ir.Function) bool {
	if s.function == nil {
		return true
	}
	// ir.Functions rebuilds *ir.Function values on every call, so the
	// function is identified by UUID rather than by pointer.
	return f != nil && f.UUID == s.function.UUID
}

func (s specificLocation) BlockMatches(_ *ir.Module, _ *ir.Function, b *ir.CodeBlock) bool {
	return b == s.block
}

func (s specificLocation) PotentialOffsets(*ir.Function, *ir.CodeBlock, []Instruction) OffsetSeq {
	return once(s.offset)
}

func (s specificLocation) ReplacementLength() int64 { return s.replacementLength }
func (specificLocation) NeedsDisassembly() bool     { return false }
