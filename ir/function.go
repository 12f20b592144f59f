package ir

import (
	"fmt"
	"sort"
)

// Function is a derived grouping (uuid, entry_blocks, all_blocks, names)
// materialized from the functionEntries/functionBlocks/functionNames aux
// tables (spec.md §3). It is not stored directly; Functions() rebuilds
// the slice from the underlying tables each time it's called, mirroring
// gtirb_functions.Function in the original implementation.
type Function struct {
	UUID        UUID
	EntryBlocks map[*CodeBlock]struct{}
	AllBlocks   map[*CodeBlock]struct{}
	Names       map[*Symbol]struct{}
}

// GetAllBlocks returns the function's blocks grouped by byte interval
// (intervals ordered by UUID) and by ascending offset within each
// interval; see blockAddressKey. The patch driver iterates blocks in
// this order (spec.md §4.D, "iteration order: stable by block address").
func (f *Function) GetAllBlocks() []*CodeBlock {
	out := make([]*CodeBlock, 0, len(f.AllBlocks))
	for b := range f.AllBlocks {
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return blockAddressKey(out[i]) < blockAddressKey(out[j])
	})
	return out
}

// blockAddressKey orders blocks deterministically by (byte interval
// UUID, offset) when no real load address is assigned, which is always
// true for the in-memory IR this engine operates on — addresses are a
// property of a loaded, laid-out binary, not of the IR itself
// (spec.md Non-goals: "the engine only adjusts offsets, not addresses").
func blockAddressKey(b *CodeBlock) string {
	bi := ""
	if b.ByteInterval != nil {
		bi = b.ByteInterval.UUID().String()
	}
	return fmt.Sprintf("%s/%020d", bi, b.Offset)
}

// Functions rebuilds the derived Function list from the module's
// functionEntries/functionBlocks/functionNames aux tables.
func Functions(m *Module) []*Function {
	entries := FunctionEntries(m)
	blocks := FunctionBlocks(m)
	names := FunctionNames(m)

	out := make([]*Function, 0, len(entries))
	for uuid, entrySet := range entries {
		f := &Function{
			UUID:        uuid,
			EntryBlocks: entrySet,
			AllBlocks:   blocks[uuid],
			Names:       make(map[*Symbol]struct{}),
		}
		if sym, ok := names[uuid]; ok {
			f.Names[sym] = struct{}{}
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].UUID[:]) < string(out[j].UUID[:])
	})
	return out
}

// FunctionEntries is the functionEntries aux table: function UUID to
// its entry block set.
func FunctionEntries(m *Module) map[UUID]map[*CodeBlock]struct{} {
	return GetOrInsertAux(m, "functionEntries", func() map[UUID]map[*CodeBlock]struct{} {
		return make(map[UUID]map[*CodeBlock]struct{})
	})
}

// FunctionBlocks is the functionBlocks aux table: function UUID to the
// set of every block belonging to it.
func FunctionBlocks(m *Module) map[UUID]map[*CodeBlock]struct{} {
	return GetOrInsertAux(m, "functionBlocks", func() map[UUID]map[*CodeBlock]struct{} {
		return make(map[UUID]map[*CodeBlock]struct{})
	})
}

// FunctionNames is the functionNames aux table: function UUID to its
// name symbol.
func FunctionNames(m *Module) map[UUID]*Symbol {
	return GetOrInsertAux(m, "functionNames", func() map[UUID]*Symbol {
		return make(map[UUID]*Symbol)
	})
}

// LeafFunctions is the leafFunctions aux table (spec.md §9,
// "Leaf-function cache"): function UUID to 1/0, recording the
// *original* leaf status of each function so later patches that add
// call edges don't retroactively change what the ABI synthesizer sees.
func LeafFunctions(m *Module) map[UUID]uint8 {
	return GetOrInsertAux(m, "leafFunctions", func() map[UUID]uint8 {
		return make(map[UUID]uint8)
	})
}
