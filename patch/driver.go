package patch

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/asmexec"
	"github.com/arc-language/rewriteir/internal/diagnostics"
	"github.com/arc-language/rewriteir/ir"
	"github.com/arc-language/rewriteir/mutate"
	"github.com/arc-language/rewriteir/scope"
)

type insertion struct {
	scope scope.Scope
	patch Patch
}

type functionInsertion struct {
	symbol *ir.Symbol
	block  *ir.CodeBlock
	patch  Patch
}

// Driver manages insertions and modifications on a single module,
// resolving each registered scope to a concrete position and applying
// its patch (spec.md §4.D). It corresponds to
// original_source/gtirb_rewriting/rewriting.py's RewritingContext.
type Driver struct {
	Module    *ir.Module
	Functions []*ir.Function

	// NewAssembler constructs a fresh Assembler for each patch
	// invocation; a Driver never reuses one across invocations.
	NewAssembler func() asmexec.Assembler

	// Log receives diagnostic output (nil disables logging, spec.md
	// §4.F).
	Log io.Writer

	// Verbose additionally spew-dumps a failing patch's constraints to
	// Log.
	Verbose bool

	abi           abi.ABI
	insertions    []insertion
	funcInserts   []functionInsertion
	patchID       int
	leafFunctions map[ir.UUID]uint8
	symbolsByName map[string]*ir.Symbol

	// functionOf records the function UUID a freshly inserted function
	// stub belongs to, so applyFunctionInsertion can build a
	// throwaway *ir.Function for InsertionContext purposes.
	functionOf map[*ir.CodeBlock]ir.UUID
}

// NewDriver constructs a Driver for module, computing and caching its
// leaf-function table (spec.md §9, "Leaf-function cache").
func NewDriver(module *ir.Module, functions []*ir.Function, newAssembler func() asmexec.Assembler, log io.Writer) *Driver {
	d := &Driver{
		Module:       module,
		Functions:    functions,
		NewAssembler: newAssembler,
		Log:          log,
		abi:          abi.For(module.ISA),
		functionOf:   make(map[*ir.CodeBlock]ir.UUID),
	}
	d.leafFunctions = d.updateLeafFunctions()
	return d
}

// mightBeLeafFunction reports whether f's current CFG has no outgoing
// Call edges. Must only be consulted before Apply runs, since a patch
// may add calls partway through (spec.md §9).
func (d *Driver) mightBeLeafFunction(f *ir.Function) bool {
	for b := range f.AllBlocks {
		for _, e := range d.Module.CFG.OutEdges(b) {
			if e.Label == ir.Call {
				return false
			}
		}
	}
	return true
}

func (d *Driver) updateLeafFunctions() map[ir.UUID]uint8 {
	table := ir.LeafFunctions(d.Module)
	for _, f := range d.Functions {
		if _, ok := table[f.UUID]; !ok {
			if d.mightBeLeafFunction(f) {
				table[f.UUID] = 1
			} else {
				table[f.UUID] = 0
			}
		}
	}
	return table
}

func (d *Driver) isLeaf(funcUUID ir.UUID) bool {
	v, ok := d.leafFunctions[funcUUID]
	return !ok || v != 0 // default to leaf=true when unrecorded, matching original_source's get(uuid, 1)
}

// RegisterInsert registers patch to be applied wherever scope resolves.
func (d *Driver) RegisterInsert(s scope.Scope, p Patch) {
	d.insertions = append(d.insertions, insertion{scope: s, patch: p})
}

// RegisterInsertFunction registers patch to be materialized as a new
// function named name, returning its symbol immediately (the function
// body isn't assembled until Apply runs).
func (d *Driver) RegisterInsertFunction(name string, p Patch) *ir.Symbol {
	block := ir.NewCodeBlock(0, 0)
	sym := ir.NewSymbol(name, block)
	d.Module.AddSymbol(sym)
	d.funcInserts = append(d.funcInserts, functionInsertion{symbol: sym, block: block, patch: p})
	return sym
}

// InsertAt registers a pure insertion at an exact location, bypassing
// scope resolution entirely (spec.md §6).
func (d *Driver) InsertAt(function *ir.Function, block *ir.CodeBlock, offset int64, p Patch) error {
	if err := validateOffsetAndLength(block, offset, 0); err != nil {
		return err
	}
	d.RegisterInsert(scope.SpecificLocation(function, block, offset, 0), p)
	return nil
}

// ReplaceAt registers a replacement of length bytes at an exact
// location, bypassing scope resolution entirely.
func (d *Driver) ReplaceAt(function *ir.Function, block *ir.CodeBlock, offset, length int64, p Patch) error {
	if err := validateOffsetAndLength(block, offset, length); err != nil {
		return err
	}
	d.RegisterInsert(scope.SpecificLocation(function, block, offset, length), p)
	return nil
}

func validateOffsetAndLength(block *ir.CodeBlock, offset, length int64) error {
	if offset < 0 || offset > block.Size {
		return fmt.Errorf("patch: offset %d out of [0, %d]", offset, block.Size)
	}
	if length < 0 || offset+length > block.Size {
		return fmt.Errorf("patch: length %d at offset %d exceeds block size %d", length, offset, block.Size)
	}
	return nil
}

// GetOrInsertExternSymbol returns a symbol named name, creating it as
// an extern (proxy-referent) symbol backed by libname if it isn't
// already present, and recording the platform-specific import metadata
// the module's file format expects (spec.md §4.E). name is used exactly
// as given on every platform: no PLT marker or other decoration is
// applied.
func (d *Driver) GetOrInsertExternSymbol(name, libname string, preload bool, libpath string) *ir.Symbol {
	if sym := d.Module.FindSymbol(name); sym != nil {
		return sym
	}

	proxy := ir.NewProxyBlock()
	sym := ir.NewSymbol(name, proxy)
	d.Module.AddSymbol(sym)
	d.Module.AddProxy(proxy)

	switch d.Module.FileFormat {
	case ir.FormatPE:
		ir.SymbolForwarding(d.Module)[sym] = sym
		ir.AppendPeImportedSymbol(d.Module, sym)
		ir.AppendPeImportEntry(d.Module, ir.PeImportEntry{Ordinal: 0, Hint: -1, ImportedName: name, LibraryName: libname})
	case ir.FormatELF:
		ir.ElfSymbolInfoTable(d.Module)[sym] = ir.ElfSymbolInfo{
			Size: 0, Type: "FUNC", Binding: "GLOBAL", Visibility: "DEFAULT", SectionIdx: 0,
		}
	}

	if preload {
		ir.PrependLibrary(d.Module, libname)
	} else {
		ir.AppendLibrary(d.Module, libname)
	}
	if libpath != "" {
		libpath = filepath.Clean(libpath)
		if preload {
			ir.PrependLibraryPath(d.Module, libpath)
		} else {
			ir.AppendLibraryPath(d.Module, libpath)
		}
	}
	return sym
}

// invokePatch synthesizes the ABI prologue/epilogue around p, assembles
// the whole thing, and splices the result into block at offset,
// returning the block the edit landed in and the number of bytes
// inserted (spec.md §4.D, "Per-insertion application"). A *SyntaxError
// returned by Assemble for the patch body is logged to Log before it is
// returned; an error from Finalize is returned without logging.
func (d *Driver) invokePatch(
	f *ir.Function, block *ir.CodeBlock, offset, replacementLength int64, p Patch, ctx InsertionContext,
) (*ir.CodeBlock, int64, error) {
	constraints := p.Constraints()
	synth, err := d.abi.Synthesize(constraints, d.isLeaf(f.UUID))
	if err != nil {
		return nil, 0, err
	}

	asmText := p.GetAsm(ctx.WithStackAdjustment(synth.StackAdjustment), synth.ScratchRegisters...)
	if asmText == "" {
		return block, 0, nil
	}
	d.patchID++

	assembler := d.NewAssembler()
	for _, snippet := range synth.Prologue {
		if err := assembler.Assemble(snippet, constraints.X86Syntax); err != nil {
			return nil, 0, err
		}
	}
	if err := assembler.Assemble(asmText, constraints.X86Syntax); err != nil {
		if se, ok := err.(*asmexec.SyntaxError); ok {
			diagnostics.LogPatchSyntaxError(d.Log, fmt.Sprintf("%T", p), d.patchID, se.Line, se.Column, se.Message, asmText)
			diagnostics.DumpConstraints(d.Log, d.Verbose, constraints)
		}
		return nil, 0, err
	}
	for _, snippet := range synth.Epilogue {
		if err := assembler.Assemble(snippet, constraints.X86Syntax); err != nil {
			return nil, 0, err
		}
	}

	result, err := assembler.Finalize()
	if err != nil {
		return nil, 0, err
	}

	fragment := &mutate.Fragment{
		Bytes:    result.TextSection.Data,
		Blocks:   result.TextSection.Blocks,
		CFG:      result.CFG,
		SymExprs: result.SymExprs,
		Symbols:  result.Symbols,
	}
	end, n, err := mutate.Splice(d.Module, block, offset, replacementLength, fragment)
	if err != nil {
		return nil, 0, err
	}

	for _, sym := range result.Symbols {
		d.symbolsByName[sym.Name] = sym
	}
	for _, proxy := range result.Proxies {
		d.Module.AddProxy(proxy)
	}
	return end, n, nil
}

// insertFunctionStub carves out a minimal (single-nop, return-edged)
// function body for a pending RegisterInsertFunction registration, so
// applyFunctionInsertion below has something real to splice its
// patch body into (spec.md §4.E).
func (d *Driver) insertFunctionStub(fi functionInsertion) {
	nopBytes := []byte{0x90} // amd64 single-byte nop; only ISA this engine's ABI table currently covers
	fi.block.Size = int64(len(nopBytes))

	text := d.Module.Section(".text")
	if text == nil {
		text = d.Module.AddSection(".text")
	}
	bi := ir.NewByteInterval(nopBytes)
	bi.AddBlock(fi.block)
	text.AddByteInterval(bi)

	returnProxy := ir.NewProxyBlock()
	d.Module.AddProxy(returnProxy)
	d.Module.CFG.AddEdge(ir.Edge{Source: fi.block, Target: returnProxy, Label: ir.Return})

	if d.Module.FileFormat == ir.FormatELF {
		ir.ElfSymbolInfoTable(d.Module)[fi.symbol] = ir.ElfSymbolInfo{
			Size: 0, Type: "FUNC", Binding: "GLOBAL", Visibility: "DEFAULT", SectionIdx: 0,
		}
	}

	funcUUID := ir.NewUUID()
	ir.FunctionEntries(d.Module)[funcUUID] = map[*ir.CodeBlock]struct{}{fi.block: {}}
	ir.FunctionBlocks(d.Module)[funcUUID] = map[*ir.CodeBlock]struct{}{fi.block: {}}
	ir.FunctionNames(d.Module)[funcUUID] = fi.symbol
	d.functionOf[fi.block] = funcUUID
}

func (d *Driver) applyFunctionInsertion(fi functionInsertion) error {
	constraints := fi.patch.Constraints()
	if !constraints.Empty() {
		return &FunctionPatchConstraintError{Name: fi.symbol.Name}
	}

	funcUUID := d.functionOf[fi.block]
	f := &ir.Function{
		UUID:        funcUUID,
		EntryBlocks: map[*ir.CodeBlock]struct{}{fi.block: {}},
		AllBlocks:   map[*ir.CodeBlock]struct{}{fi.block: {}},
		Names:       map[*ir.Symbol]struct{}{fi.symbol: {}},
	}
	ctx := InsertionContext{Module: d.Module, Function: f, Block: fi.block, Offset: 0}
	_, _, err := d.invokePatch(f, fi.block, 0, fi.block.Size, fi.patch, ctx)
	return err
}

// applyInsertionsForBlock resolves every insertion matching block to a
// concrete offset, checks they don't overlap once sorted, and applies
// them in increasing-offset order, tracking how much each prior
// application has shifted block's own later offsets (spec.md §4.D,
// "Per-block splice-apply").
func (d *Driver) applyInsertionsForBlock(f *ir.Function, block *ir.CodeBlock, matches []insertion) error {
	needsDisasm := false
	for _, ins := range matches {
		if ins.scope.NeedsDisassembly() {
			needsDisasm = true
			break
		}
	}
	var insns []scope.Instruction
	if needsDisasm {
		insns = nil // a real disassembler front-end is an out-of-scope collaborator (spec.md Non-goals)
	}

	type resolved struct {
		insertion insertion
		offset    int64
	}
	var withOffsets []resolved
	for _, ins := range matches {
		offset, ok := scope.First(ins.scope.PotentialOffsets(f, block, insns))
		if !ok {
			continue
		}
		withOffsets = append(withOffsets, resolved{insertion: ins, offset: offset})
	}
	sort.SliceStable(withOffsets, func(i, j int) bool { return withOffsets[i].offset < withOffsets[j].offset })

	lastEnd := int64(0)
	for _, r := range withOffsets {
		if r.offset < lastEnd {
			return &OverlappingEditsError{Reason: fmt.Sprintf("insertion at offset %d overlaps a prior edit ending at %d", r.offset, lastEnd)}
		}
		lastEnd = r.offset + r.insertion.scope.ReplacementLength()
	}

	actualBlock := block
	totalInsertLen := int64(0)
	for _, r := range withOffsets {
		blockDelta := actualBlock.Offset - block.Offset
		ctx := InsertionContext{Module: d.Module, Function: f, Block: block, Offset: r.offset}
		newEnd, insertLen, err := d.invokePatch(
			f, actualBlock, r.offset+totalInsertLen-blockDelta, r.insertion.scope.ReplacementLength(), r.insertion.patch, ctx,
		)
		if err != nil {
			return err
		}
		actualBlock = newEnd
		totalInsertLen += insertLen - r.insertion.scope.ReplacementLength()
	}
	return nil
}

// Apply applies every registered insertion to the module: function
// stubs and their bodies first, then per-function/per-block edits in
// deterministic order, then finalization (spec.md §4.D).
func (d *Driver) Apply() error {
	d.symbolsByName = d.Module.SymbolsByName()

	for _, fi := range d.funcInserts {
		d.insertFunctionStub(fi)
	}
	for _, fi := range d.funcInserts {
		if err := d.applyFunctionInsertion(fi); err != nil {
			return err
		}
	}

	functions := append([]*ir.Function(nil), d.Functions...)
	sort.Slice(functions, func(i, j int) bool {
		return string(functions[i].UUID[:]) < string(functions[j].UUID[:])
	})

	for _, f := range functions {
		var funcMatches []insertion
		for _, ins := range d.insertions {
			if ins.scope.FunctionMatches(d.Module, f) {
				funcMatches = append(funcMatches, ins)
			}
		}
		if len(funcMatches) == 0 {
			continue
		}
		for _, b := range f.GetAllBlocks() {
			var blockMatches []insertion
			for _, ins := range funcMatches {
				if ins.scope.BlockMatches(d.Module, f, b) {
					blockMatches = append(blockMatches, ins)
				}
			}
			if len(blockMatches) == 0 {
				continue
			}
			if err := d.applyInsertionsForBlock(f, b, blockMatches); err != nil {
				return err
			}
		}
	}

	ir.RemoveCFIDirectives(d.Module)
	return nil
}
