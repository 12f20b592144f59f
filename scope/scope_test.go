package scope

import (
	"testing"

	"github.com/arc-language/rewriteir/ir"
)

// fixture builds a two-function module: main (2 blocks) and helper (1
// block), each with a name symbol and a functionEntries/functionBlocks
// registration, the shape the driver assembles via ir.Functions.
func fixture() (*ir.Module, *ir.Function, *ir.Function, []*ir.CodeBlock) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90, 0x90, 0x90, 0x90, 0xc3})
	sec.AddByteInterval(bi)

	mainEntry := ir.NewCodeBlock(0, 2)
	mainTail := ir.NewCodeBlock(2, 2)
	helperEntry := ir.NewCodeBlock(4, 1)
	bi.AddBlock(mainEntry)
	bi.AddBlock(mainTail)
	bi.AddBlock(helperEntry)

	mainUUID := ir.NewUUID()
	helperUUID := ir.NewUUID()

	entries := ir.FunctionEntries(m)
	entries[mainUUID] = map[*ir.CodeBlock]struct{}{mainEntry: {}}
	entries[helperUUID] = map[*ir.CodeBlock]struct{}{helperEntry: {}}

	blocks := ir.FunctionBlocks(m)
	blocks[mainUUID] = map[*ir.CodeBlock]struct{}{mainEntry: {}, mainTail: {}}
	blocks[helperUUID] = map[*ir.CodeBlock]struct{}{helperEntry: {}}

	mainSym := ir.NewSymbol("main", mainEntry)
	helperSym := ir.NewSymbol("helper", helperEntry)
	m.AddSymbol(mainSym)
	m.AddSymbol(helperSym)
	names := ir.FunctionNames(m)
	names[mainUUID] = mainSym
	names[helperUUID] = helperSym

	funcs := ir.Functions(m)
	var mainFunc, helperFunc *ir.Function
	for _, f := range funcs {
		if f.UUID == mainUUID {
			mainFunc = f
		}
		if f.UUID == helperUUID {
			helperFunc = f
		}
	}
	return m, mainFunc, helperFunc, []*ir.CodeBlock{mainEntry, mainTail, helperEntry}
}

func TestAllFunctionsMatchesEveryFunctionAtEntryOnly(t *testing.T) {
	m, mainFunc, helperFunc, blocks := fixture()
	s := AllFunctions()

	if !s.FunctionMatches(m, mainFunc) || !s.FunctionMatches(m, helperFunc) {
		t.Fatalf("AllFunctions must match every function")
	}
	if !s.BlockMatches(m, mainFunc, blocks[0]) {
		t.Fatalf("AllFunctions must match a function's entry block")
	}
	if s.BlockMatches(m, mainFunc, blocks[1]) {
		t.Fatalf("AllFunctions must not match a non-entry block")
	}
	offset, ok := First(s.PotentialOffsets(mainFunc, blocks[0], nil))
	if !ok || offset != 0 {
		t.Fatalf("offset = (%d, %v), want (0, true)", offset, ok)
	}
}

func TestAllBlocksMatchesEveryBlock(t *testing.T) {
	m, mainFunc, _, blocks := fixture()
	s := AllBlocks()
	for _, b := range blocks[:2] {
		if !s.BlockMatches(m, mainFunc, b) {
			t.Fatalf("AllBlocks must match every block of a matching function")
		}
	}
}

func TestFunctionEntrySelectsByName(t *testing.T) {
	m, mainFunc, helperFunc, blocks := fixture()
	s := FunctionEntry("helper")

	if s.FunctionMatches(m, mainFunc) {
		t.Fatalf("FunctionEntry(\"helper\") must not match main")
	}
	if !s.FunctionMatches(m, helperFunc) {
		t.Fatalf("FunctionEntry(\"helper\") must match helper")
	}
	if !s.BlockMatches(m, helperFunc, blocks[2]) {
		t.Fatalf("FunctionEntry(\"helper\") must match helper's entry block")
	}
}

func TestSpecificLocationFixesOneOffset(t *testing.T) {
	m, mainFunc, _, blocks := fixture()
	s := SpecificLocation(mainFunc, blocks[1], 1, 1)

	if !s.FunctionMatches(m, mainFunc) {
		t.Fatalf("SpecificLocation must match its own function")
	}
	if !s.BlockMatches(m, mainFunc, blocks[1]) {
		t.Fatalf("SpecificLocation must match its own block")
	}
	if s.BlockMatches(m, mainFunc, blocks[0]) {
		t.Fatalf("SpecificLocation must not match a different block")
	}
	offset, ok := First(s.PotentialOffsets(mainFunc, blocks[1], nil))
	if !ok || offset != 1 {
		t.Fatalf("offset = (%d, %v), want (1, true)", offset, ok)
	}
	if s.ReplacementLength() != 1 {
		t.Fatalf("ReplacementLength() = %d, want 1", s.ReplacementLength())
	}
}

func TestSpecificLocationNilFunctionMatchesAny(t *testing.T) {
	m, mainFunc, helperFunc, blocks := fixture()
	s := SpecificLocation(nil, blocks[2], 0, 0)
	if !s.FunctionMatches(m, mainFunc) || !s.FunctionMatches(m, helperFunc) {
		t.Fatalf("SpecificLocation with a nil function must match any function")
	}
}

func TestParseAllFunctionsAndAllBlocks(t *testing.T) {
	s, err := Parse(nil, "all-functions")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := s.(allFunctions); !ok {
		t.Fatalf("Parse(\"all-functions\") = %T, want allFunctions", s)
	}

	s, err = Parse(nil, "all-blocks")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := s.(allBlocks); !ok {
		t.Fatalf("Parse(\"all-blocks\") = %T, want allBlocks", s)
	}
}

func TestParseFunctionEntry(t *testing.T) {
	s, err := Parse(nil, "function-entry:helper")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fe, ok := s.(functionEntry)
	if !ok {
		t.Fatalf("Parse(\"function-entry:helper\") = %T, want functionEntry", s)
	}
	if fe.name != "helper" {
		t.Fatalf("name = %q, want helper", fe.name)
	}
}

func TestParseAtResolvesBlockByIndex(t *testing.T) {
	m, mainFunc, _, blocks := fixture()
	s, err := Parse(m, "at:main:1:1:2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sl, ok := s.(specificLocation)
	if !ok {
		t.Fatalf("Parse(\"at:...\") = %T, want specificLocation", s)
	}
	if sl.function == nil || sl.function.UUID != mainFunc.UUID {
		t.Fatalf("resolved function mismatch")
	}
	if sl.block != blocks[1] {
		t.Fatalf("resolved block mismatch: got block at offset %d, want the one at index 1", sl.block.Offset)
	}
	if sl.offset != 1 || sl.replacementLength != 2 {
		t.Fatalf("offset/length = %d/%d, want 1/2", sl.offset, sl.replacementLength)
	}
}

func TestParseAtUnknownFunctionFails(t *testing.T) {
	m, _, _, _ := fixture()
	if _, err := Parse(m, "at:nonexistent:0:0:0"); err == nil {
		t.Fatalf("expected an error resolving an unknown function name")
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	if _, err := Parse(nil, "bogus-kind"); err == nil {
		t.Fatalf("expected an error for an unrecognized scope kind")
	}
}
