package patch

import (
	"testing"

	"github.com/arc-language/rewriteir/abi"
	"github.com/arc-language/rewriteir/asmexec"
	"github.com/arc-language/rewriteir/ir"
	"github.com/arc-language/rewriteir/scope"
)

// testPatch is a minimal Patch whose GetAsm just returns a fixed line
// of "assembly" text, letting tests control exactly what the Fake
// assembler encodes.
type testPatch struct {
	constraints abi.Constraints
	asm         string
}

func (p testPatch) Constraints() abi.Constraints              { return p.constraints }
func (p testPatch) GetAsm(InsertionContext, ...string) string { return p.asm }

func probeEncoder(line string) ([]byte, error) {
	switch line {
	case "probe":
		return []byte{0xcc}, nil
	case "nop":
		return []byte{0x90}, nil
	default:
		return []byte{0x00}, nil
	}
}

func newFakeDriverFixture() (*Driver, *ir.CodeBlock) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90, 0x90, 0x90, 0x90})
	sec.AddByteInterval(bi)

	entry := ir.NewCodeBlock(0, 4)
	bi.AddBlock(entry)

	funcUUID := ir.NewUUID()
	ir.FunctionEntries(m)[funcUUID] = map[*ir.CodeBlock]struct{}{entry: {}}
	ir.FunctionBlocks(m)[funcUUID] = map[*ir.CodeBlock]struct{}{entry: {}}
	sym := ir.NewSymbol("main", entry)
	m.AddSymbol(sym)
	ir.FunctionNames(m)[funcUUID] = sym

	functions := ir.Functions(m)
	d := NewDriver(m, functions, func() asmexec.Assembler { return asmexec.NewFake(probeEncoder) }, nil)
	return d, entry
}

func TestApplyInsertsAtFunctionEntryForAllFunctions(t *testing.T) {
	d, entry := newFakeDriverFixture()
	d.RegisterInsert(scope.AllFunctions(), testPatch{asm: "probe"})

	if err := d.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	bi := entry.ByteInterval
	want := []byte{0xcc, 0x90, 0x90, 0x90, 0x90}
	if string(bi.Contents) != string(want) {
		t.Fatalf("contents = %x, want %x", bi.Contents, want)
	}
}

func TestApplySkipsEmptyAsm(t *testing.T) {
	d, entry := newFakeDriverFixture()
	d.RegisterInsert(scope.AllFunctions(), testPatch{asm: ""})

	if err := d.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if entry.Size != 4 {
		t.Fatalf("block size = %d, want unchanged 4 (empty patch body should be skipped)", entry.Size)
	}
}

func TestApplyFunctionInsertionRejectsNonEmptyConstraints(t *testing.T) {
	d, _ := newFakeDriverFixture()
	d.RegisterInsertFunction("helper", testPatch{
		constraints: abi.Constraints{ScratchCount: 1},
		asm:         "probe",
	})

	err := d.Apply()
	if err == nil {
		t.Fatalf("expected an error for a function insertion with non-empty constraints")
	}
	if _, ok := err.(*FunctionPatchConstraintError); !ok {
		t.Fatalf("err = %T, want *FunctionPatchConstraintError", err)
	}
}

func TestApplyFunctionInsertionBuildsAStubAndAppliesBody(t *testing.T) {
	d, _ := newFakeDriverFixture()
	sym := d.RegisterInsertFunction("helper", testPatch{asm: "probe"})

	if err := d.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sym.Referent == nil {
		t.Fatalf("expected the new function symbol to retain a referent block")
	}
	block, ok := sym.Referent.(*ir.CodeBlock)
	if !ok {
		t.Fatalf("referent = %T, want *ir.CodeBlock", sym.Referent)
	}
	if block.ByteInterval == nil {
		t.Fatalf("expected the stub block to be attached to a byte interval")
	}
}

func TestGetOrInsertExternSymbolIsIdempotent(t *testing.T) {
	d, _ := newFakeDriverFixture()
	first := d.GetOrInsertExternSymbol("malloc", "libc.so.6", false, "")
	second := d.GetOrInsertExternSymbol("malloc", "libc.so.6", false, "")
	if first != second {
		t.Fatalf("expected repeated calls for the same name to return the same symbol")
	}
	libs := ir.Libraries(d.Module)
	if len(libs) != 1 || libs[0] != "libc.so.6" {
		t.Fatalf("libraries = %v, want exactly one entry for libc.so.6", libs)
	}
}

func TestGetOrInsertExternSymbolPreloadPrepends(t *testing.T) {
	d, _ := newFakeDriverFixture()
	d.GetOrInsertExternSymbol("a", "liba.so", false, "")
	d.GetOrInsertExternSymbol("b", "libb.so", true, "")

	libs := ir.Libraries(d.Module)
	if len(libs) != 2 || libs[0] != "libb.so" {
		t.Fatalf("libraries = %v, want libb.so preloaded first", libs)
	}
}

func TestInsertAtRejectsOutOfBoundsOffset(t *testing.T) {
	d, entry := newFakeDriverFixture()
	var target *ir.Function
	for _, f := range d.Functions {
		target = f
		break
	}
	if err := d.InsertAt(target, entry, entry.Size+1, testPatch{asm: "probe"}); err == nil {
		t.Fatalf("expected an error for an out-of-bounds offset")
	}
}
