package mutate

import (
	"fmt"
	"testing"

	"github.com/andreyvit/diff"
	"github.com/arc-language/rewriteir/ir"
)

func newFixture(contents []byte) (*ir.Module, *ir.ByteInterval, *ir.Section) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval(contents)
	sec.AddByteInterval(bi)
	return m, bi, sec
}

// mustContents checks byte-preservation outside the edited region
// (spec.md §8, testable property 2): unrelated bytes must come through
// unchanged. On mismatch it renders a line diff of the hex dumps so a
// failure shows exactly where the two interval contents diverge,
// rather than two opaque hex blobs.
func mustContents(t *testing.T, bi *ir.ByteInterval, want []byte) {
	t.Helper()
	got := fmt.Sprintf("% x", bi.Contents)
	wantStr := fmt.Sprintf("% x", want)
	if got != wantStr {
		t.Fatalf("contents mismatch:\n%s", diff.LineDiff(wantStr, got))
	}
}

// Interior insert with no new control flow folds into the existing
// block and leaves the byte interval with exactly one block.
func TestSpliceTrivialInteriorInsert(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90, 0x90, 0x90, 0x90})
	block := ir.NewCodeBlock(0, 4)
	bi.AddBlock(block)

	frag := &Fragment{
		Bytes:  []byte{0xcc, 0xcc},
		Blocks: []*ir.CodeBlock{ir.NewCodeBlock(0, 2)},
	}

	end, n, err := Splice(m, block, 2, 0, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if end != block {
		t.Fatalf("expected trivial splice to return the same block")
	}
	if n != 2 {
		t.Fatalf("bytesInserted = %d, want 2", n)
	}
	if block.Size != 6 {
		t.Fatalf("block.Size = %d, want 6", block.Size)
	}
	mustContents(t, bi, []byte{0x90, 0x90, 0xcc, 0xcc, 0x90, 0x90})
	if len(bi.Blocks()) != 1 {
		t.Fatalf("expected no new blocks to appear in the byte interval, got %d", len(bi.Blocks()))
	}
}

// Replacing the last instruction with a fragment that ends in a call
// redirects the block's original fall-through successor to the
// fragment's tail, leaving the truncated head with a single edge into
// the fragment.
func TestSpliceReplaceLastInstructionRedirectsFallthrough(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90, 0x90, 0x90, 0x90, 0xc3})
	block := ir.NewCodeBlock(0, 5)
	bi.AddBlock(block)
	succ := ir.NewCodeBlock(5, 1)
	bi.AddBlock(succ)
	m.CFG.AddEdge(ir.Edge{Source: block, Target: succ, Label: ir.Fallthrough})

	frag := &Fragment{
		Bytes:  []byte{0xe8, 0x00, 0x00, 0x00, 0x00},
		Blocks: []*ir.CodeBlock{ir.NewCodeBlock(0, 5)},
		CFG:    ir.NewCFG(),
	}

	end, _, err := Splice(m, block, 4, 1, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if end == block {
		t.Fatalf("expected the edit to land in the fragment's block, not the original")
	}
	if block.Size != 4 {
		t.Fatalf("block.Size = %d, want 4 (truncated to the unedited head)", block.Size)
	}
	if len(m.CFG.OutEdges(block)) != 1 {
		t.Fatalf("expected exactly one outgoing edge from the truncated head (to the fragment)")
	}
	fallthroughs := m.CFG.OutEdges(end)
	found := false
	for _, e := range fallthroughs {
		if e.Label == ir.Fallthrough && e.Target == succ {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fragment's tail to inherit the fall-through edge to succ")
	}
}

// Replacing a whole block's contents (offset 0, full length) truncates
// the original block to size 0, which the head zero-size repair folds
// back into a single live block rather than leaving a degenerate empty
// one behind; existing in-edges and symbol referents survive the fold.
func TestSpliceHeadZeroSizeRepair(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90, 0x90})
	block := ir.NewCodeBlock(0, 2)
	bi.AddBlock(block)
	pred := ir.NewCodeBlock(0, 0) // placeholder, not attached; just a CFG source
	m.CFG.AddEdge(ir.Edge{Source: pred, Target: block, Label: ir.Branch})

	sym := ir.NewSymbol("entry", block)
	m.AddSymbol(sym)

	frag := &Fragment{
		Bytes:  []byte{0x55},
		Blocks: []*ir.CodeBlock{ir.NewCodeBlock(0, 1)},
		CFG:    ir.NewCFG(),
	}

	end, _, err := Splice(m, block, 0, 2, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if end != block {
		t.Fatalf("head repair must fold the fragment's head into the original block object")
	}
	if block.Size != 1 {
		t.Fatalf("block.Size = %d, want 1 (the fragment head's size)", block.Size)
	}
	if sym.Referent != block {
		t.Fatalf("symbol referent must still point at block after head repair")
	}
	inEdges := m.CFG.InEdges(block)
	if len(inEdges) != 1 || inEdges[0].Source != pred {
		t.Fatalf("expected the predecessor's branch edge to still target block")
	}
}

// A trailing zero-size fragment block with no incoming edges and no
// symbol referents is simply discarded.
func TestSpliceTailZeroSizeDiscarded(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90, 0x90})
	block := ir.NewCodeBlock(0, 2)
	bi.AddBlock(block)

	head := ir.NewCodeBlock(0, 1)
	tail := ir.NewCodeBlock(1, 0)
	fcfg := ir.NewCFG()
	fcfg.AddEdge(ir.Edge{Source: head, Target: ir.NewProxyBlock(), Label: ir.Call})

	frag := &Fragment{
		Bytes:  []byte{0x90},
		Blocks: []*ir.CodeBlock{head, tail},
		CFG:    fcfg,
	}

	_, _, err := Splice(m, block, 0, 2, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	for _, b := range bi.Blocks() {
		if b == tail {
			t.Fatalf("expected the dangling zero-size tail to be dropped from the byte interval")
		}
	}
}

// A trailing zero-size fragment block whose only outgoing edge is a
// fall-through is folded into its successor rather than discarded.
func TestSpliceTailZeroSizeSubstituted(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90})
	block := ir.NewCodeBlock(0, 1)
	bi.AddBlock(block)
	succ := ir.NewCodeBlock(1, 1)
	bi.AddBlock(succ)
	m.CFG.AddEdge(ir.Edge{Source: block, Target: succ, Label: ir.Fallthrough})

	head := ir.NewCodeBlock(0, 1)
	tail := ir.NewCodeBlock(1, 0)
	fcfg := ir.NewCFG()
	fcfg.AddEdge(ir.Edge{Source: head, Target: tail, Label: ir.Fallthrough})

	frag := &Fragment{
		Bytes:  []byte{0xcc},
		Blocks: []*ir.CodeBlock{head, tail},
		CFG:    fcfg,
	}

	_, _, err := Splice(m, block, 1, 0, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	for _, e := range m.CFG.OutEdges(head) {
		if e.Target == succ && e.Label == ir.Fallthrough {
			return
		}
	}
	t.Fatalf("expected head's fall-through to be retargeted directly at succ once tail folded away")
}

// A trailing zero-size fragment block with an incoming edge but no
// single fall-through successor cannot be resolved and Splice must
// report it rather than leave a degenerate block in the IR.
func TestSpliceUnresolvedZeroBlock(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90})
	block := ir.NewCodeBlock(0, 1)
	bi.AddBlock(block)

	head := ir.NewCodeBlock(0, 1)
	tail := ir.NewCodeBlock(1, 0)
	fcfg := ir.NewCFG()
	fcfg.AddEdge(ir.Edge{Source: head, Target: tail, Label: ir.Branch})
	fcfg.AddEdge(ir.Edge{Source: ir.NewProxyBlock(), Target: tail, Label: ir.Call})

	frag := &Fragment{
		Bytes:  []byte{0xcc},
		Blocks: []*ir.CodeBlock{head, tail},
		CFG:    fcfg,
	}

	_, _, err := Splice(m, block, 1, 0, frag)
	if err == nil {
		t.Fatalf("expected an UnresolvedZeroBlockError")
	}
	if _, ok := err.(*UnresolvedZeroBlockError); !ok {
		t.Fatalf("err = %T, want *UnresolvedZeroBlockError", err)
	}
}

// Downstream blocks in the same byte interval shift by the size delta,
// and offset-keyed aux data carried past the edit lands at its shifted
// displacement.
func TestSpliceShiftsDownstreamBlocksAndAuxData(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90, 0x90, 0x90, 0x90})
	block := ir.NewCodeBlock(0, 2)
	bi.AddBlock(block)
	downstream := ir.NewCodeBlock(2, 2)
	bi.AddBlock(downstream)

	padding := ir.Padding(m)
	padding.Insert(ir.Offset{Element: bi, Displacement: 3}, 1)

	frag := &Fragment{
		Bytes:  []byte{0xcc, 0xcc, 0xcc, 0xcc},
		Blocks: []*ir.CodeBlock{ir.NewCodeBlock(0, 4)},
	}

	_, _, err := Splice(m, block, 2, 0, frag)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if downstream.Offset != 6 {
		t.Fatalf("downstream.Offset = %d, want 6", downstream.Offset)
	}
	if _, ok := padding.Lookup(ir.Offset{Element: bi, Displacement: 3}); ok {
		t.Fatalf("expected old padding displacement to be gone")
	}
	if v, ok := padding.Lookup(ir.Offset{Element: bi, Displacement: 7}); !ok || v.(int) != 1 {
		t.Fatalf("expected padding to have shifted to displacement 7, got %v, %v", v, ok)
	}
}

// Splice panics on out-of-range offsets rather than silently
// corrupting the byte interval.
func TestSplicePreconditionViolationPanics(t *testing.T) {
	m, bi, _ := newFixture([]byte{0x90})
	block := ir.NewCodeBlock(0, 1)
	bi.AddBlock(block)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic for an out-of-range offset")
		}
		if _, ok := r.(*PreconditionViolation); !ok {
			t.Fatalf("recovered %T, want *PreconditionViolation", r)
		}
	}()
	_, _, _ = Splice(m, block, 5, 0, &Fragment{Bytes: []byte{0x90}, Blocks: []*ir.CodeBlock{ir.NewCodeBlock(0, 1)}})
}
