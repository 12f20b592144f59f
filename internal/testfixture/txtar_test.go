package testfixture

import (
	"testing"

	"github.com/arc-language/rewriteir/ir"
)

func buildFixture() *ir.Module {
	m := ir.NewModule("demo", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90, 0xc3})
	entry := ir.NewCodeBlock(0, 1)
	ret := ir.NewCodeBlock(1, 1)
	bi.AddBlock(entry)
	bi.AddBlock(ret)
	sec.AddByteInterval(bi)

	proxy := ir.NewProxyBlock()
	m.AddProxy(proxy)

	m.CFG.AddEdge(ir.Edge{Source: entry, Target: ret, Label: ir.Fallthrough})
	m.CFG.AddEdge(ir.Edge{Source: ret, Target: proxy, Label: ir.Return})

	m.AddSymbol(ir.NewSymbol("main", entry))
	return m
}

func TestEncodeDecodeRoundTripsBlocksAndSymbols(t *testing.T) {
	m := buildFixture()
	data := Encode(m)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "demo" || got.FileFormat != ir.FormatELF || got.ISA != ir.ISAX64 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Sections) != 1 || got.Sections[0].Name != ".text" {
		t.Fatalf("expected one .text section, got %+v", got.Sections)
	}
	content := got.Sections[0].ByteIntervals[0].Contents
	if string(content) != "\x90\xc3" {
		t.Fatalf("content = %x, want 90c3", content)
	}
	if len(got.Symbols) != 1 || got.Symbols[0].Name != "main" {
		t.Fatalf("expected a single main symbol, got %+v", got.Symbols)
	}
}

func TestEncodeDecodeRoundTripsCFGEdges(t *testing.T) {
	m := buildFixture()
	got, err := Decode(Encode(m))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	entry := got.Sections[0].ByteIntervals[0].Blocks()[0]
	outs := got.CFG.OutEdges(entry)
	if len(outs) != 1 || outs[0].Label != ir.Fallthrough {
		t.Fatalf("entry out-edges = %+v, want one fallthrough edge", outs)
	}
}

func TestEncodeIsDeterministicForUnchangedInput(t *testing.T) {
	m := buildFixture()
	a := Encode(m)
	b := Encode(m)
	if string(a) != string(b) {
		t.Fatalf("expected repeated Encode calls on the same module to match byte-for-byte")
	}
}
