package elf

import (
	"bytes"
	"testing"

	"github.com/arc-language/rewriteir/ir"
)

func TestFromModuleConcatenatesByteIntervalsAndPlacesSymbols(t *testing.T) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")

	bi1 := ir.NewByteInterval([]byte{0x90, 0x90})
	block1 := ir.NewCodeBlock(0, 2)
	bi1.AddBlock(block1)
	sec.AddByteInterval(bi1)

	bi2 := ir.NewByteInterval([]byte{0xcc, 0xcc, 0xcc})
	block2 := ir.NewCodeBlock(1, 2)
	bi2.AddBlock(block2)
	sec.AddByteInterval(bi2)

	sym1 := ir.NewSymbol("first", block1)
	sym2 := ir.NewSymbol("second", block2)
	m.AddSymbol(sym1)
	m.AddSymbol(sym2)

	f := FromModule(m)

	if len(f.Sections) != 2 { // null + .text
		t.Fatalf("sections = %d, want 2", len(f.Sections))
	}
	text := f.Sections[1]
	if text.Name != ".text" {
		t.Fatalf("section name = %q, want .text", text.Name)
	}
	wantContent := []byte{0x90, 0x90, 0xcc, 0xcc, 0xcc}
	if !bytes.Equal(text.Content, wantContent) {
		t.Fatalf("content = %x, want %x", text.Content, wantContent)
	}
	if text.Flags&SHF_EXECINSTR == 0 {
		t.Fatalf("expected .text to carry SHF_EXECINSTR")
	}

	var got1, got2 *Symbol
	for _, s := range f.Symbols {
		switch s.Name {
		case "first":
			got1 = s
		case "second":
			got2 = s
		}
	}
	if got1 == nil || got1.Value != 0 {
		t.Fatalf("first symbol value = %+v, want offset 0", got1)
	}
	if got2 == nil || got2.Value != 3 { // base of bi2 (2) + block2.Offset (1)
		t.Fatalf("second symbol value = %+v, want offset 3", got2)
	}
}

func TestFromModuleUsesElfSymbolInfoTable(t *testing.T) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90})
	block := ir.NewCodeBlock(0, 1)
	bi.AddBlock(block)
	sec.AddByteInterval(bi)

	sym := ir.NewSymbol("helper", block)
	m.AddSymbol(sym)
	ir.ElfSymbolInfoTable(m)[sym] = ir.ElfSymbolInfo{
		Size:    1,
		Type:    "FUNC",
		Binding: "LOCAL",
	}

	f := FromModule(m)
	var got *Symbol
	for _, s := range f.Symbols {
		if s.Name == "helper" {
			got = s
		}
	}
	if got == nil {
		t.Fatalf("helper symbol not found")
	}
	if got.Info>>4 != STB_LOCAL {
		t.Fatalf("binding = %d, want STB_LOCAL", got.Info>>4)
	}
}

func TestFromModuleWritesWithoutError(t *testing.T) {
	m := ir.NewModule("test", ir.FormatELF, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90, 0x90})
	block := ir.NewCodeBlock(0, 2)
	bi.AddBlock(block)
	sec.AddByteInterval(bi)
	m.AddSymbol(ir.NewSymbol("main", block))

	f := FromModule(m)
	var buf bytes.Buffer
	if err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty output")
	}
}
