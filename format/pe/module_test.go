package pe

import (
	"bytes"
	"testing"

	"github.com/arc-language/rewriteir/ir"
)

func TestFromModulePlacesDefinedSymbolsAndMarksImportsUndefined(t *testing.T) {
	m := ir.NewModule("test", ir.FormatPE, ir.ISAX64)
	sec := m.AddSection(".text")
	bi := ir.NewByteInterval([]byte{0x90, 0x90, 0x90})
	block := ir.NewCodeBlock(1, 1)
	bi.AddBlock(block)
	sec.AddByteInterval(bi)

	local := ir.NewSymbol("helper", block)
	m.AddSymbol(local)

	proxy := ir.NewProxyBlock()
	extern := ir.NewSymbol("GetProcAddress", proxy)
	m.AddSymbol(extern)
	ir.AppendPeImportedSymbol(m, extern)

	f := FromModule(m)

	var gotLocal, gotExtern *Symbol
	for _, s := range f.Symbols {
		switch s.Name {
		case "helper":
			gotLocal = s
		case "GetProcAddress":
			gotExtern = s
		}
	}
	if gotLocal == nil || gotLocal.Section == nil || gotLocal.Value != 1 {
		t.Fatalf("local symbol = %+v, want defined at offset 1", gotLocal)
	}
	if gotExtern == nil || gotExtern.Section != nil {
		t.Fatalf("extern symbol = %+v, want undefined (nil section)", gotExtern)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
}
