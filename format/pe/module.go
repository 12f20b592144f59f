package pe

import "github.com/arc-language/rewriteir/ir"

// sectionCharacteristics guesses IMAGE_SCN_* flags from a section name,
// the same convention format/elf.sectionFlags uses for SHF_* — there's
// no flag data on ir.Section itself (spec.md §3).
func sectionCharacteristics(name string) uint32 {
	switch name {
	case ".text":
		return IMAGE_SCN_CNT_CODE | IMAGE_SCN_MEM_EXECUTE | IMAGE_SCN_MEM_READ
	case ".rdata":
		return IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ
	case ".data":
		return IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_WRITE
	case ".bss":
		return IMAGE_SCN_CNT_UNINITIALIZED_DATA | IMAGE_SCN_MEM_READ | IMAGE_SCN_MEM_WRITE
	default:
		return IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ
	}
}

// FromModule renders m as a COFF object, concatenating each section's
// byte intervals the same way format/elf.FromModule does. Symbols whose
// referent is a code block get a defined symbol at their
// section-relative offset; symbols listed in ir.PeImportedSymbols (or
// forwarded via ir.SymbolForwarding) are emitted undefined, matching
// how a linker expects an imported name to appear in an object destined
// for a DLL import library.
func FromModule(m *ir.Module) *File {
	f := NewFile()
	if m.ISA == ir.ISAX64 || m.ISA == ir.ISAUnknown {
		f.Machine = IMAGE_FILE_MACHINE_AMD64
	}

	sectionOf := make(map[*ir.Section]*Section)
	blockBase := make(map[*ir.CodeBlock]uint32)

	for _, sec := range m.Sections {
		var content []byte
		for _, bi := range sec.ByteIntervals {
			base := uint32(len(content))
			content = append(content, bi.Contents...)
			for _, block := range bi.Blocks() {
				blockBase[block] = base + uint32(block.Offset)
			}
		}
		sectionOf[sec] = f.AddSection(sec.Name, sectionCharacteristics(sec.Name), content)
	}

	imported := make(map[*ir.Symbol]struct{})
	for _, sym := range ir.PeImportedSymbols(m) {
		imported[sym] = struct{}{}
	}
	forwarding := ir.SymbolForwarding(m)

	for _, sym := range m.Symbols {
		if _, isImport := imported[sym]; isImport {
			f.AddSymbol(sym.Name, 0, nil, IMAGE_SYM_CLASS_EXTERNAL)
			continue
		}
		if target, ok := forwarding[sym]; ok && target != sym {
			f.AddSymbol(sym.Name, 0, nil, IMAGE_SYM_CLASS_EXTERNAL)
			continue
		}

		block, ok := sym.Referent.(*ir.CodeBlock)
		if !ok || block.ByteInterval == nil || block.ByteInterval.Section == nil {
			f.AddSymbol(sym.Name, 0, nil, IMAGE_SYM_CLASS_EXTERNAL)
			continue
		}
		peSec := sectionOf[block.ByteInterval.Section]
		f.AddSymbol(sym.Name, blockBase[block], peSec, IMAGE_SYM_CLASS_STATIC)
	}

	return f
}
