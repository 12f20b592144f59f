// Package elf serializes a rewritten module into an ELF64 relocatable
// object file: one section per module section (its byte intervals
// concatenated in attachment order), one ELF symbol per module symbol
// addressed relative to its block's section, and the aux-table-driven
// metadata a downstream assembler/pretty-printer expects for undefined
// externs (spec.md §9, "Extern-symbol platform tables").
package elf

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/arc-language/rewriteir/ir"
)

// ELF64 constants (ELF(5), sys/elf64.h).
const (
	EI_NIDENT   = 16
	EI_MAG0     = 0
	ELFMAG0     = 0x7f
	ELFMAG1     = 'E'
	ELFMAG2     = 'L'
	ELFMAG3     = 'F'
	EI_CLASS    = 4
	ELFCLASS64  = 2
	EI_DATA     = 5
	ELFDATA2LSB = 1
	EI_VERSION  = 6
	EV_CURRENT  = 1

	ET_NONE = 0
	ET_REL  = 1
	ET_EXEC = 2
	ET_DYN  = 3
	ET_CORE = 4

	EM_X86_64 = 62

	SHT_NULL     = 0
	SHT_PROGBITS = 1
	SHT_SYMTAB   = 2
	SHT_STRTAB   = 3
	SHT_RELA     = 4
	SHT_HASH     = 5
	SHT_DYNAMIC  = 6
	SHT_NOTE     = 7
	SHT_NOBITS   = 8
	SHT_REL      = 9

	SHF_WRITE     = 0x1
	SHF_ALLOC     = 0x2
	SHF_EXECINSTR = 0x4
	SHF_MERGE     = 0x10
	SHF_STRINGS   = 0x20
	SHF_INFO_LINK = 0x40

	STB_LOCAL  = 0
	STB_GLOBAL = 1
	STB_WEAK   = 2

	STT_NOTYPE  = 0
	STT_OBJECT  = 1
	STT_FUNC    = 2
	STT_SECTION = 3
	STT_FILE    = 4
	STT_COMMON  = 5
	STT_TLS     = 6

	STV_DEFAULT   = 0
	STV_INTERNAL  = 1
	STV_HIDDEN    = 2
	STV_PROTECTED = 3

	SHN_UNDEF = 0
	SHN_ABS   = 0xfff1
)

// File is the ELF object under construction: sections and symbols
// accumulate through AddSection/AddSymbol (directly, or via FromModule),
// and WriteTo lays the whole thing out as bytes.
type File struct {
	Sections []*Section
	Symbols  []*Symbol
	StrTab   *StringTable
	ShStrTab *StringTable
	Machine  uint16
}

// Section is one ELF section: either module-sourced (built by
// FromModule from a concatenated run of byte intervals) or one of the
// string/symbol tables WriteTo appends itself.
type Section struct {
	Name      string
	Type      uint32
	Flags     uint64
	Addr      uint64
	Addralign uint64
	Entsize   uint64
	Link      uint32
	Info      uint32
	Content   []byte

	Index   uint16
	nameIdx uint32
	offset  uint64
	size    uint64
}

// Symbol is one ELF symbol table entry, addressed relative to Section
// by Value.
type Symbol struct {
	Name    string
	Info    byte // binding (high 4 bits) | type (low 4 bits)
	Other   byte // visibility
	Section *Section
	Value   uint64
	Size    uint64

	nameIdx uint32
	symIdx  int
}

// StringTable is a deduplicated, null-terminated string blob addressed
// by byte offset, as ELF's .strtab/.shstrtab require.
type StringTable struct {
	Data []byte
	strs map[string]uint32
}

func NewStringTable() *StringTable {
	return &StringTable{
		Data: []byte{0},
		strs: make(map[string]uint32),
	}
}

func (st *StringTable) Add(s string) uint32 {
	if s == "" {
		return 0
	}
	if idx, exists := st.strs[s]; exists {
		return idx
	}
	idx := uint32(len(st.Data))
	st.Data = append(st.Data, []byte(s)...)
	st.Data = append(st.Data, 0)
	st.strs[s] = idx
	return idx
}

// NewFile starts an empty ELF64/x86-64 relocatable object with its
// mandatory null section in place.
func NewFile() *File {
	f := &File{
		StrTab:   NewStringTable(),
		ShStrTab: NewStringTable(),
		Machine:  EM_X86_64,
	}
	f.Sections = append(f.Sections, &Section{Name: "", Type: SHT_NULL})
	return f
}

func (f *File) AddSection(name string, typ uint32, flags uint64, content []byte) *Section {
	s := &Section{
		Name:    name,
		Type:    typ,
		Flags:   flags,
		Content: content,
		Index:   uint16(len(f.Sections)),
	}
	f.Sections = append(f.Sections, s)
	return s
}

func (f *File) AddSymbol(name string, info byte, section *Section, value, size uint64) *Symbol {
	sym := &Symbol{
		Name:    name,
		Info:    info,
		Other:   STV_DEFAULT,
		Section: section,
		Value:   value,
		Size:    size,
		symIdx:  -1,
	}
	f.Symbols = append(f.Symbols, sym)
	return sym
}

// MakeSymbolInfo packs an ELF symbol's binding and type into the st_info
// byte ELF wants them in.
func MakeSymbolInfo(binding, typ byte) byte {
	return (binding << 4) | (typ & 0xf)
}

// FromModule builds the ELF object a rewritten module lowers to: one
// section per module section, its byte intervals concatenated in
// attachment order, and one symbol per module symbol. A symbol whose
// referent is a code block is positioned at the concatenated offset of
// that block; any other symbol is emitted undefined (no section).
// Symbols carrying an elfSymbolInfo aux row (spec.md §9) get their
// declared size, type, and binding; everything else defaults to a
// global function, since that is what a rewrite pass's own inserted
// labels almost always are.
func FromModule(m *ir.Module) *File {
	f := NewFile()

	elfSections := make(map[*ir.Section]*Section, len(m.Sections))
	blockBase := make(map[*ir.CodeBlock]uint64)
	blockSection := make(map[*ir.CodeBlock]*Section)

	for _, sec := range m.Sections {
		var content []byte
		var running uint64
		for _, bi := range sec.ByteIntervals {
			base := running
			content = append(content, bi.Contents...)
			running += uint64(len(bi.Contents))
			for _, b := range bi.Blocks() {
				blockBase[b] = base + uint64(b.Offset)
			}
		}
		typ := uint32(SHT_PROGBITS)
		es := f.AddSection(sec.Name, typ, sectionFlags(sec.Name), content)
		elfSections[sec] = es
		for _, bi := range sec.ByteIntervals {
			for _, b := range bi.Blocks() {
				blockSection[b] = es
			}
		}
	}

	infoTable := ir.ElfSymbolInfoTable(m)
	for _, sym := range m.Symbols {
		block, ok := sym.Referent.(*ir.CodeBlock)
		if !ok {
			// Proxy referent or address-valued symbol: undefined, no
			// section of its own.
			info, hasInfo := infoTable[sym]
			typ, binding := byte(STT_NOTYPE), byte(STB_GLOBAL)
			if hasInfo {
				typ, binding = elfSymbolType(info.Type), elfSymbolBinding(info.Binding)
			}
			size := uint64(0)
			if hasInfo {
				size = info.Size
			}
			f.AddSymbol(sym.Name, MakeSymbolInfo(binding, typ), nil, 0, size)
			continue
		}

		typ, binding := byte(STT_FUNC), byte(STB_GLOBAL)
		size := uint64(0)
		if info, ok := infoTable[sym]; ok {
			typ, binding = elfSymbolType(info.Type), elfSymbolBinding(info.Binding)
			size = info.Size
		}
		f.AddSymbol(sym.Name, MakeSymbolInfo(binding, typ), blockSection[block], blockBase[block], size)
	}

	return f
}

// sectionFlags assigns the section flags ELF conventionally gives a
// section of this name, mirroring the defaults an assembler front-end
// would have produced for .text/.data/.rodata/.bss.
func sectionFlags(name string) uint64 {
	switch name {
	case ".text":
		return SHF_ALLOC | SHF_EXECINSTR
	case ".data", ".bss", ".tbss", ".tdata":
		return SHF_ALLOC | SHF_WRITE
	case ".rodata":
		return SHF_ALLOC
	default:
		return SHF_ALLOC
	}
}

func elfSymbolType(t string) byte {
	switch t {
	case "FUNC":
		return STT_FUNC
	case "OBJECT":
		return STT_OBJECT
	case "SECTION":
		return STT_SECTION
	case "FILE":
		return STT_FILE
	case "COMMON":
		return STT_COMMON
	case "TLS":
		return STT_TLS
	default:
		return STT_NOTYPE
	}
}

func elfSymbolBinding(b string) byte {
	switch b {
	case "LOCAL":
		return STB_LOCAL
	case "WEAK":
		return STB_WEAK
	default:
		return STB_GLOBAL
	}
}

// WriteTo lays the file out as ELF64 bytes. It first appends .shstrtab,
// .strtab and .symtab (symbol names interned before the symbol table is
// encoded; locals before globals, as ELF requires) after the existing
// sections, then writes the ELF header, every section's contents in
// order, and the section headers.
func (f *File) WriteTo(w io.Writer) error {
	shstrtabSec := f.AddSection(".shstrtab", SHT_STRTAB, 0, nil)
	strTabSec := f.AddSection(".strtab", SHT_STRTAB, 0, nil)
	strTabSec.Addralign = 1

	for _, sym := range f.Symbols {
		sym.nameIdx = f.StrTab.Add(sym.Name)
	}

	symBuf := new(bytes.Buffer)
	orderedSymbols := make([]*Symbol, 0, len(f.Symbols)+1)

	nullSym := &Symbol{}
	f.writeSymbol(symBuf, nullSym)
	orderedSymbols = append(orderedSymbols, nullSym)

	for _, sym := range f.Symbols {
		if sym.Info>>4 == STB_LOCAL {
			sym.symIdx = len(orderedSymbols)
			f.writeSymbol(symBuf, sym)
			orderedSymbols = append(orderedSymbols, sym)
		}
	}
	firstGlobal := len(orderedSymbols)

	for _, sym := range f.Symbols {
		if sym.Info>>4 != STB_LOCAL {
			sym.symIdx = len(orderedSymbols)
			f.writeSymbol(symBuf, sym)
			orderedSymbols = append(orderedSymbols, sym)
		}
	}

	symTabSec := f.AddSection(".symtab", SHT_SYMTAB, 0, symBuf.Bytes())
	symTabSec.Link = uint32(strTabSec.Index)
	symTabSec.Info = uint32(firstGlobal)
	symTabSec.Addralign = 8
	symTabSec.Entsize = 24

	for _, sec := range f.Sections {
		sec.nameIdx = f.ShStrTab.Add(sec.Name)
	}

	shstrtabSec.Content = f.ShStrTab.Data
	shstrtabSec.size = uint64(len(f.ShStrTab.Data))
	strTabSec.Content = f.StrTab.Data
	strTabSec.size = uint64(len(f.StrTab.Data))

	headerSize := uint64(64)
	currentOffset := headerSize
	for _, sec := range f.Sections {
		if sec.Addralign > 0 && currentOffset%sec.Addralign != 0 {
			currentOffset += sec.Addralign - (currentOffset % sec.Addralign)
		}
		sec.offset = currentOffset
		if sec.size == 0 {
			sec.size = uint64(len(sec.Content))
		}
		currentOffset += sec.size
	}
	shdrOffset := currentOffset

	if err := f.writeElfHeader(w, shdrOffset, shstrtabSec.Index); err != nil {
		return err
	}

	written := headerSize
	for _, sec := range f.Sections {
		if sec.offset > written {
			if _, err := w.Write(make([]byte, sec.offset-written)); err != nil {
				return err
			}
			written = sec.offset
		}
		if _, err := w.Write(sec.Content); err != nil {
			return err
		}
		written += sec.size
	}

	for _, sec := range f.Sections {
		if err := f.writeSectionHeader(w, sec); err != nil {
			return err
		}
	}

	return nil
}

func (f *File) writeElfHeader(w io.Writer, shoff uint64, shstrndx uint16) error {
	var hdr elfHeader
	hdr.Ident[EI_MAG0] = ELFMAG0
	hdr.Ident[1] = ELFMAG1
	hdr.Ident[2] = ELFMAG2
	hdr.Ident[3] = ELFMAG3
	hdr.Ident[EI_CLASS] = ELFCLASS64
	hdr.Ident[EI_DATA] = ELFDATA2LSB
	hdr.Ident[EI_VERSION] = EV_CURRENT

	hdr.Type = ET_REL
	hdr.Machine = f.Machine
	hdr.Version = EV_CURRENT
	hdr.Shoff = shoff
	hdr.Ehsize = 64
	hdr.Shentsize = 64
	hdr.Shnum = uint16(len(f.Sections))
	hdr.Shstrndx = shstrndx

	return binary.Write(w, binary.LittleEndian, hdr)
}

func (f *File) writeSectionHeader(w io.Writer, sec *Section) error {
	var shdr elfSectionHeader
	shdr.Name = sec.nameIdx
	shdr.Type = sec.Type
	shdr.Flags = sec.Flags
	shdr.Addr = sec.Addr
	shdr.Offset = sec.offset
	shdr.Size = sec.size
	shdr.Link = sec.Link
	shdr.Info = sec.Info
	shdr.Addralign = sec.Addralign
	shdr.Entsize = sec.Entsize

	return binary.Write(w, binary.LittleEndian, shdr)
}

func (f *File) writeSymbol(w io.Writer, sym *Symbol) error {
	shndx := uint16(SHN_UNDEF)
	if sym.Section != nil {
		shndx = sym.Section.Index
	}

	binary.Write(w, binary.LittleEndian, sym.nameIdx)
	w.Write([]byte{sym.Info})
	w.Write([]byte{sym.Other})
	binary.Write(w, binary.LittleEndian, shndx)
	binary.Write(w, binary.LittleEndian, sym.Value)
	binary.Write(w, binary.LittleEndian, sym.Size)

	return nil
}

type elfHeader struct {
	Ident     [EI_NIDENT]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elfSectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}
