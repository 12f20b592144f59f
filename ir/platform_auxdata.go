package ir

// ElfSymbolInfo is one row of the elfSymbolInfo aux table: enough for a
// downstream pretty-printer's "dummy shared object" option to recognise
// an undefined function (spec.md §9, "Extern-symbol platform tables").
type ElfSymbolInfo struct {
	Size       uint64
	Type       string // "FUNC", "OBJECT", "NOTYPE", …
	Binding    string // "GLOBAL", "LOCAL", "WEAK"
	Visibility string // "DEFAULT", "HIDDEN", …
	SectionIdx int
}

// ElfSymbolInfoTable is the elfSymbolInfo aux table: symbol to its ELF
// metadata row.
func ElfSymbolInfoTable(m *Module) map[*Symbol]ElfSymbolInfo {
	return GetOrInsertAux(m, "elfSymbolInfo", func() map[*Symbol]ElfSymbolInfo {
		return make(map[*Symbol]ElfSymbolInfo)
	})
}

// SymbolForwarding is the symbolForwarding aux table (PE): a symbol
// forwards to another (possibly itself) so a pretty-printer can emit the
// correct import stub.
func SymbolForwarding(m *Module) map[*Symbol]*Symbol {
	return GetOrInsertAux(m, "symbolForwarding", func() map[*Symbol]*Symbol {
		return make(map[*Symbol]*Symbol)
	})
}

// PeImportedSymbols is the peImportedSymbols aux table: the set of
// symbols backed by a PE import.
func PeImportedSymbols(m *Module) []*Symbol {
	return GetOrInsertAux(m, "peImportedSymbols", func() []*Symbol {
		return nil
	})
}

// AppendPeImportedSymbol appends sym to the peImportedSymbols table.
func AppendPeImportedSymbol(m *Module, sym *Symbol) {
	cur := PeImportedSymbols(m)
	m.SetAux("peImportedSymbols", append(cur, sym))
}

// PeImportEntry is one row of the peImportEntries aux table:
// (ordinal, hint, importedName, libraryName).
type PeImportEntry struct {
	Ordinal      int
	Hint         int
	ImportedName string
	LibraryName  string
}

// PeImportEntries is the peImportEntries aux table.
func PeImportEntries(m *Module) []PeImportEntry {
	return GetOrInsertAux(m, "peImportEntries", func() []PeImportEntry {
		return nil
	})
}

// AppendPeImportEntry appends entry to the peImportEntries table.
func AppendPeImportEntry(m *Module, entry PeImportEntry) {
	cur := PeImportEntries(m)
	m.SetAux("peImportEntries", append(cur, entry))
}

// Libraries is the libraries aux table: shared library names the module
// depends on, in link order.
func Libraries(m *Module) []string {
	return GetOrInsertAux(m, "libraries", func() []string { return nil })
}

// PrependLibrary inserts name at the front of the libraries table
// (LD_PRELOAD-style), used when GetOrInsertExternSymbol is called with
// preload=true (spec.md §4.E).
func PrependLibrary(m *Module, name string) {
	cur := Libraries(m)
	m.SetAux("libraries", append([]string{name}, cur...))
}

// AppendLibrary appends name to the libraries table.
func AppendLibrary(m *Module, name string) {
	cur := Libraries(m)
	m.SetAux("libraries", append(cur, name))
}

// LibraryPaths is the libraryPaths aux table.
func LibraryPaths(m *Module) []string {
	return GetOrInsertAux(m, "libraryPaths", func() []string { return nil })
}

// PrependLibraryPath inserts path at the front of the libraryPaths table.
func PrependLibraryPath(m *Module, path string) {
	cur := LibraryPaths(m)
	m.SetAux("libraryPaths", append([]string{path}, cur...))
}

// AppendLibraryPath appends path to the libraryPaths table.
func AppendLibraryPath(m *Module, path string) {
	cur := LibraryPaths(m)
	m.SetAux("libraryPaths", append(cur, path))
}

// BinaryType is the binaryType aux table: a set of format markers (e.g.
// "DYN" for an ELF position-independent binary/shared object). No code
// in this module decorates extern symbol names from it;
// HasBinaryTypeMarker is its only reader.
func BinaryType(m *Module) []string {
	return GetOrInsertAux(m, "binaryType", func() []string { return nil })
}

// HasBinaryTypeMarker reports whether marker is present in the
// binaryType table.
func HasBinaryTypeMarker(m *Module, marker string) bool {
	for _, s := range BinaryType(m) {
		if s == marker {
			return true
		}
	}
	return false
}

// Comments is the comments offset-keyed aux table.
func Comments(m *Module) *OffsetMap { return GetOrInsertOffsetAux(m, "comments") }

// Padding is the padding offset-keyed aux table.
func Padding(m *Module) *OffsetMap { return GetOrInsertOffsetAux(m, "padding") }

// SymbolicExpressionSizes is the symbolicExpressionSizes offset-keyed
// aux table.
func SymbolicExpressionSizes(m *Module) *OffsetMap {
	return GetOrInsertOffsetAux(m, "symbolicExpressionSizes")
}

// RemoveCFIDirectives drops the cfiDirectives aux table wholesale, as
// required at the end of a rewrite pass (spec.md §3, Lifecycle): a
// rewrite pass almost certainly invalidates it, and CFI/unwind metadata
// is out of scope for this engine (spec.md Non-goals).
func RemoveCFIDirectives(m *Module) {
	m.DeleteAux("cfiDirectives")
}

// offsetKeyedAuxTableNames lists every aux table the mutation engine
// rewrites by offset when splicing into a byte interval (spec.md §4.B
// guarantee 6).
var offsetKeyedAuxTableNames = []string{"comments", "padding", "symbolicExpressionSizes"}
