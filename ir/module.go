package ir

// Section is a named container of byte intervals (spec.md §3).
type Section struct {
	id            UUID
	Name          string
	ByteIntervals []*ByteInterval
}

// NewSection creates an empty, named section.
func NewSection(name string) *Section {
	return &Section{id: NewUUID(), Name: name}
}

func (s *Section) elementUUID() UUID { return s.id }

// UUID returns the section's stable identity.
func (s *Section) UUID() UUID { return s.id }

// AddByteInterval appends bi to s and links it back.
func (s *Section) AddByteInterval(bi *ByteInterval) {
	bi.Section = s
	s.ByteIntervals = append(s.ByteIntervals, bi)
}

// FileFormat distinguishes the platform-specific aux-table conventions a
// module follows (spec.md §9, "Extern-symbol platform tables").
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatELF
	FormatPE
)

// ISA names the target instruction set, used for target-triple
// generation (spec.md §6, "Platform conventions").
type ISA int

const (
	ISAUnknown ISA = iota
	ISAX64
	ISAIA32
	ISAARM
	ISAARM64
)

// Module is the container of sections, symbols, proxies, a CFG, and a
// map of named auxiliary tables (spec.md §3).
type Module struct {
	Name       string
	FileFormat FileFormat
	ISA        ISA

	Sections []*Section
	Symbols  []*Symbol
	Proxies  []*ProxyBlock
	CFG      *CFG

	aux map[string]*AuxTable
}

// NewModule creates an empty module ready for rewriting.
func NewModule(name string, format FileFormat, isa ISA) *Module {
	return &Module{
		Name:       name,
		FileFormat: format,
		ISA:        isa,
		CFG:        NewCFG(),
		aux:        make(map[string]*AuxTable),
	}
}

// AddSection appends and returns a new section.
func (m *Module) AddSection(name string) *Section {
	s := NewSection(name)
	m.Sections = append(m.Sections, s)
	return s
}

// AddSymbol registers a pre-built symbol with the module.
func (m *Module) AddSymbol(sym *Symbol) {
	m.Symbols = append(m.Symbols, sym)
}

// AddProxy registers a pre-built proxy with the module.
func (m *Module) AddProxy(p *ProxyBlock) {
	m.Proxies = append(m.Proxies, p)
}

// FindSymbol returns the first symbol named name, or nil.
func (m *Module) FindSymbol(name string) *Symbol {
	for _, s := range m.Symbols {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SymbolsByName indexes the module's current symbol set by name,
// mirroring RewritingContext._symbols_by_name in
// original_source/gtirb_rewriting/rewriting.py, which the driver
// refreshes once per Apply and then updates incrementally as patches
// add symbols.
func (m *Module) SymbolsByName() map[string]*Symbol {
	out := make(map[string]*Symbol, len(m.Symbols))
	for _, s := range m.Symbols {
		out[s.Name] = s
	}
	return out
}

// Section returns the first section whose name is name, or nil.
func (m *Module) Section(name string) *Section {
	for _, s := range m.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ByteIntervalOf returns the section that owns bi, or nil if bi is not
// attached to any section in this module.
func (m *Module) ByteIntervalOf(bi *ByteInterval) *Section {
	for _, s := range m.Sections {
		for _, candidate := range s.ByteIntervals {
			if candidate == bi {
				return s
			}
		}
	}
	return nil
}

// RemoveSymbolsWithReferent drops symbols whose referent is node. Used
// when a fragment's folded-away block must not leave dangling symbols
// behind (it shouldn't happen in practice since referents are migrated,
// not dropped, but guards the invariant defensively).
func (m *Module) RemoveSymbolsWithReferent(node CfgNode) {
	out := m.Symbols[:0]
	for _, s := range m.Symbols {
		if s.Referent != node {
			out = append(out, s)
		}
	}
	m.Symbols = out
}
