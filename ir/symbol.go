package ir

// SymbolicExpression is a placeholder value attached at a byte-interval
// offset describing a relocation-like reference (e.g. "address of
// symbol X plus an addend") that the assembler front-end would have
// produced. The engine treats it opaquely: it only needs to preserve,
// drop, or shift these by offset (spec.md §4.B guarantee 5).
type SymbolicExpression interface {
	isSymbolicExpression()
}

// SymAddr is the common case: a direct reference to a symbol, optionally
// offset by a constant addend.
type SymAddr struct {
	Symbol *Symbol
	Addend int64
}

func (SymAddr) isSymbolicExpression() {}

// Symbol is a named entity whose payload is either a block (its
// referent) or a proxy. Plain address-valued symbols are represented
// with a nil Referent and a non-nil Address.
type Symbol struct {
	id       UUID
	Name     string
	Referent CfgNode // *CodeBlock or *ProxyBlock; nil if Address is used
	Address  *uint64
}

// NewSymbol allocates a symbol with a fresh identity.
func NewSymbol(name string, referent CfgNode) *Symbol {
	return &Symbol{id: NewUUID(), Name: name, Referent: referent}
}

func (s *Symbol) elementUUID() UUID { return s.id }

// UUID returns the symbol's stable identity.
func (s *Symbol) UUID() UUID { return s.id }
